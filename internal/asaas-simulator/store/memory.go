// Package store guarda em memória o estado do simulador do Asaas
package store

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/radieske/fitness-benefits-platform/internal/shared/asaas"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidStatus = errors.New("invalid status for operation")
)

func newID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

type Memory struct {
	mu        sync.RWMutex
	customers map[string]*asaas.Customer
	payments  map[string]*asaas.Payment
	links     map[string]*asaas.PaymentLink
	checkouts map[string]*checkoutEntry
}

type checkoutEntry struct {
	checkout asaas.Checkout
	req      asaas.CheckoutRequest
}

func NewMemory() *Memory {
	return &Memory{
		customers: map[string]*asaas.Customer{},
		payments:  map[string]*asaas.Payment{},
		links:     map[string]*asaas.PaymentLink{},
		checkouts: map[string]*checkoutEntry{},
	}
}

func (m *Memory) CreateCustomer(req asaas.CustomerRequest) asaas.Customer {
	c := asaas.Customer{
		ID:                newID("cus_"),
		Name:              req.Name,
		CpfCnpj:           req.CpfCnpj,
		Email:             req.Email,
		Phone:             req.Phone,
		MobilePhone:       req.MobilePhone,
		ExternalReference: req.ExternalReference,
	}
	m.mu.Lock()
	m.customers[c.ID] = &c
	m.mu.Unlock()
	return c
}

func (m *Memory) FindCustomers(cpfCnpj, email string) []asaas.Customer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []asaas.Customer{}
	for _, c := range m.customers {
		if cpfCnpj != "" && c.CpfCnpj != cpfCnpj {
			continue
		}
		if email != "" && c.Email != email {
			continue
		}
		out = append(out, *c)
	}
	return out
}

func (m *Memory) HasCustomer(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.customers[id]
	return ok
}

// CreatePayment registra a cobrança; cartão é aprovado na hora, como no Asaas
func (m *Memory) CreatePayment(req asaas.PaymentRequest, baseURL string) asaas.Payment {
	p := asaas.Payment{
		ID:                newID("pay_"),
		Customer:          req.Customer,
		Status:            asaas.PaymentPending,
		BillingType:       req.BillingType,
		Value:             req.Value,
		NetValue:          req.Value,
		DueDate:           req.DueDate,
		ExternalReference: req.ExternalReference,
	}
	if req.BillingType == asaas.BillingCreditCard && req.CreditCard != nil {
		p.Status = asaas.PaymentConfirmed
	}
	p.InvoiceURL = baseURL + "/i/" + p.ID
	if req.BillingType == asaas.BillingBoleto {
		p.BankSlipURL = baseURL + "/b/pdf/" + p.ID
	}
	m.mu.Lock()
	m.payments[p.ID] = &p
	m.mu.Unlock()
	return p
}

func (m *Memory) GetPayment(id string) (asaas.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok {
		return asaas.Payment{}, ErrNotFound
	}
	return *p, nil
}

// SetStatus altera o status de uma cobrança não removida
func (m *Memory) SetStatus(id, status string) (asaas.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Deleted {
		return asaas.Payment{}, ErrNotFound
	}
	p.Status = status
	return *p, nil
}

// DeletePayment só remove cobranças ainda não pagas
func (m *Memory) DeletePayment(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Deleted {
		return ErrNotFound
	}
	if !open(p.Status) {
		return ErrInvalidStatus
	}
	p.Deleted = true
	return nil
}

// Refund estorna uma cobrança paga. Estorno parcial mantém o status.
func (m *Memory) Refund(id string, value float64) (p asaas.Payment, partial bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.payments[id]
	if !ok || cur.Deleted {
		return asaas.Payment{}, false, ErrNotFound
	}
	if !paid(cur.Status) || value < 0 || value > cur.Value {
		return asaas.Payment{}, false, ErrInvalidStatus
	}
	if value > 0 && value < cur.Value {
		return *cur, true, nil
	}
	cur.Status = asaas.PaymentRefunded
	return *cur, false, nil
}

func (m *Memory) CreateLink(req asaas.PaymentLinkRequest, baseURL string) asaas.PaymentLink {
	id := newID("")
	l := asaas.PaymentLink{
		ID:                id,
		Name:              req.Name,
		Value:             req.Value,
		Active:            true,
		URL:               baseURL + "/c/" + id,
		ExternalReference: req.ExternalReference,
	}
	m.mu.Lock()
	m.links[l.ID] = &l
	m.mu.Unlock()
	return l
}

// PayLink simula o pagador concluindo o link: gera uma cobrança recebida
func (m *Memory) PayLink(id string, billing asaas.BillingType) (asaas.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[id]
	if !ok || !l.Active {
		return asaas.Payment{}, ErrNotFound
	}
	p := asaas.Payment{
		ID:          newID("pay_"),
		Customer:    newID("cus_"),
		PaymentLink: l.ID,
		Status:      asaas.PaymentReceived,
		BillingType: billing,
		Value:       l.Value,
		NetValue:    l.Value,
	}
	m.payments[p.ID] = &p
	return p, nil
}

func (m *Memory) CreateCheckout(req asaas.CheckoutRequest, baseURL string) asaas.Checkout {
	id := uuid.NewString()
	c := asaas.Checkout{ID: id, Link: baseURL + "/checkoutSession/show?id=" + id, Status: "ACTIVE"}
	m.mu.Lock()
	m.checkouts[id] = &checkoutEntry{checkout: c, req: req}
	m.mu.Unlock()
	return c
}

// PayCheckout conclui a sessão e devolve a cobrança gerada
func (m *Memory) PayCheckout(id string, billing asaas.BillingType) (asaas.Checkout, asaas.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.checkouts[id]
	if !ok {
		return asaas.Checkout{}, asaas.Payment{}, ErrNotFound
	}
	if e.checkout.Status != "ACTIVE" {
		return asaas.Checkout{}, asaas.Payment{}, ErrInvalidStatus
	}
	var total float64
	for _, it := range e.req.Items {
		total += it.Value * float64(max(it.Quantity, 1))
	}
	status := asaas.PaymentReceived
	if billing == asaas.BillingCreditCard {
		status = asaas.PaymentConfirmed
	}
	p := asaas.Payment{
		ID:                newID("pay_"),
		Customer:          e.req.Customer,
		CheckoutSession:   id,
		Status:            status,
		BillingType:       billing,
		Value:             total,
		NetValue:          total,
		ExternalReference: e.req.ExternalReference,
	}
	m.payments[p.ID] = &p
	e.checkout.Status = "PAID"
	return e.checkout, p, nil
}

func open(status string) bool {
	switch status {
	case asaas.PaymentPending, asaas.PaymentOverdue, asaas.PaymentAwaitingRiskAnalysis:
		return true
	}
	return false
}

func paid(status string) bool {
	switch status {
	case asaas.PaymentConfirmed, asaas.PaymentReceived, "RECEIVED_IN_CASH":
		return true
	}
	return false
}
