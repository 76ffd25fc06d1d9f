package repo

import (
	"time"

	"github.com/radieske/fitness-benefits-platform/internal/shared/subscription"
)

// PaymentEvent é o evento do Asaas já normalizado para reconciliação
type PaymentEvent struct {
	EventID string
	Event   string

	PaymentID         string // vazio em eventos de checkout sem cobrança
	PaymentStatus     string
	Customer          string
	BillingType       string
	ValueCents        int64
	InvoiceURL        string
	DueDate           *time.Time
	ExternalReference string
	PaymentLinkID     string
	CheckoutID        string

	Now time.Time
}

// Change descreve uma transição aplicada a uma assinatura
type Change struct {
	Kind           subscription.Kind
	SubscriptionID string
	SubscriberID   string
	PlanID         string
	From           subscription.Status
	To             subscription.Status
	Reason         string
}

// Outcome é o resultado de ApplyPaymentEvent, usado para os efeitos pós-commit
type Outcome struct {
	Resolved       bool
	Kind           subscription.Kind
	SubscriptionID string
	SubscriberID   string
	Status         subscription.Status // status final da assinatura

	PaymentStatus string
	Change        *Change  // nil quando nada mudou
	Rejected      error    // transição ignorada pela máquina de estados
	Superseded    []Change // concorrentes canceladas pela ativação
	OpenPayments  []string // cobranças em aberto das concorrentes (remover no Asaas)
}

// SweepCandidate é uma cobrança local ainda sem desfecho
type SweepCandidate struct {
	AsaasID   string
	Status    string
	CreatedAt time.Time
}
