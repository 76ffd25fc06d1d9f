// Package checkout orquestra a contratação de planos no Asaas: cliente,
// assinatura pendente e cobrança (avulsa, link ou checkout hospedado).
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/fitness-benefits-platform/internal/payment-service/dto"
	"github.com/radieske/fitness-benefits-platform/internal/payment-service/repo"
	"github.com/radieske/fitness-benefits-platform/internal/shared/asaas"
	"github.com/radieske/fitness-benefits-platform/internal/shared/subscription"
)

var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrPlanNotFound     = errors.New("plan not found")
	ErrPlanInactive     = errors.New("plan inactive")
	ErrAudienceMismatch = errors.New("plan not available for subscriber kind")
	ErrGateway          = errors.New("payment gateway error")
	ErrNotRefundable    = errors.New("payment not refundable")
	ErrNotPix           = errors.New("payment is not PIX")
)

// Gateway é o subconjunto do cliente Asaas usado no checkout
type Gateway interface {
	CreateCustomer(ctx context.Context, req asaas.CustomerRequest) (*asaas.Customer, error)
	FindCustomers(ctx context.Context, cpfCnpj, email string) ([]asaas.Customer, error)
	CreatePayment(ctx context.Context, req asaas.PaymentRequest) (*asaas.Payment, error)
	GetPayment(ctx context.Context, id string) (*asaas.Payment, error)
	GetPixQrCode(ctx context.Context, paymentID string) (*asaas.PixQrCode, error)
	DeletePayment(ctx context.Context, id string) error
	RefundPayment(ctx context.Context, id string, req asaas.RefundRequest) (*asaas.Payment, error)
	CreatePaymentLink(ctx context.Context, req asaas.PaymentLinkRequest) (*asaas.PaymentLink, error)
	CreateCheckout(ctx context.Context, req asaas.CheckoutRequest) (*asaas.Checkout, error)
}

type Plans interface {
	GetPlan(ctx context.Context, id string) (*repo.Plan, error)
}

type Store interface {
	GetCustomerBySubscriber(ctx context.Context, kind subscription.Kind, subscriberID string) (*repo.Customer, error)
	SaveCustomer(ctx context.Context, c *repo.Customer) (*repo.Customer, error)
	CreateSubscription(ctx context.Context, s *repo.Subscription) error
	GetSubscription(ctx context.Context, kind subscription.Kind, id string) (*repo.Subscription, error)
	SetGatewayRefs(ctx context.Context, kind subscription.Kind, id string, refs repo.GatewayRefs) error
	CancelSubscription(ctx context.Context, kind subscription.Kind, id, reason string) (subscription.Status, error)
	ActiveSubscription(ctx context.Context, kind subscription.Kind, subscriberID string) (*repo.ActiveSubscription, error)
	InsertPayment(ctx context.Context, p *repo.Payment) error
	GetPaymentByAsaasID(ctx context.Context, asaasID string) (*repo.Payment, error)
	OpenPayments(ctx context.Context, subscriptionID string) ([]repo.Payment, error)
}

// Cache da assinatura ativa (implementado por cache.JSON)
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type Options struct {
	DueDays         int
	SuccessURL      string
	CancelURL       string
	ExpiredURL      string
	CheckoutMinutes int
	ActiveCacheTTL  time.Duration
}

type Service struct {
	log      *zap.Logger
	plans    Plans
	store    Store
	gw       Gateway
	cache    Cache
	opts     Options
	validate *validator.Validate
	now      func() time.Time

	// callbacks de métricas
	OnCheckout     func(mode string)
	OnCompensation func()
}

func NewService(log *zap.Logger, plans Plans, store Store, gw Gateway, cache Cache, opts Options) *Service {
	if opts.DueDays <= 0 {
		opts.DueDays = 3
	}
	if opts.CheckoutMinutes <= 0 {
		opts.CheckoutMinutes = 60
	}
	if opts.ActiveCacheTTL <= 0 {
		opts.ActiveCacheTTL = 5 * time.Minute
	}
	return &Service{
		log: log, plans: plans, store: store, gw: gw, cache: cache, opts: opts,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Checkout contrata um plano. Em falha do gateway a assinatura pendente é
// cancelada com motivo gateway_error e o erro sai embrulhado em ErrGateway.
func (s *Service) Checkout(ctx context.Context, req dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	req.Customer.CpfCnpj = onlyDigits(req.Customer.CpfCnpj)
	req.Customer.Phone = onlyDigits(req.Customer.Phone)
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := s.checkBilling(req); err != nil {
		return nil, err
	}
	kind := subscription.Kind(req.SubscriberKind)

	plan, err := s.plans.GetPlan(ctx, req.PlanID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, ErrPlanInactive
	}
	if plan.Audience != string(kind) {
		return nil, ErrAudienceMismatch
	}

	cust, err := s.EnsureCustomer(ctx, kind, req.SubscriberID, req.Customer)
	if err != nil {
		return nil, err
	}

	sub := &repo.Subscription{
		ID:              uuid.New().String(),
		Kind:            kind,
		SubscriberID:    req.SubscriberID,
		PlanID:          plan.ID,
		Status:          subscription.StatusPending,
		AsaasCustomerID: cust.AsaasID,
	}
	if err := s.store.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	resp, err := s.charge(ctx, req, plan, cust, sub)
	if err != nil {
		s.log.Warn("checkout failed, cancelling subscription",
			zap.String("subscription_id", sub.ID), zap.String("mode", req.Mode), zap.Error(err))
		if _, cerr := s.store.CancelSubscription(context.WithoutCancel(ctx), kind, sub.ID, subscription.ReasonGatewayError); cerr != nil {
			s.log.Error("compensation failed", zap.String("subscription_id", sub.ID), zap.Error(cerr))
		}
		if s.OnCompensation != nil {
			s.OnCompensation()
		}
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	if s.OnCheckout != nil {
		s.OnCheckout(req.Mode)
	}
	s.log.Info("checkout created",
		zap.String("subscription_id", sub.ID),
		zap.String("plan_id", plan.ID),
		zap.String("kind", string(kind)),
		zap.String("mode", req.Mode))
	return resp, nil
}

func (s *Service) checkBilling(req dto.CheckoutRequest) error {
	if req.Mode != dto.ModePayment {
		return nil
	}
	switch asaas.BillingType(req.BillingType) {
	case "", asaas.BillingUndefined:
		return fmt.Errorf("%w: billing_type required for mode payment", ErrInvalidRequest)
	case asaas.BillingCreditCard:
		if req.CreditCard == nil {
			return fmt.Errorf("%w: credit_card required for CREDIT_CARD", ErrInvalidRequest)
		}
	}
	return nil
}

// EnsureCustomer devolve o cliente Asaas do assinante: primeiro o mapeamento
// local, depois busca por CPF/CNPJ no Asaas e, por fim, cria um novo.
func (s *Service) EnsureCustomer(ctx context.Context, kind subscription.Kind, subscriberID string, data dto.CustomerData) (*repo.Customer, error) {
	c, err := s.store.GetCustomerBySubscriber(ctx, kind, subscriberID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	found, err := s.gw.FindCustomers(ctx, data.CpfCnpj, "")
	if err != nil {
		return nil, fmt.Errorf("%w: find customer: %v", ErrGateway, err)
	}
	var asaasID string
	if len(found) > 0 {
		asaasID = found[0].ID
	} else {
		created, err := s.gw.CreateCustomer(ctx, asaas.CustomerRequest{
			Name:                 data.Name,
			CpfCnpj:              data.CpfCnpj,
			Email:                data.Email,
			MobilePhone:          data.Phone,
			ExternalReference:    subscriberID,
			NotificationDisabled: true,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: create customer: %v", ErrGateway, err)
		}
		asaasID = created.ID
	}

	return s.store.SaveCustomer(ctx, &repo.Customer{
		Kind:         kind,
		SubscriberID: subscriberID,
		AsaasID:      asaasID,
		CpfCnpj:      data.CpfCnpj,
		Email:        data.Email,
		Name:         data.Name,
	})
}

func (s *Service) charge(ctx context.Context, req dto.CheckoutRequest, plan *repo.Plan, cust *repo.Customer, sub *repo.Subscription) (*dto.CheckoutResponse, error) {
	resp := &dto.CheckoutResponse{
		SubscriptionID: sub.ID,
		Status:         string(subscription.StatusPending),
		Mode:           req.Mode,
	}
	value := asaas.CentsToValue(plan.PriceCents)
	description := "Plano " + plan.Name

	switch req.Mode {
	case dto.ModePayment:
		pay, err := s.createPayment(ctx, req, plan, cust, sub, value, description)
		if err != nil {
			return nil, err
		}
		resp.Payment = pay

	case dto.ModeLink:
		billing := asaas.BillingType(req.BillingType)
		if billing == "" {
			billing = asaas.BillingUndefined
		}
		link, err := s.gw.CreatePaymentLink(ctx, asaas.PaymentLinkRequest{
			Name:              plan.Name,
			Description:       description,
			Value:             value,
			BillingType:       billing,
			ChargeType:        asaas.ChargeDetached,
			DueDateLimitDays:  s.opts.DueDays,
			ExternalReference: sub.ID,
		})
		if err != nil {
			return nil, err
		}
		if err := s.store.SetGatewayRefs(ctx, sub.Kind, sub.ID, repo.GatewayRefs{
			PaymentLinkID: link.ID, PaymentLinkURL: link.URL,
		}); err != nil {
			return nil, err
		}
		resp.URL = link.URL

	case dto.ModeCheckout:
		co, err := s.gw.CreateCheckout(ctx, asaas.CheckoutRequest{
			BillingTypes:      []asaas.BillingType{asaas.BillingPix, asaas.BillingCreditCard},
			ChargeTypes:       []string{asaas.ChargeDetached},
			MinutesToExpire:   s.opts.CheckoutMinutes,
			ExternalReference: sub.ID,
			Callback: asaas.CheckoutCallback{
				SuccessURL: s.opts.SuccessURL,
				CancelURL:  s.opts.CancelURL,
				ExpiredURL: s.opts.ExpiredURL,
			},
			Items:    []asaas.CheckoutItem{{Name: plan.Name, Description: description, Quantity: 1, Value: value}},
			Customer: cust.AsaasID,
		})
		if err != nil {
			return nil, err
		}
		if err := s.store.SetGatewayRefs(ctx, sub.Kind, sub.ID, repo.GatewayRefs{
			CheckoutID: co.ID, CheckoutURL: co.Link,
		}); err != nil {
			return nil, err
		}
		resp.URL = co.Link

	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, req.Mode)
	}
	return resp, nil
}

func (s *Service) createPayment(ctx context.Context, req dto.CheckoutRequest, plan *repo.Plan, cust *repo.Customer, sub *repo.Subscription, value float64, description string) (*dto.PaymentResponse, error) {
	due := s.now().AddDate(0, 0, s.opts.DueDays)
	preq := asaas.PaymentRequest{
		Customer:          cust.AsaasID,
		BillingType:       asaas.BillingType(req.BillingType),
		Value:             value,
		DueDate:           due.Format(time.DateOnly),
		Description:       description,
		ExternalReference: sub.ID,
		RemoteIP:          req.RemoteIP,
	}
	if cc := req.CreditCard; cc != nil {
		preq.CreditCard = &asaas.CreditCard{
			HolderName:  cc.HolderName,
			Number:      cc.Number,
			ExpiryMonth: cc.ExpiryMonth,
			ExpiryYear:  cc.ExpiryYear,
			Ccv:         cc.Ccv,
		}
		preq.CreditCardHolderInfo = &asaas.CreditCardHolderInfo{
			Name:          req.Customer.Name,
			Email:         req.Customer.Email,
			CpfCnpj:       req.Customer.CpfCnpj,
			PostalCode:    cc.PostalCode,
			AddressNumber: cc.AddrNumber,
			Phone:         req.Customer.Phone,
		}
	}

	p, err := s.gw.CreatePayment(ctx, preq)
	if err != nil {
		return nil, err
	}

	local := &repo.Payment{
		AsaasID:         p.ID,
		Kind:            sub.Kind,
		SubscriptionID:  sub.ID,
		AsaasCustomerID: cust.AsaasID,
		BillingType:     string(p.BillingType),
		ValueCents:      asaas.ValueToCents(p.Value),
		Status:          p.Status,
		InvoiceURL:      p.InvoiceURL,
	}
	if d, err := time.Parse(time.DateOnly, p.DueDate); err == nil {
		local.DueDate = &d
	}
	if err := s.store.InsertPayment(ctx, local); err != nil {
		// cobrança órfã no Asaas: remove para não ficar pendente sem registro
		if derr := s.gw.DeletePayment(context.WithoutCancel(ctx), p.ID); derr != nil {
			s.log.Error("delete orphan payment failed", zap.String("payment_id", p.ID), zap.Error(derr))
		}
		return nil, err
	}

	out := paymentResponse(local)
	if p.BillingType == asaas.BillingPix {
		qr, err := s.gw.GetPixQrCode(ctx, p.ID)
		if err != nil {
			// o QR pode ser buscado depois em /v1/payments/{id}/pix
			s.log.Warn("pix qr code unavailable", zap.String("payment_id", p.ID), zap.Error(err))
		} else {
			out.Pix = pixResponse(qr)
		}
	}
	return out, nil
}

// CancelSubscription cancela a assinatura a pedido do assinante e remove
// as cobranças em aberto no Asaas.
func (s *Service) CancelSubscription(ctx context.Context, kind subscription.Kind, id string) (*repo.Subscription, error) {
	sub, err := s.store.GetSubscription(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.CancelSubscription(ctx, kind, id, subscription.ReasonUserRequest); err != nil {
		return nil, err
	}

	open, err := s.store.OpenPayments(ctx, id)
	if err != nil {
		s.log.Warn("list open payments failed", zap.String("subscription_id", id), zap.Error(err))
	}
	for _, p := range open {
		if err := s.gw.DeletePayment(ctx, p.AsaasID); err != nil && !errors.Is(err, asaas.ErrNotFound) {
			s.log.Warn("delete payment failed", zap.String("payment_id", p.AsaasID), zap.Error(err))
		}
	}
	s.invalidate(ctx, kind, sub.SubscriberID)

	return s.store.GetSubscription(ctx, kind, id)
}

// Payment devolve a cobrança local (usada também para checagem de acesso)
func (s *Service) Payment(ctx context.Context, asaasID string) (*repo.Payment, error) {
	return s.store.GetPaymentByAsaasID(ctx, asaasID)
}

// RefreshPayment consulta o Asaas para devolver o status mais recente
func (s *Service) RefreshPayment(ctx context.Context, local *repo.Payment) (*dto.PaymentResponse, error) {
	out := paymentResponse(local)
	p, err := s.gw.GetPayment(ctx, local.AsaasID)
	if err != nil {
		s.log.Warn("get payment from gateway failed, using local copy", zap.String("payment_id", local.AsaasID), zap.Error(err))
		return out, nil
	}
	out.Status = p.Status
	if p.InvoiceURL != "" {
		out.InvoiceURL = p.InvoiceURL
	}
	return out, nil
}

func (s *Service) Pix(ctx context.Context, local *repo.Payment) (*dto.PixResponse, error) {
	if local.BillingType != string(asaas.BillingPix) {
		return nil, ErrNotPix
	}
	qr, err := s.gw.GetPixQrCode(ctx, local.AsaasID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	return pixResponse(qr), nil
}

// Refund solicita o estorno; a mudança de status da assinatura chega pelo webhook
func (s *Service) Refund(ctx context.Context, local *repo.Payment, req dto.RefundRequest) (*dto.PaymentResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	switch local.Status {
	case asaas.PaymentConfirmed, asaas.PaymentReceived, "RECEIVED_IN_CASH":
	default:
		return nil, ErrNotRefundable
	}
	if req.ValueCents > local.ValueCents {
		return nil, fmt.Errorf("%w: value above payment", ErrInvalidRequest)
	}

	p, err := s.gw.RefundPayment(ctx, local.AsaasID, asaas.RefundRequest{
		Value:       asaas.CentsToValue(req.ValueCents),
		Description: req.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	s.log.Info("refund requested", zap.String("payment_id", local.AsaasID), zap.Int64("value_cents", req.ValueCents))

	out := paymentResponse(local)
	out.Status = p.Status
	return out, nil
}

// ActiveSubscription lê a assinatura ativa com cache no Redis.
// Ausência de assinatura não é cacheada.
func (s *Service) ActiveSubscription(ctx context.Context, kind subscription.Kind, subscriberID string) (*dto.ActiveSubscriptionResponse, error) {
	key := subscription.ActiveCacheKey(kind, subscriberID)
	if s.cache != nil {
		var cached dto.ActiveSubscriptionResponse
		if ok, err := s.cache.Get(ctx, key, &cached); err != nil {
			s.log.Warn("active subscription cache read failed", zap.Error(err))
		} else if ok && (cached.ExpiresAt == nil || cached.ExpiresAt.After(s.now())) {
			return &cached, nil
		}
	}

	a, err := s.store.ActiveSubscription(ctx, kind, subscriberID)
	if err != nil {
		return nil, err
	}
	out := &dto.ActiveSubscriptionResponse{
		SubscriptionID: a.SubscriptionID,
		SubscriberKind: string(a.Kind),
		SubscriberID:   a.SubscriberID,
		PlanID:         a.PlanID,
		PlanName:       a.PlanName,
		PriceCents:     a.PriceCents,
		BillingCycle:   a.BillingCycle,
		CategoryIDs:    a.CategoryIDs,
		StartedAt:      a.StartedAt,
		ExpiresAt:      a.ExpiresAt,
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, out, s.opts.ActiveCacheTTL); err != nil {
			s.log.Warn("active subscription cache write failed", zap.Error(err))
		}
	}
	return out, nil
}

func (s *Service) invalidate(ctx context.Context, kind subscription.Kind, subscriberID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, subscription.ActiveCacheKey(kind, subscriberID)); err != nil {
		s.log.Warn("active subscription cache invalidation failed", zap.Error(err))
	}
}

func paymentResponse(p *repo.Payment) *dto.PaymentResponse {
	out := &dto.PaymentResponse{
		ID:             p.AsaasID,
		SubscriptionID: p.SubscriptionID,
		BillingType:    p.BillingType,
		ValueCents:     p.ValueCents,
		Status:         p.Status,
		InvoiceURL:     p.InvoiceURL,
	}
	if p.DueDate != nil {
		out.DueDate = p.DueDate.Format(time.DateOnly)
	}
	return out
}

func pixResponse(qr *asaas.PixQrCode) *dto.PixResponse {
	return &dto.PixResponse{
		EncodedImage:   qr.EncodedImage,
		Payload:        qr.Payload,
		ExpirationDate: qr.ExpirationDate,
	}
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
