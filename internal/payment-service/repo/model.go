package repo

import (
	"time"

	"github.com/lib/pq"

	"github.com/radieske/fitness-benefits-platform/internal/shared/subscription"
)

// Plan é um plano de benefícios do catálogo
type Plan struct {
	ID           string         `db:"id" json:"id"`
	Name         string         `db:"nome" json:"name"`
	Description  string         `db:"descricao" json:"description"`
	PriceCents   int64          `db:"price_cents" json:"price_cents"`
	BillingCycle string         `db:"billing_cycle" json:"billing_cycle"`
	Audience     string         `db:"audience" json:"audience"`
	Active       bool           `db:"ativo" json:"active"`
	CategoryIDs  pq.StringArray `db:"categoria_ids" json:"category_ids"`
}

// Subscription é uma linha de user_plan_subscriptions ou business_plan_subscriptions
type Subscription struct {
	ID              string
	Kind            subscription.Kind
	SubscriberID    string
	PlanID          string
	Status          subscription.Status
	AsaasCustomerID string
	PaymentLinkID   string
	PaymentLinkURL  string
	CheckoutID      string
	CheckoutURL     string
	CancelReason    string
	StartedAt       *time.Time
	ExpiresAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// GatewayRefs são os identificadores do Asaas associados à assinatura
type GatewayRefs struct {
	AsaasCustomerID string
	PaymentLinkID   string
	PaymentLinkURL  string
	CheckoutID      string
	CheckoutURL     string
}

// Customer mapeia um assinante local para o cliente no Asaas
type Customer struct {
	ID           string
	Kind         subscription.Kind
	SubscriberID string
	AsaasID      string
	CpfCnpj      string
	Email        string
	Name         string
}

// Payment é o espelho local de uma cobrança do Asaas
type Payment struct {
	ID              string
	AsaasID         string
	Kind            subscription.Kind
	SubscriptionID  string
	AsaasCustomerID string
	BillingType     string
	ValueCents      int64
	Status          string
	InvoiceURL      string
	DueDate         *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ActiveSubscription é a visão da assinatura ativa com os dados do plano
type ActiveSubscription struct {
	SubscriptionID string
	Kind           subscription.Kind
	SubscriberID   string
	PlanID         string
	PlanName       string
	PriceCents     int64
	BillingCycle   string
	CategoryIDs    []string
	StartedAt      *time.Time
	ExpiresAt      *time.Time
}

// WebhookEvent é o registro de entrada de um webhook (idempotência por event_id)
type WebhookEvent struct {
	EventID   string
	EventType string
	PaymentID string
	Payload   []byte
}
