package dto

import "time"

type PixResponse struct {
	EncodedImage   string `json:"encoded_image"`
	Payload        string `json:"payload"`
	ExpirationDate string `json:"expiration_date,omitempty"`
}

type PaymentResponse struct {
	ID             string       `json:"id"` // id da cobrança no Asaas
	SubscriptionID string       `json:"subscription_id,omitempty"`
	BillingType    string       `json:"billing_type"`
	ValueCents     int64        `json:"value_cents"`
	Status         string       `json:"status"`
	DueDate        string       `json:"due_date,omitempty"`
	InvoiceURL     string       `json:"invoice_url,omitempty"`
	Pix            *PixResponse `json:"pix,omitempty"`
}

type CheckoutResponse struct {
	SubscriptionID string           `json:"subscription_id"`
	Status         string           `json:"status"`
	Mode           string           `json:"mode"`
	Payment        *PaymentResponse `json:"payment,omitempty"`
	URL            string           `json:"url,omitempty"` // link de pagamento ou checkout hospedado
}

type SubscriptionResponse struct {
	ID             string     `json:"id"`
	SubscriberKind string     `json:"subscriber_kind"`
	SubscriberID   string     `json:"subscriber_id"`
	PlanID         string     `json:"plan_id"`
	Status         string     `json:"status"`
	PaymentLinkURL string     `json:"payment_link_url,omitempty"`
	CheckoutURL    string     `json:"checkout_url,omitempty"`
	CancelReason   string     `json:"cancel_reason,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ActiveSubscriptionResponse também é o contrato de /internal/subscriptions/active
type ActiveSubscriptionResponse struct {
	SubscriptionID string     `json:"subscription_id"`
	SubscriberKind string     `json:"subscriber_kind"`
	SubscriberID   string     `json:"subscriber_id"`
	PlanID         string     `json:"plan_id"`
	PlanName       string     `json:"plan_name"`
	PriceCents     int64      `json:"price_cents"`
	BillingCycle   string     `json:"billing_cycle"`
	CategoryIDs    []string   `json:"category_ids"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
