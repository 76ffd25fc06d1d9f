package dto

import "time"

// ActiveSubscription representa a resposta de /internal/subscriptions/active do payment-service.
type ActiveSubscription struct {
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
