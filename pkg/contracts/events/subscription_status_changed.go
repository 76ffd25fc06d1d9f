package events

import "time"

// Evento emitido pelo subscription-worker após cada transição de assinatura.
type SubscriptionStatusChanged struct {
	SubscriptionID string    `json:"subscription_id"`
	SubscriberKind string    `json:"subscriber_kind"` // "user" | "business"
	SubscriberID   string    `json:"subscriber_id"`
	PlanID         string    `json:"plan_id"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	Reason         string    `json:"reason,omitempty"`
	EventID        string    `json:"event_id,omitempty"`
	Ts             time.Time `json:"ts"`
}

// PaymentStatusUpdate é publicado no Redis Pub/Sub para o WebSocket do checkout
type PaymentStatusUpdate struct {
	PaymentID          string `json:"paymentId"`
	SubscriptionID     string `json:"subscriptionId,omitempty"`
	PaymentStatus      string `json:"paymentStatus"`
	SubscriptionStatus string `json:"subscriptionStatus,omitempty"`
}
