package dto

import "time"

type CheckinResponse struct {
	CheckinID      string    `json:"checkin_id"`
	UserID         string    `json:"user_id"`
	AcademiaID     string    `json:"academia_id"`
	SubscriptionID string    `json:"subscription_id"`
	PlanID         string    `json:"plan_id"`
	PayoutCents    int64     `json:"payout_cents"`
	CheckedInAt    time.Time `json:"checked_in_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
