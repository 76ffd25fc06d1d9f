package events

import "time"

// GymCheckin é publicado no tópico "gym_checkins" para consolidação de repasses.
type GymCheckin struct {
	CheckinID      string    `json:"checkin_id"`
	UserID         string    `json:"user_id"`
	AcademiaID     string    `json:"academia_id"`
	SubscriptionID string    `json:"subscription_id"`
	PlanID         string    `json:"plan_id"`
	PayoutCents    int64     `json:"payout_cents"`
	CheckedInAt    time.Time `json:"checked_in_at"`
}
