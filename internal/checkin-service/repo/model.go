package repo

import (
	"database/sql"
	"time"
)

type Academia struct {
	ID          string         `db:"id"`
	Nome        string         `db:"nome"`
	CategoriaID sql.NullString `db:"categoria_id"`
	Ativo       bool           `db:"ativo"`
}

// Tipos de regra de repasse
const (
	RulePerCheckin = "por_checkin"
	RulePercentual = "percentual"
)

type PayoutRule struct {
	ID                string `db:"id"`
	AcademiaID        string `db:"academia_id"`
	Tipo              string `db:"tipo"`
	ValorCents        int64  `db:"valor_cents"`
	PercentualBps     int    `db:"percentual_bps"`
	LimiteMensalCents int64  `db:"limite_mensal_cents"`
}

type Checkin struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	AcademiaID     string    `db:"academia_id" json:"academia_id"`
	SubscriptionID string    `db:"subscription_id" json:"subscription_id"`
	PlanID         string    `db:"plan_id" json:"plan_id"`
	PayoutCents    int64     `db:"payout_cents" json:"payout_cents"`
	CheckedInAt    time.Time `db:"checked_in_at" json:"checked_in_at"`
	CheckinDate    time.Time `db:"checkin_date" json:"checkin_date"`
}
