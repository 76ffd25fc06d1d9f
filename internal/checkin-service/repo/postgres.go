package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyCheckedIn = errors.New("already checked in today")
)

const uniqueViolation = "23505"

type Postgres struct{ db *sqlx.DB }

func NewPostgres(db *sqlx.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) GetAcademia(ctx context.Context, id string) (*Academia, error) {
	var a Academia
	err := p.db.GetContext(ctx, &a, `SELECT id, nome, categoria_id, ativo FROM academias WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ActiveRule retorna a regra de repasse vigente mais recente da academia
func (p *Postgres) ActiveRule(ctx context.Context, academiaID string) (*PayoutRule, error) {
	var r PayoutRule
	err := p.db.GetContext(ctx, &r, `
		SELECT id, academia_id, tipo, valor_cents, percentual_bps, limite_mensal_cents
		FROM regras_repasse
		WHERE academia_id=$1 AND ativo
		ORDER BY created_at DESC LIMIT 1`, academiaID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// MonthPayout soma o repasse já gerado pelo usuário na academia no mês de day
func (p *Postgres) MonthPayout(ctx context.Context, userID, academiaID string, day time.Time) (int64, error) {
	var total int64
	err := p.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(payout_cents), 0) FROM gym_check_ins
		WHERE user_id=$1 AND academia_id=$2
		  AND checkin_date >= date_trunc('month', $3::date)
		  AND checkin_date <= $3::date`, userID, academiaID, day.Format(time.DateOnly))
	return total, err
}

// InsertCheckin grava o check-in; a unicidade por dia é garantida pelo índice
func (p *Postgres) InsertCheckin(ctx context.Context, c *Checkin) error {
	_, err := p.db.NamedExecContext(ctx, `
		INSERT INTO gym_check_ins(id, user_id, academia_id, subscription_id, plan_id, payout_cents, checked_in_at, checkin_date)
		VALUES (:id, :user_id, :academia_id, :subscription_id, :plan_id, :payout_cents, :checked_in_at, :checkin_date)`, c)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrAlreadyCheckedIn
	}
	return err
}

const checkinColumns = `id, user_id, academia_id, subscription_id, plan_id, payout_cents, checked_in_at, checkin_date`

// ListByAcademia lista check-ins no intervalo [from, to)
func (p *Postgres) ListByAcademia(ctx context.Context, academiaID string, from, to time.Time) ([]Checkin, error) {
	out := []Checkin{}
	err := p.db.SelectContext(ctx, &out, `SELECT `+checkinColumns+` FROM gym_check_ins
		WHERE academia_id=$1 AND checked_in_at >= $2 AND checked_in_at < $3
		ORDER BY checked_in_at DESC`, academiaID, from, to)
	return out, err
}

func (p *Postgres) ListByUser(ctx context.Context, userID string, limit int) ([]Checkin, error) {
	out := []Checkin{}
	err := p.db.SelectContext(ctx, &out, `SELECT `+checkinColumns+` FROM gym_check_ins
		WHERE user_id=$1 ORDER BY checked_in_at DESC LIMIT $2`, userID, limit)
	return out, err
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }
