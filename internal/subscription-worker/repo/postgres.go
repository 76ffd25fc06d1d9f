package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/radieske/fitness-benefits-platform/internal/shared/subscription"
)

// Postgres aplica os eventos do Asaas sobre assinaturas e cobranças
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// ErrStaleEvent indica um evento que chegou depois de um desfecho mais recente
var ErrStaleEvent = errors.New("stale payment event")

var paidStatuses = map[string]bool{"CONFIRMED": true, "RECEIVED": true, "RECEIVED_IN_CASH": true}

// mergePaymentStatus evita regredir uma cobrança paga para pendente/vencida
func mergePaymentStatus(prev, next string) string {
	if next == "" {
		return prev
	}
	if paidStatuses[prev] && (next == "PENDING" || next == "OVERDUE" || next == "CONFIRMED") {
		return prev
	}
	return next
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ApplyPaymentEvent reconcilia um evento numa única transação:
// espelho da cobrança, transição da assinatura, cancelamento das concorrentes,
// auditoria em subscription_transitions e marcação do webhook como PROCESSED.
func (p *Postgres) ApplyPaymentEvent(ctx context.Context, ev PaymentEvent) (*Outcome, error) {
	if ev.Now.IsZero() {
		ev.Now = time.Now()
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out := &Outcome{PaymentStatus: ev.PaymentStatus}

	// 1. resolve a assinatura: cobrança local -> externalReference -> link -> checkout
	var kind, subID, prevPaymentStatus string
	known := false
	if ev.PaymentID != "" {
		err = tx.QueryRowContext(ctx,
			`SELECT subscriber_kind, COALESCE(subscription_id::text,''), status FROM asaas_payments WHERE asaas_id=$1 FOR UPDATE`,
			ev.PaymentID).Scan(&kind, &subID, &prevPaymentStatus)
		switch {
		case err == nil:
			known = true
		case !errors.Is(err, sql.ErrNoRows):
			return nil, err
		}
	}
	lookups := []struct{ expr, value string }{
		{"id::text", ev.ExternalReference},
		{"payment_link_id", ev.PaymentLinkID},
		{"checkout_id", ev.CheckoutID},
	}
	for _, l := range lookups {
		if subID != "" {
			break
		}
		if l.value == "" {
			continue
		}
		if kind, subID, err = resolveBy(ctx, tx, l.expr, l.value); err != nil {
			return nil, err
		}
	}

	// 2. espelho da cobrança
	if ev.PaymentID != "" {
		out.PaymentStatus = mergePaymentStatus(prevPaymentStatus, ev.PaymentStatus)
		if known {
			if _, err = tx.ExecContext(ctx, `
				UPDATE asaas_payments SET
					status = $2,
					value_cents = COALESCE(NULLIF($3::bigint, 0), value_cents),
					invoice_url = COALESCE(NULLIF($4, ''), invoice_url),
					subscription_id = COALESCE(subscription_id, $5::uuid),
					updated_at = NOW()
				WHERE asaas_id = $1`,
				ev.PaymentID, out.PaymentStatus, ev.ValueCents, ev.InvoiceURL, nullable(subID)); err != nil {
				return nil, err
			}
		} else if subID != "" {
			// cobrança criada fora do payment-service (link/checkout)
			if out.PaymentStatus == "" {
				out.PaymentStatus = "PENDING"
			}
			var due any
			if ev.DueDate != nil {
				due = *ev.DueDate
			}
			if _, err = tx.ExecContext(ctx, `
				INSERT INTO asaas_payments(id, asaas_id, subscriber_kind, subscription_id, asaas_customer_id,
					billing_type, value_cents, status, invoice_url, due_date)
				VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
				ON CONFLICT (asaas_id) DO NOTHING`,
				uuid.New().String(), ev.PaymentID, kind, subID, ev.Customer,
				ev.BillingType, ev.ValueCents, out.PaymentStatus, ev.InvoiceURL, due); err != nil {
				return nil, err
			}
		}
	}

	if subID == "" {
		if err = markProcessed(ctx, tx, ev.EventID); err != nil {
			return nil, err
		}
		return out, tx.Commit()
	}

	out.Resolved = true
	out.Kind = subscription.Kind(kind)
	out.SubscriptionID = subID
	if !out.Kind.Valid() {
		return nil, fmt.Errorf("invalid subscriber kind %q for subscription %s", kind, subID)
	}

	// 3. transição da assinatura
	var cur, planID, cycle string
	q := fmt.Sprintf(`SELECT s.%s, s.plan_id, s.status, p.billing_cycle
		FROM %s s JOIN benefit_plans p ON p.id = s.plan_id
		WHERE s.id = $1 FOR UPDATE OF s`, out.Kind.SubscriberColumn(), out.Kind.Table())
	if err = tx.QueryRowContext(ctx, q, subID).Scan(&out.SubscriberID, &planID, &cur, &cycle); err != nil {
		return nil, err
	}
	out.Status = subscription.Status(cur)

	target, ok := subscription.TargetStatus(ev.Event)
	if ok && target == subscription.StatusOverdue && paidStatuses[prevPaymentStatus] {
		out.Rejected = fmt.Errorf("%w: %s after %s", ErrStaleEvent, ev.Event, prevPaymentStatus)
		ok = false
	}
	if ok {
		changed, terr := subscription.Transition(out.Status, target)
		switch {
		case terr != nil:
			out.Rejected = terr
		case changed:
			if err = applyTransition(ctx, tx, out.Kind, subID, target, ev, subscription.Cycle(cycle)); err != nil {
				return nil, err
			}
			if err = insertTransition(ctx, tx, out.Kind, subID, out.Status, target, ev.EventID, ev.Event); err != nil {
				return nil, err
			}
			out.Change = &Change{
				Kind: out.Kind, SubscriptionID: subID, SubscriberID: out.SubscriberID, PlanID: planID,
				From: out.Status, To: target, Reason: ev.Event,
			}
			out.Status = target

			if target == subscription.StatusActive {
				if err = supersede(ctx, tx, out, ev.EventID); err != nil {
					return nil, err
				}
			}
		}
	}

	if err = markProcessed(ctx, tx, ev.EventID); err != nil {
		return nil, err
	}
	return out, tx.Commit()
}

func resolveBy(ctx context.Context, tx *sql.Tx, expr, value string) (kind, id string, err error) {
	q := fmt.Sprintf(`
		SELECT 'user', id::text FROM user_plan_subscriptions WHERE %[1]s = $1
		UNION ALL
		SELECT 'business', id::text FROM business_plan_subscriptions WHERE %[1]s = $1
		LIMIT 1`, expr)
	err = tx.QueryRowContext(ctx, q, value).Scan(&kind, &id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", nil
	}
	return kind, id, err
}

func applyTransition(ctx context.Context, tx *sql.Tx, kind subscription.Kind, id string, to subscription.Status, ev PaymentEvent, cycle subscription.Cycle) error {
	var err error
	if to == subscription.StatusActive {
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
			UPDATE %s SET status='active', started_at=COALESCE(started_at, $2), expires_at=$3,
				cancel_reason=NULL, updated_at=NOW()
			WHERE id=$1`, kind.Table()),
			id, ev.Now, cycle.ExpiresAt(ev.Now))
		return err
	}
	var reason any
	if to.Terminal() {
		reason = ev.Event
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET status=$2, cancel_reason=COALESCE($3, cancel_reason), updated_at=NOW()
		WHERE id=$1`, kind.Table()),
		id, string(to), reason)
	return err
}

func insertTransition(ctx context.Context, tx *sql.Tx, kind subscription.Kind, id string, from, to subscription.Status, eventID, reason string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO subscription_transitions(subscriber_kind, subscription_id, from_status, to_status, event_id, reason)
		VALUES($1,$2,$3,$4,$5,$6)`,
		string(kind), id, string(from), string(to), nullable(eventID), reason)
	return err
}

// supersede cancela as demais assinaturas pendentes/ativas do assinante
func supersede(ctx context.Context, tx *sql.Tx, out *Outcome, eventID string) error {
	table, col := out.Kind.Table(), out.Kind.SubscriberColumn()
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`
		WITH old AS (
			SELECT id, status FROM %[1]s
			WHERE %[2]s = $1 AND id <> $2 AND status IN ('pending','active')
			FOR UPDATE
		)
		UPDATE %[1]s t SET status='cancelled', cancel_reason='superseded', updated_at=NOW()
		FROM old WHERE t.id = old.id
		RETURNING t.id::text, t.plan_id::text, old.status`, table, col),
		out.SubscriberID, out.SubscriptionID)
	if err != nil {
		return err
	}
	var ids []string
	for rows.Next() {
		c := Change{Kind: out.Kind, SubscriberID: out.SubscriberID, To: subscription.StatusCancelled, Reason: subscription.ReasonSuperseded}
		var from string
		if err := rows.Scan(&c.SubscriptionID, &c.PlanID, &from); err != nil {
			rows.Close()
			return err
		}
		c.From = subscription.Status(from)
		out.Superseded = append(out.Superseded, c)
		ids = append(ids, c.SubscriptionID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	for _, c := range out.Superseded {
		if err := insertTransition(ctx, tx, c.Kind, c.SubscriptionID, c.From, c.To, eventID, c.Reason); err != nil {
			return err
		}
	}

	prow, err := tx.QueryContext(ctx, `
		SELECT asaas_id FROM asaas_payments
		WHERE subscription_id::text = ANY($1) AND status IN ('PENDING','OVERDUE','AWAITING_RISK_ANALYSIS')`,
		pq.Array(ids))
	if err != nil {
		return err
	}
	defer prow.Close()
	for prow.Next() {
		var id string
		if err := prow.Scan(&id); err != nil {
			return err
		}
		out.OpenPayments = append(out.OpenPayments, id)
	}
	return prow.Err()
}

func markProcessed(ctx context.Context, tx *sql.Tx, eventID string) error {
	if eventID == "" {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE asaas_webhook_events SET status='PROCESSED', processed_at=NOW(), last_error=NULL
		WHERE event_id=$1`, eventID)
	return err
}

// MarkWebhookFailed registra o erro do evento enviado para a DLQ
func (p *Postgres) MarkWebhookFailed(ctx context.Context, eventID, reason string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE asaas_webhook_events SET status='FAILED', last_error=$2
		WHERE event_id=$1 AND status <> 'PROCESSED'`, eventID, reason)
	return err
}

// SweepCandidates lista cobranças sem desfecho criadas antes de olderThan
func (p *Postgres) SweepCandidates(ctx context.Context, olderThan time.Time, limit int) ([]SweepCandidate, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT asaas_id, status, created_at FROM asaas_payments
		WHERE status IN ('PENDING','OVERDUE','AWAITING_RISK_ANALYSIS') AND created_at < $1
		ORDER BY created_at
		LIMIT $2`, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SweepCandidate
	for rows.Next() {
		var c SweepCandidate
		if err := rows.Scan(&c.AsaasID, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.db.PingContext(ctx)
}
