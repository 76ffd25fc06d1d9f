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

// Postgres implementa a persistência de clientes, cobranças, assinaturas e webhooks
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var ErrNotFound = errors.New("not found")

type scanner interface{ Scan(dest ...any) error }

// nullable grava NULL para strings vazias
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func subscriptionColumns(kind subscription.Kind) string {
	return `id, ` + kind.SubscriberColumn() + `, plan_id, status,
		COALESCE(asaas_customer_id,''), COALESCE(payment_link_id,''), COALESCE(payment_link_url,''),
		COALESCE(checkout_id,''), COALESCE(checkout_url,''), COALESCE(cancel_reason,''),
		started_at, expires_at, created_at, updated_at`
}

func scanSubscription(row scanner, kind subscription.Kind) (*Subscription, error) {
	s := Subscription{Kind: kind}
	var status string
	var started, expires sql.NullTime
	err := row.Scan(&s.ID, &s.SubscriberID, &s.PlanID, &status,
		&s.AsaasCustomerID, &s.PaymentLinkID, &s.PaymentLinkURL,
		&s.CheckoutID, &s.CheckoutURL, &s.CancelReason,
		&started, &expires, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = subscription.Status(status)
	if started.Valid {
		s.StartedAt = &started.Time
	}
	if expires.Valid {
		s.ExpiresAt = &expires.Time
	}
	return &s, nil
}

// ---------- clientes ----------

func (p *Postgres) GetCustomerBySubscriber(ctx context.Context, kind subscription.Kind, subscriberID string) (*Customer, error) {
	c := Customer{Kind: kind, SubscriberID: subscriberID}
	err := p.db.QueryRowContext(ctx,
		`SELECT id, asaas_id, cpf_cnpj, email, nome FROM asaas_customers WHERE subscriber_kind=$1 AND subscriber_id=$2`,
		string(kind), subscriberID).Scan(&c.ID, &c.AsaasID, &c.CpfCnpj, &c.Email, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const uniqueViolation = "23505"

// SaveCustomer grava o mapeamento assinante -> cliente Asaas.
// Em corrida, prevalece o registro já existente (devolvido no lugar do novo).
// O mesmo asaas_id pode aparecer em vários assinantes (ex.: recadastro com o mesmo CPF).
func (p *Postgres) SaveCustomer(ctx context.Context, c *Customer) (*Customer, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	out := *c
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO asaas_customers(id, subscriber_kind, subscriber_id, asaas_id, cpf_cnpj, email, nome)
		VALUES($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (subscriber_kind, subscriber_id) DO UPDATE SET subscriber_id = EXCLUDED.subscriber_id
		RETURNING id, asaas_id`,
		c.ID, string(c.Kind), c.SubscriberID, c.AsaasID, c.CpfCnpj, c.Email, c.Name).Scan(&out.ID, &out.AsaasID)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		// outra constraint única venceu a corrida; usa o mapeamento que ficou gravado
		existing, gerr := p.GetCustomerBySubscriber(ctx, c.Kind, c.SubscriberID)
		if gerr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("save customer %s: %w", c.AsaasID, err)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ---------- assinaturas ----------

func (p *Postgres) CreateSubscription(ctx context.Context, s *Subscription) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Status == "" {
		s.Status = subscription.StatusPending
	}
	q := fmt.Sprintf(`INSERT INTO %s(id, %s, plan_id, status, asaas_customer_id) VALUES($1,$2,$3,$4,$5)`,
		s.Kind.Table(), s.Kind.SubscriberColumn())
	_, err := p.db.ExecContext(ctx, q, s.ID, s.SubscriberID, s.PlanID, string(s.Status), nullable(s.AsaasCustomerID))
	return err
}

func (p *Postgres) GetSubscription(ctx context.Context, kind subscription.Kind, id string) (*Subscription, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE id=$1`, subscriptionColumns(kind), kind.Table())
	s, err := scanSubscription(p.db.QueryRowContext(ctx, q, id), kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// ListSubscriptions devolve o histórico de assinaturas do assinante, mais recentes primeiro
func (p *Postgres) ListSubscriptions(ctx context.Context, kind subscription.Kind, subscriberID string) ([]Subscription, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s=$1 ORDER BY created_at DESC LIMIT 100`,
		subscriptionColumns(kind), kind.Table(), kind.SubscriberColumn())
	rows, err := p.db.QueryContext(ctx, q, subscriberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		s, err := scanSubscription(rows, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// SetGatewayRefs grava os identificadores do Asaas (link, checkout, cliente)
func (p *Postgres) SetGatewayRefs(ctx context.Context, kind subscription.Kind, id string, refs GatewayRefs) error {
	q := fmt.Sprintf(`UPDATE %s SET
			asaas_customer_id = COALESCE($2, asaas_customer_id),
			payment_link_id   = COALESCE($3, payment_link_id),
			payment_link_url  = COALESCE($4, payment_link_url),
			checkout_id       = COALESCE($5, checkout_id),
			checkout_url      = COALESCE($6, checkout_url),
			updated_at        = NOW()
		WHERE id=$1`, kind.Table())
	res, err := p.db.ExecContext(ctx, q, id,
		nullable(refs.AsaasCustomerID), nullable(refs.PaymentLinkID), nullable(refs.PaymentLinkURL),
		nullable(refs.CheckoutID), nullable(refs.CheckoutURL))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelSubscription cancela a assinatura respeitando a máquina de estados
// e registra a transição. Cancelar uma assinatura já cancelada é no-op.
func (p *Postgres) CancelSubscription(ctx context.Context, kind subscription.Kind, id, reason string) (from subscription.Status, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var cur string
	err = tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT status FROM %s WHERE id=$1 FOR UPDATE`, kind.Table()), id).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	from = subscription.Status(cur)

	changed, err := subscription.Transition(from, subscription.StatusCancelled)
	if err != nil {
		return from, err
	}
	if !changed {
		return from, nil
	}

	if _, err = tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET status='cancelled', cancel_reason=$2, updated_at=NOW() WHERE id=$1`, kind.Table()),
		id, reason); err != nil {
		return from, err
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO subscription_transitions(subscriber_kind, subscription_id, from_status, to_status, reason)
		VALUES($1,$2,$3,'cancelled',$4)`,
		string(kind), id, cur, reason); err != nil {
		return from, err
	}

	return from, tx.Commit()
}

// ActiveSubscription devolve a assinatura ativa e não expirada do assinante
func (p *Postgres) ActiveSubscription(ctx context.Context, kind subscription.Kind, subscriberID string) (*ActiveSubscription, error) {
	q := fmt.Sprintf(`
		SELECT s.id, s.plan_id, p.nome, p.price_cents, p.billing_cycle,
			ARRAY(SELECT c.categoria_id::text FROM benefit_plan_categorias c WHERE c.plan_id = p.id ORDER BY 1),
			s.started_at, s.expires_at
		FROM %s s
		JOIN benefit_plans p ON p.id = s.plan_id
		WHERE s.%s=$1 AND s.status='active' AND (s.expires_at IS NULL OR s.expires_at > NOW())
		ORDER BY s.started_at DESC NULLS LAST
		LIMIT 1`, kind.Table(), kind.SubscriberColumn())

	a := ActiveSubscription{Kind: kind, SubscriberID: subscriberID}
	var cats pq.StringArray
	var started, expires sql.NullTime
	err := p.db.QueryRowContext(ctx, q, subscriberID).Scan(
		&a.SubscriptionID, &a.PlanID, &a.PlanName, &a.PriceCents, &a.BillingCycle, &cats, &started, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.CategoryIDs = []string(cats)
	if started.Valid {
		a.StartedAt = &started.Time
	}
	if expires.Valid {
		a.ExpiresAt = &expires.Time
	}
	return &a, nil
}

// ---------- cobranças ----------

func (p *Postgres) InsertPayment(ctx context.Context, pay *Payment) error {
	if pay.ID == "" {
		pay.ID = uuid.New().String()
	}
	var due any
	if pay.DueDate != nil {
		due = *pay.DueDate
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO asaas_payments(id, asaas_id, subscriber_kind, subscription_id, asaas_customer_id,
			billing_type, value_cents, status, invoice_url, due_date)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (asaas_id) DO NOTHING`,
		pay.ID, pay.AsaasID, string(pay.Kind), nullable(pay.SubscriptionID), pay.AsaasCustomerID,
		pay.BillingType, pay.ValueCents, pay.Status, pay.InvoiceURL, due)
	return err
}

const paymentColumns = `id, asaas_id, subscriber_kind, COALESCE(subscription_id::text,''), asaas_customer_id,
	billing_type, value_cents, status, invoice_url, due_date, created_at, updated_at`

func scanPayment(row scanner) (*Payment, error) {
	var pay Payment
	var kind string
	var due sql.NullTime
	if err := row.Scan(&pay.ID, &pay.AsaasID, &kind, &pay.SubscriptionID, &pay.AsaasCustomerID,
		&pay.BillingType, &pay.ValueCents, &pay.Status, &pay.InvoiceURL, &due, &pay.CreatedAt, &pay.UpdatedAt); err != nil {
		return nil, err
	}
	pay.Kind = subscription.Kind(kind)
	if due.Valid {
		pay.DueDate = &due.Time
	}
	return &pay, nil
}

func (p *Postgres) GetPaymentByAsaasID(ctx context.Context, asaasID string) (*Payment, error) {
	pay, err := scanPayment(p.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM asaas_payments WHERE asaas_id=$1`, asaasID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return pay, err
}

// OpenPayments lista as cobranças ainda não pagas de uma assinatura
func (p *Postgres) OpenPayments(ctx context.Context, subscriptionID string) ([]Payment, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM asaas_payments
		 WHERE subscription_id=$1 AND status IN ('PENDING','OVERDUE','AWAITING_RISK_ANALYSIS')`, subscriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		pay, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *pay)
	}
	return out, rows.Err()
}

// ---------- webhooks ----------

// RecordWebhookEvent grava o evento recebido. Quando o event_id já existe,
// incrementa attempts e devolve inserted=false com o status atual.
func (p *Postgres) RecordWebhookEvent(ctx context.Context, e WebhookEvent) (status string, inserted bool, err error) {
	err = p.db.QueryRowContext(ctx, `
		INSERT INTO asaas_webhook_events(event_id, event_type, payment_id, payload)
		VALUES($1,$2,$3,$4)
		ON CONFLICT (event_id) DO UPDATE SET attempts = asaas_webhook_events.attempts + 1
		RETURNING status, (xmax = 0)`,
		e.EventID, e.EventType, e.PaymentID, e.Payload).Scan(&status, &inserted)
	return status, inserted, err
}

// MarkWebhookQueued marca o evento como publicado no Kafka
func (p *Postgres) MarkWebhookQueued(ctx context.Context, eventID string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE asaas_webhook_events SET status='QUEUED' WHERE event_id=$1 AND status='RECEIVED'`, eventID)
	return err
}

// Ping é usado pelo /healthz
func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.db.PingContext(ctx)
}
