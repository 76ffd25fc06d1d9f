// Package reconciler aplica os webhooks do Asaas às assinaturas e dispara os
// efeitos posteriores ao commit (cache, eventos e limpeza no gateway).
package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/fitness-benefits-platform/internal/shared/asaas"
	"github.com/radieske/fitness-benefits-platform/internal/shared/subscription"
	"github.com/radieske/fitness-benefits-platform/internal/subscription-worker/repo"
	"github.com/radieske/fitness-benefits-platform/pkg/contracts/events"
)

// ErrMalformed marca mensagens que nunca vão ser processáveis (vão direto para a DLQ)
var ErrMalformed = errors.New("malformed webhook")

type Store interface {
	ApplyPaymentEvent(ctx context.Context, ev repo.PaymentEvent) (*repo.Outcome, error)
}

type Gateway interface {
	DeletePayment(ctx context.Context, id string) error
}

type Notifier interface {
	SubscriptionChanged(ctx context.Context, e events.SubscriptionStatusChanged) error
	PaymentStatus(ctx context.Context, u events.PaymentStatusUpdate) error
}

type Cache interface {
	Delete(ctx context.Context, keys ...string) error
}

type Reconciler struct {
	Log      *zap.Logger
	Store    Store
	Gateway  Gateway  // opcional: sem ele as cobranças das concorrentes não são removidas
	Notifier Notifier // opcional
	Cache    Cache    // opcional
	Now      func() time.Time

	OnTransition func(from, to string)
	OnIgnored    func(reason string)
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Reconcile processa um webhook enfileirado. Erros de banco são devolvidos
// para retry; falhas nos efeitos pós-commit só são logadas.
func (r *Reconciler) Reconcile(ctx context.Context, msg events.AsaasWebhook) error {
	ev, err := r.decode(msg)
	if err != nil {
		return err
	}

	out, err := r.Store.ApplyPaymentEvent(ctx, ev)
	if err != nil {
		return fmt.Errorf("apply %s: %w", msg.EventID, err)
	}

	log := r.Log.With(zap.String("event_id", ev.EventID), zap.String("event", ev.Event), zap.String("payment_id", ev.PaymentID))
	switch {
	case !out.Resolved:
		log.Warn("webhook without matching subscription")
		r.ignored("unresolved")
	case out.Rejected != nil:
		log.Warn("transition ignored", zap.String("subscription_id", out.SubscriptionID), zap.Error(out.Rejected))
		r.ignored("rejected")
	case out.Change != nil:
		log.Info("subscription transition",
			zap.String("subscription_id", out.SubscriptionID),
			zap.String("from", string(out.Change.From)),
			zap.String("to", string(out.Change.To)),
			zap.Int("superseded", len(out.Superseded)))
	}

	r.afterCommit(ctx, ev, out)
	return nil
}

func (r *Reconciler) decode(msg events.AsaasWebhook) (repo.PaymentEvent, error) {
	var body asaas.WebhookEvent
	if err := json.Unmarshal(msg.Raw, &body); err != nil {
		return repo.PaymentEvent{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	ev := repo.PaymentEvent{
		EventID: msg.EventID,
		Event:   msg.Event,
		Now:     r.now(),
	}
	if ev.EventID == "" {
		ev.EventID = body.ID
	}
	if ev.Event == "" {
		ev.Event = body.Event
	}
	if ev.EventID == "" || ev.Event == "" {
		return ev, fmt.Errorf("%w: missing id or event", ErrMalformed)
	}

	if p := body.Payment; p != nil {
		ev.PaymentID = p.ID
		ev.PaymentStatus = p.Status
		ev.Customer = p.Customer
		ev.BillingType = string(p.BillingType)
		ev.ValueCents = asaas.ValueToCents(p.Value)
		ev.InvoiceURL = p.InvoiceURL
		ev.ExternalReference = p.ExternalReference
		ev.PaymentLinkID = p.PaymentLink
		ev.CheckoutID = p.CheckoutSession
		if d, err := time.Parse(time.DateOnly, p.DueDate); err == nil {
			ev.DueDate = &d
		}
		if p.Deleted || ev.Event == subscription.EventPaymentDeleted {
			ev.PaymentStatus = "DELETED"
		}
	}
	if c := body.Checkout; c != nil && ev.CheckoutID == "" {
		ev.CheckoutID = c.ID
	}
	if ev.PaymentStatus == "" && ev.PaymentID != "" {
		ev.PaymentStatus = subscription.PaymentStatusForEvent(ev.Event)
	}
	return ev, nil
}

// afterCommit executa os efeitos que dependem do commit; falhas não revertem nada
func (r *Reconciler) afterCommit(ctx context.Context, ev repo.PaymentEvent, out *repo.Outcome) {
	if out.Resolved && r.Cache != nil && (out.Change != nil || len(out.Superseded) > 0) {
		if err := r.Cache.Delete(ctx, subscription.ActiveCacheKey(out.Kind, out.SubscriberID)); err != nil {
			r.Log.Warn("cache invalidation failed", zap.Error(err))
		}
	}

	changes := make([]repo.Change, 0, 1+len(out.Superseded))
	if out.Change != nil {
		changes = append(changes, *out.Change)
	}
	changes = append(changes, out.Superseded...)
	for _, c := range changes {
		if r.OnTransition != nil {
			r.OnTransition(string(c.From), string(c.To))
		}
		if r.Notifier == nil {
			continue
		}
		if err := r.Notifier.SubscriptionChanged(ctx, events.SubscriptionStatusChanged{
			SubscriptionID: c.SubscriptionID,
			SubscriberKind: string(c.Kind),
			SubscriberID:   c.SubscriberID,
			PlanID:         c.PlanID,
			From:           string(c.From),
			To:             string(c.To),
			Reason:         c.Reason,
			EventID:        ev.EventID,
			Ts:             ev.Now,
		}); err != nil {
			r.Log.Warn("publish subscription change failed", zap.String("subscription_id", c.SubscriptionID), zap.Error(err))
		}
	}

	if r.Notifier != nil && ev.PaymentID != "" {
		upd := events.PaymentStatusUpdate{PaymentID: ev.PaymentID, PaymentStatus: out.PaymentStatus}
		if out.Resolved {
			upd.SubscriptionID = out.SubscriptionID
			upd.SubscriptionStatus = string(out.Status)
		}
		if err := r.Notifier.PaymentStatus(ctx, upd); err != nil {
			r.Log.Warn("broadcast payment status failed", zap.Error(err))
		}
	}

	if r.Gateway == nil {
		return
	}
	for _, id := range out.OpenPayments {
		if err := r.Gateway.DeletePayment(ctx, id); err != nil && !errors.Is(err, asaas.ErrNotFound) {
			r.Log.Warn("delete superseded payment failed", zap.String("payment_id", id), zap.Error(err))
		}
	}
}

func (r *Reconciler) ignored(reason string) {
	if r.OnIgnored != nil {
		r.OnIgnored(reason)
	}
}
