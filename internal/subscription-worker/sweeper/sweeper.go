// Package sweeper consulta periodicamente no Asaas as cobranças que ficaram
// sem desfecho e reconcilia as que mudaram, cobrindo webhooks perdidos.
package sweeper

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/radieske/fitness-benefits-platform/internal/shared/asaas"
	"github.com/radieske/fitness-benefits-platform/internal/shared/subscription"
	"github.com/radieske/fitness-benefits-platform/internal/subscription-worker/repo"
	"github.com/radieske/fitness-benefits-platform/pkg/contracts/events"
)

const batchSize = 200

type Store interface {
	SweepCandidates(ctx context.Context, olderThan time.Time, limit int) ([]repo.SweepCandidate, error)
}

type Gateway interface {
	GetPayment(ctx context.Context, id string) (*asaas.Payment, error)
}

type Handler interface {
	Reconcile(ctx context.Context, msg events.AsaasWebhook) error
}

type Sweeper struct {
	Log     *zap.Logger
	Store   Store
	Gateway Gateway
	Handler Handler
	MinAge  time.Duration
	Now     func() time.Time

	OnSwept func(reconciled int)

	running sync.Mutex
}

// Start agenda a varredura na expressão cron informada (ex.: "@every 10m")
func (s *Sweeper) Start(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { s.Run(ctx) }); err != nil {
		return nil, err
	}
	c.Start()
	s.Log.Info("sweeper scheduled", zap.String("spec", spec), zap.Duration("min_age", s.MinAge))
	return c, nil
}

// Run executa uma varredura; execuções sobrepostas são descartadas.
// Devolve quantas cobranças foram reconciliadas.
func (s *Sweeper) Run(ctx context.Context) int {
	if !s.running.TryLock() {
		s.Log.Info("sweep already running, skipping")
		return 0
	}
	defer s.running.Unlock()

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	cands, err := s.Store.SweepCandidates(ctx, now().Add(-s.MinAge), batchSize)
	if err != nil {
		s.Log.Error("sweep candidates failed", zap.Error(err))
		return 0
	}

	done := 0
	for _, c := range cands {
		if ctx.Err() != nil {
			break
		}
		p, err := s.Gateway.GetPayment(ctx, c.AsaasID)
		if err != nil {
			s.Log.Warn("sweep get payment failed", zap.String("payment_id", c.AsaasID), zap.Error(err))
			continue
		}

		event, ok := subscription.EventForPaymentStatus(p.Status)
		if p.Deleted {
			event, ok = subscription.EventPaymentDeleted, true
		}
		if !ok || p.Status == c.Status && !p.Deleted {
			continue
		}

		msg, err := syntheticWebhook(event, p)
		if err != nil {
			continue
		}
		if err := s.Handler.Reconcile(ctx, msg); err != nil {
			s.Log.Warn("sweep reconcile failed", zap.String("payment_id", c.AsaasID), zap.Error(err))
			continue
		}
		done++
	}

	s.Log.Info("sweep finished", zap.Int("candidates", len(cands)), zap.Int("reconciled", done))
	if s.OnSwept != nil {
		s.OnSwept(done)
	}
	return done
}

// syntheticWebhook monta o evento equivalente ao webhook perdido.
// O id é determinístico para que varreduras repetidas não dupliquem transições.
func syntheticWebhook(event string, p *asaas.Payment) (events.AsaasWebhook, error) {
	status := p.Status
	if p.Deleted {
		status = "DELETED"
	}
	id := "sweep:" + p.ID + ":" + status
	raw, err := json.Marshal(asaas.WebhookEvent{ID: id, Event: event, Payment: p})
	if err != nil {
		return events.AsaasWebhook{}, err
	}
	return events.AsaasWebhook{
		EventID:    id,
		Event:      event,
		PaymentID:  p.ID,
		Raw:        raw,
		ReceivedMs: time.Now().UnixMilli(),
	}, nil
}
