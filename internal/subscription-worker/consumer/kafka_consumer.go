package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/fitness-benefits-platform/internal/subscription-worker/reconciler"
	"github.com/radieske/fitness-benefits-platform/pkg/contracts/events"
)

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Handler interface {
	Reconcile(ctx context.Context, msg events.AsaasWebhook) error
}

type FailureStore interface {
	MarkWebhookFailed(ctx context.Context, eventID, reason string) error
}

// Processor consome asaas_webhooks, reconcilia cada mensagem e, após esgotar
// as tentativas, envia para a DLQ. O offset só é confirmado depois do desfecho.
type Processor struct {
	Log      *zap.Logger
	Reader   MessageReader
	DLQ      MessageWriter // opcional
	Handler  Handler
	Failures FailureStore // opcional

	Retries int           // tentativas extras após a primeira falha (default 3)
	Backoff time.Duration // espera linear: Backoff*(tentativa) (default 300ms)

	OnConsumed  func()       // métricas (counter++)
	OnProcessed func()       // métricas
	OnDLQ       func()       // métricas
	OnError     func(string) // métricas por fase
}

// Run inicia o loop principal de consumo
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			p.fail("read")
			if !sleep(ctx, 500*time.Millisecond) {
				return ctx.Err()
			}
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		if !p.handle(ctx, m) {
			// encerramento no meio da reconciliação: offset fica pendente para reentrega
			return ctx.Err()
		}

		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka commit failed", zap.Error(err))
			p.fail("commit")
		}
	}
}

// handle devolve false quando o contexto acabou antes de um desfecho; nesse
// caso a mensagem não vai para a DLQ nem é marcada como FAILED
func (p *Processor) handle(ctx context.Context, m kafka.Message) bool {
	var msg events.AsaasWebhook
	err := json.Unmarshal(m.Value, &msg)
	if err != nil {
		p.fail("decode")
		p.deadLetter(ctx, m, msg.EventID, 0, err)
		return true
	}

	retries, backoff := p.Retries, p.Backoff
	if retries <= 0 {
		retries = 3
	}
	if backoff <= 0 {
		backoff = 300 * time.Millisecond
	}

	attempts := 0
	for {
		attempts++
		err = p.Handler.Reconcile(ctx, msg)
		if err == nil {
			if p.OnProcessed != nil {
				p.OnProcessed()
			}
			return true
		}
		if ctx.Err() != nil {
			p.Log.Info("reconcile interrupted by shutdown",
				zap.String("event_id", msg.EventID), zap.Int("attempt", attempts), zap.Error(err))
			return false
		}
		p.fail("reconcile")
		p.Log.Warn("reconcile failed",
			zap.String("event_id", msg.EventID), zap.Int("attempt", attempts), zap.Error(err))

		if errors.Is(err, reconciler.ErrMalformed) || attempts > retries {
			break
		}
		// retry simples com backoff linear
		if !sleep(ctx, time.Duration(attempts)*backoff) {
			return false
		}
	}
	p.deadLetter(ctx, m, msg.EventID, attempts, err)
	return true
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, eventID string, attempts int, cause error) {
	p.Log.Error("sending webhook to dlq", zap.String("event_id", eventID), zap.Int("attempts", attempts), zap.Error(cause))
	if p.DLQ != nil {
		dlq := kafka.Message{
			Key:   m.Key,
			Value: m.Value,
			Headers: []kafka.Header{
				{Key: "error", Value: []byte(cause.Error())},
				{Key: "attempts", Value: []byte(strconv.Itoa(attempts))},
			},
		}
		if err := p.DLQ.WriteMessages(context.WithoutCancel(ctx), dlq); err != nil {
			p.Log.Error("dlq write failed", zap.String("event_id", eventID), zap.Error(err))
			p.fail("dlq")
		} else if p.OnDLQ != nil {
			p.OnDLQ()
		}
	}
	if p.Failures != nil && eventID != "" {
		if err := p.Failures.MarkWebhookFailed(context.WithoutCancel(ctx), eventID, cause.Error()); err != nil {
			p.Log.Warn("mark webhook failed", zap.String("event_id", eventID), zap.Error(err))
		}
	}
}

func (p *Processor) fail(phase string) {
	if p.OnError != nil {
		p.OnError(phase)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
