// Package notify publica as mudanças de assinatura no Kafka e o status das
// cobranças no Redis Pub/Sub (consumido pelo WebSocket do payment-service).
package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/fitness-benefits-platform/internal/shared/kafka"
	"github.com/radieske/fitness-benefits-platform/pkg/contracts/events"
)

type Notifier struct {
	Writer  *kafka.Writer // tópico subscription_status_changed
	Redis   *redis.Client
	Channel string
}

func New(w *kafka.Writer, r *redis.Client, channel string) *Notifier {
	return &Notifier{Writer: w, Redis: r, Channel: channel}
}

// SubscriptionChanged publica a transição com chave = id da assinatura
func (n *Notifier) SubscriptionChanged(ctx context.Context, e events.SubscriptionStatusChanged) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return kafka.WriteJSON(ctx, n.Writer, e.SubscriptionID, b)
}

func (n *Notifier) PaymentStatus(ctx context.Context, u events.PaymentStatusUpdate) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return n.Redis.Publish(ctx, n.Channel, b).Err()
}
