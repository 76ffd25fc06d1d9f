package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/radieske/fitness-benefits-platform/internal/shared/kafka"
	"github.com/radieske/fitness-benefits-platform/pkg/contracts/events"
)

type KafkaPublisher struct {
	Writer *kafka.Writer
	Topic  string
}

func NewKafkaPublisher(w *kafka.Writer, topic string) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, Topic: topic}
}

// PublishWebhook enfileira o webhook para o subscription-worker.
// A chave é o id da cobrança, o que mantém a ordem dos eventos de um mesmo pagamento.
func (p *KafkaPublisher) PublishWebhook(ctx context.Context, e events.AsaasWebhook) error {
	if e.ReceivedMs == 0 {
		e.ReceivedMs = time.Now().UnixMilli()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	key := e.PaymentID
	if key == "" {
		key = e.EventID
	}
	return kafka.WriteJSON(ctx, p.Writer, key, b)
}
