package producer

import (
	"context"
	"encoding/json"

	"github.com/radieske/fitness-benefits-platform/internal/shared/kafka"
	"github.com/radieske/fitness-benefits-platform/pkg/contracts/events"
)

type KafkaPublisher struct {
	Writer *kafka.Writer
}

func NewKafkaPublisher(w *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{Writer: w}
}

// PublishCheckin publica no gym_checkins com chave academia_id para manter a ordem por academia
func (p *KafkaPublisher) PublishCheckin(ctx context.Context, e events.GymCheckin) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return kafka.WriteJSON(ctx, p.Writer, e.AcademiaID, b)
}
