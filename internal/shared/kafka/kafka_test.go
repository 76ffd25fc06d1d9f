package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, Brokers("a:9092, b:9092,"))
	assert.Nil(t, Brokers(""))
}

func TestNewWriter_UsesAllBrokers(t *testing.T) {
	w := NewWriter("a:9092,b:9092", "asaas_webhooks")
	assert.Equal(t, "asaas_webhooks", w.Topic)
	assert.Contains(t, w.Addr.String(), "a:9092")
	assert.Contains(t, w.Addr.String(), "b:9092")
}
