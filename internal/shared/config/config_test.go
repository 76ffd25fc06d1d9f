package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_PortsByServiceName(t *testing.T) {
	t.Setenv("SERVICE_NAME", "payment-service")
	t.Setenv("HTTP_PORT_PAYMENT", "9000")
	cfg := Load()
	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, "9098", cfg.MetricsPort)

	t.Setenv("SERVICE_NAME", "checkin-service")
	cfg = Load()
	assert.Equal(t, "8083", cfg.HTTPPort)
	assert.Equal(t, "9099", cfg.MetricsPort)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "subscription-worker")
	cfg := Load()

	assert.Equal(t, "asaas_webhooks", cfg.TopicAsaasWebhooks)
	assert.Equal(t, "asaas_webhooks_dlq", cfg.TopicAsaasWebhooksDLQ)
	assert.Equal(t, 3, cfg.AsaasDueDays)
	assert.Equal(t, 30*time.Minute, cfg.SweepMinAge)
	assert.Equal(t, "@every 10m", cfg.SweepCron)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("ASAAS_DUE_DAYS", "abc")
	t.Setenv("ASAAS_RPS", "12")
	t.Setenv("SWEEP_MIN_AGE", "1h")
	cfg := Load()

	assert.Equal(t, 3, cfg.AsaasDueDays)
	assert.Equal(t, 12, cfg.AsaasRPS)
	assert.Equal(t, time.Hour, cfg.SweepMinAge)
}
