package topics

const (
	// Webhooks do Asaas (publicados pelo payment-service, consumidos pelo subscription-worker)
	AsaasWebhooks = "asaas_webhooks"

	// Assinaturas
	SubscriptionStatusChanged = "subscription_status_changed"

	// Check-ins
	GymCheckins = "gym_checkins"

	// DLQs
	AsaasWebhooksDLQ = "asaas_webhooks_dlq"
)
