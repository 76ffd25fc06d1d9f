package events

import "encoding/json"

// AsaasWebhook é o envelope publicado no tópico "asaas_webhooks".
// Raw carrega o corpo original recebido do Asaas, sem alterações.
type AsaasWebhook struct {
	EventID    string          `json:"event_id"`
	Event      string          `json:"event"`      // ex: PAYMENT_CONFIRMED
	PaymentID  string          `json:"payment_id"` // pay_xxx; chave da mensagem Kafka
	Raw        json.RawMessage `json:"raw"`
	ReceivedMs int64           `json:"received_ms"`
}
