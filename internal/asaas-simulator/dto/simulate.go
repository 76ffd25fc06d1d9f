package dto

// ConfirmRequest é o corpo opcional de POST /simulator/payments/{id}/confirm.
// Status vazio = RECEIVED (PIX/boleto); CONFIRMED simula cartão.
type ConfirmRequest struct {
	Status string `json:"status,omitempty"`
}

// PayRequest paga um link ou checkout gerando a cobrança correspondente
type PayRequest struct {
	BillingType string `json:"billingType,omitempty"` // default PIX
}

type SimulateResponse struct {
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
	Event     string `json:"event"`
	Delivered bool   `json:"delivered"`
}
