package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
type ClientMsg struct {
	Type      string `json:"type"`      // subscribe | unsubscribe | ping
	PaymentID string `json:"paymentId"` // requerido em subscribe/unsubscribe
}

// StatusMessage é o envelope enviado ao cliente
type StatusMessage struct {
	Type    string `json:"type"` // payment_status
	Payload any    `json:"payload"`
}
