package subscription

// Eventos de webhook do Asaas tratados pelo reconciliador
const (
	EventPaymentCreated                  = "PAYMENT_CREATED"
	EventPaymentUpdated                  = "PAYMENT_UPDATED"
	EventPaymentConfirmed                = "PAYMENT_CONFIRMED"
	EventPaymentReceived                 = "PAYMENT_RECEIVED"
	EventPaymentReceivedInCash           = "PAYMENT_RECEIVED_IN_CASH"
	EventPaymentOverdue                  = "PAYMENT_OVERDUE"
	EventPaymentDeleted                  = "PAYMENT_DELETED"
	EventPaymentRestored                 = "PAYMENT_RESTORED"
	EventPaymentRefunded                 = "PAYMENT_REFUNDED"
	EventPaymentPartiallyRefunded        = "PAYMENT_PARTIALLY_REFUNDED"
	EventPaymentChargebackRequested      = "PAYMENT_CHARGEBACK_REQUESTED"
	EventPaymentCreditCardCaptureRefused = "PAYMENT_CREDIT_CARD_CAPTURE_REFUSED"
	EventPaymentAwaitingRiskAnalysis     = "PAYMENT_AWAITING_RISK_ANALYSIS"
	EventCheckoutPaid                    = "CHECKOUT_PAID"
	EventCheckoutCanceled                = "CHECKOUT_CANCELED"
	EventCheckoutExpired                 = "CHECKOUT_EXPIRED"
	EventSubscriptionDeleted             = "SUBSCRIPTION_DELETED"
	EventSubscriptionInactivated         = "SUBSCRIPTION_INACTIVATED"
)

var eventTargets = map[string]Status{
	EventPaymentConfirmed:      StatusActive,
	EventPaymentReceived:       StatusActive,
	EventPaymentReceivedInCash: StatusActive,
	EventCheckoutPaid:          StatusActive,

	EventPaymentOverdue: StatusOverdue,

	EventPaymentRefunded:            StatusRefunded,
	EventPaymentPartiallyRefunded:   StatusRefunded,
	EventPaymentChargebackRequested: StatusRefunded,

	EventPaymentDeleted:                  StatusCancelled,
	EventPaymentCreditCardCaptureRefused: StatusCancelled,
	EventCheckoutCanceled:                StatusCancelled,
	EventCheckoutExpired:                 StatusCancelled,
	EventSubscriptionDeleted:             StatusCancelled,
	EventSubscriptionInactivated:         StatusCancelled,
}

// TargetStatus devolve o status de assinatura implicado pelo evento.
// ok=false para eventos que só atualizam o pagamento (PAYMENT_CREATED, PAYMENT_UPDATED, ...).
func TargetStatus(event string) (Status, bool) {
	s, ok := eventTargets[event]
	return s, ok
}

// EventForPaymentStatus converte o status de uma cobrança consultada no Asaas
// no evento equivalente (usado pela varredura de pendentes)
func EventForPaymentStatus(paymentStatus string) (string, bool) {
	switch paymentStatus {
	case "CONFIRMED":
		return EventPaymentConfirmed, true
	case "RECEIVED":
		return EventPaymentReceived, true
	case "RECEIVED_IN_CASH":
		return EventPaymentReceivedInCash, true
	case "OVERDUE":
		return EventPaymentOverdue, true
	case "REFUNDED":
		return EventPaymentRefunded, true
	case "CHARGEBACK_REQUESTED":
		return EventPaymentChargebackRequested, true
	}
	return "", false
}

// PaymentStatusForEvent devolve o status de cobrança a gravar em asaas_payments
// quando o payload do webhook não traz payment.status.
// "" mantém o status anterior (estorno parcial não muda a cobrança).
func PaymentStatusForEvent(event string) string {
	switch event {
	case EventPaymentConfirmed:
		return "CONFIRMED"
	case EventPaymentReceived, EventCheckoutPaid:
		return "RECEIVED"
	case EventPaymentReceivedInCash:
		return "RECEIVED_IN_CASH"
	case EventPaymentOverdue:
		return "OVERDUE"
	case EventPaymentRefunded:
		return "REFUNDED"
	case EventPaymentPartiallyRefunded:
		return ""
	case EventPaymentChargebackRequested:
		return "CHARGEBACK_REQUESTED"
	case EventPaymentDeleted:
		return "DELETED"
	case EventPaymentAwaitingRiskAnalysis:
		return "AWAITING_RISK_ANALYSIS"
	}
	return "PENDING"
}
