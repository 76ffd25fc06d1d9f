package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTargetStatus(t *testing.T) {
	cases := map[string]Status{
		"PAYMENT_CONFIRMED":            StatusActive,
		"PAYMENT_RECEIVED":             StatusActive,
		"CHECKOUT_PAID":                StatusActive,
		"PAYMENT_OVERDUE":              StatusOverdue,
		"PAYMENT_REFUNDED":             StatusRefunded,
		"PAYMENT_CHARGEBACK_REQUESTED": StatusRefunded,
		"PAYMENT_DELETED":              StatusCancelled,
		"CHECKOUT_EXPIRED":             StatusCancelled,
		"SUBSCRIPTION_DELETED":         StatusCancelled,
	}
	for ev, want := range cases {
		got, ok := TargetStatus(ev)
		assert.True(t, ok, ev)
		assert.Equal(t, want, got, ev)
	}

	for _, ev := range []string{"PAYMENT_CREATED", "PAYMENT_UPDATED", "PAYMENT_RESTORED", "PAYMENT_AWAITING_RISK_ANALYSIS", ""} {
		_, ok := TargetStatus(ev)
		assert.False(t, ok, ev)
	}
}

func TestEventForPaymentStatus(t *testing.T) {
	ev, ok := EventForPaymentStatus("CONFIRMED")
	assert.True(t, ok)
	assert.Equal(t, EventPaymentConfirmed, ev)

	ev, ok = EventForPaymentStatus("OVERDUE")
	assert.True(t, ok)
	assert.Equal(t, EventPaymentOverdue, ev)

	_, ok = EventForPaymentStatus("PENDING")
	assert.False(t, ok)
}

func TestPaymentStatusForEvent(t *testing.T) {
	assert.Equal(t, "CONFIRMED", PaymentStatusForEvent(EventPaymentConfirmed))
	assert.Equal(t, "RECEIVED", PaymentStatusForEvent(EventCheckoutPaid))
	assert.Equal(t, "DELETED", PaymentStatusForEvent(EventPaymentDeleted))
	assert.Equal(t, "PENDING", PaymentStatusForEvent(EventPaymentCreated))
	assert.Equal(t, "REFUNDED", PaymentStatusForEvent(EventPaymentRefunded))
	assert.Empty(t, PaymentStatusForEvent(EventPaymentPartiallyRefunded), "estorno parcial mantém o status anterior")
}
