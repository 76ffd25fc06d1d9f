// Package subscription concentra as regras de estado das assinaturas de planos:
// status válidos, transições permitidas e o mapeamento de eventos do Asaas.
package subscription

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusOverdue   Status = "overdue"
	StatusRefunded  Status = "refunded"
	StatusCancelled Status = "cancelled"
)

// Kind identifica o tipo de assinante
type Kind string

const (
	KindUser     Kind = "user"
	KindBusiness Kind = "business"
)

// Motivos gravados em subscription_transitions / cancel_reason
const (
	ReasonSuperseded   = "superseded"
	ReasonGatewayError = "gateway_error"
	ReasonUserRequest  = "user_request"
)

var ErrInvalidTransition = errors.New("invalid subscription transition")

// transições permitidas; refunded e cancelled são terminais
var allowed = map[Status]map[Status]bool{
	StatusPending: {StatusActive: true, StatusOverdue: true, StatusCancelled: true},
	StatusActive:  {StatusOverdue: true, StatusRefunded: true, StatusCancelled: true},
	StatusOverdue: {StatusActive: true, StatusRefunded: true, StatusCancelled: true},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusOverdue, StatusRefunded, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool { return s == StatusRefunded || s == StatusCancelled }

// Transition valida a mudança de from para to.
// changed=false quando from == to (no-op).
func Transition(from, to Status) (changed bool, err error) {
	if !from.Valid() || !to.Valid() {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if from == to {
		return false, nil
	}
	if !allowed[from][to] {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return true, nil
}

func (k Kind) Valid() bool { return k == KindUser || k == KindBusiness }

// Table devolve a tabela de assinaturas do tipo de assinante
func (k Kind) Table() string {
	if k == KindBusiness {
		return "business_plan_subscriptions"
	}
	return "user_plan_subscriptions"
}

// SubscriberColumn devolve a coluna que identifica o assinante
func (k Kind) SubscriberColumn() string {
	if k == KindBusiness {
		return "business_id"
	}
	return "user_id"
}

// Cycle é o ciclo de cobrança de um plano (mesmos valores do Asaas)
type Cycle string

const (
	CycleMonthly      Cycle = "MONTHLY"
	CycleQuarterly    Cycle = "QUARTERLY"
	CycleSemiannually Cycle = "SEMIANNUALLY"
	CycleYearly       Cycle = "YEARLY"
)

// Months devolve a duração do ciclo em meses; ciclos desconhecidos valem 1
func (c Cycle) Months() int {
	switch c {
	case CycleQuarterly:
		return 3
	case CycleSemiannually:
		return 6
	case CycleYearly:
		return 12
	}
	return 1
}

// ExpiresAt calcula o fim do período a partir do início
func (c Cycle) ExpiresAt(start time.Time) time.Time { return start.AddDate(0, c.Months(), 0) }

// ActiveCacheKey é a chave Redis da assinatura ativa de um assinante.
// Invalidada pelo worker a cada transição.
func ActiveCacheKey(kind Kind, subscriberID string) string {
	return "subscription:active:" + string(kind) + ":" + subscriberID
}
