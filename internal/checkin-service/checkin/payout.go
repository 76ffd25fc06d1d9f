package checkin

import "github.com/radieske/fitness-benefits-platform/internal/checkin-service/repo"

// Payout calcula o repasse de um check-in.
// percentual usa basis points sobre o preço do plano; limite 0 = sem teto.
func Payout(rule *repo.PayoutRule, planPriceCents, monthSoFar int64) int64 {
	if rule == nil {
		return 0
	}
	var v int64
	switch rule.Tipo {
	case repo.RulePerCheckin:
		v = rule.ValorCents
	case repo.RulePercentual:
		v = planPriceCents * int64(rule.PercentualBps) / 10000
	}
	if v < 0 {
		v = 0
	}
	if rule.LimiteMensalCents > 0 {
		left := rule.LimiteMensalCents - monthSoFar
		if left < 0 {
			left = 0
		}
		if v > left {
			v = left
		}
	}
	return v
}
