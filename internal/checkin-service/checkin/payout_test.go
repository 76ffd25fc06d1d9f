package checkin

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/radieske/fitness-benefits-platform/internal/checkin-service/repo"
)

func TestPayout(t *testing.T) {
	cases := []struct {
		name  string
		rule  *repo.PayoutRule
		price int64
		month int64
		want  int64
	}{
		{"no rule", nil, 9990, 0, 0},
		{"per checkin", &repo.PayoutRule{Tipo: repo.RulePerCheckin, ValorCents: 800}, 9990, 0, 800},
		{"percentual", &repo.PayoutRule{Tipo: repo.RulePercentual, PercentualBps: 250}, 10000, 0, 250},
		{"capped", &repo.PayoutRule{Tipo: repo.RulePerCheckin, ValorCents: 800, LimiteMensalCents: 2000}, 0, 1500, 500},
		{"cap reached", &repo.PayoutRule{Tipo: repo.RulePerCheckin, ValorCents: 800, LimiteMensalCents: 2000}, 0, 2400, 0},
		{"unknown type", &repo.PayoutRule{Tipo: "bonus", ValorCents: 800}, 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Payout(tc.rule, tc.price, tc.month))
		})
	}
}
