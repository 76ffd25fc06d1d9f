// Package catalog expõe o catálogo de planos com cache curto no Redis.
package catalog

import (
	"context"
	"time"

	"github.com/radieske/fitness-benefits-platform/internal/payment-service/repo"
)

const ttl = 60 * time.Second

type Reader interface {
	ListPlans(ctx context.Context, audience string) ([]repo.Plan, error)
	GetPlan(ctx context.Context, id string) (*repo.Plan, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
}

type Catalog struct {
	Reader Reader
	Cache  Cache // opcional
}

func keyList(audience string) string { return "plans:list:" + audience }
func keyPlan(id string) string       { return "plans:id:" + id }

func (c *Catalog) List(ctx context.Context, audience string) ([]repo.Plan, error) {
	var cached []repo.Plan
	if c.Cache != nil {
		if ok, _ := c.Cache.Get(ctx, keyList(audience), &cached); ok {
			return cached, nil
		}
	}
	plans, err := c.Reader.ListPlans(ctx, audience)
	if err != nil {
		return nil, err
	}
	if plans == nil {
		plans = []repo.Plan{}
	}
	if c.Cache != nil {
		_ = c.Cache.Set(ctx, keyList(audience), plans, ttl)
	}
	return plans, nil
}

// Get devolve o plano; planos inativos ficam visíveis por id
func (c *Catalog) Get(ctx context.Context, id string) (*repo.Plan, error) {
	var cached repo.Plan
	if c.Cache != nil {
		if ok, _ := c.Cache.Get(ctx, keyPlan(id), &cached); ok {
			return &cached, nil
		}
	}
	p, err := c.Reader.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Cache != nil {
		_ = c.Cache.Set(ctx, keyPlan(id), p, ttl)
	}
	return p, nil
}
