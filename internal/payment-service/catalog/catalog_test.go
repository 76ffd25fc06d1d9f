package catalog

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/fitness-benefits-platform/internal/payment-service/repo"
	"github.com/radieske/fitness-benefits-platform/internal/shared/cache"
)

type countingReader struct {
	lists, gets int
}

func (r *countingReader) ListPlans(_ context.Context, audience string) ([]repo.Plan, error) {
	r.lists++
	return []repo.Plan{{ID: "p1", Name: "Basic", Audience: audience, PriceCents: 4990, Active: true}}, nil
}

func (r *countingReader) GetPlan(_ context.Context, id string) (*repo.Plan, error) {
	r.gets++
	if id != "p1" {
		return nil, repo.ErrNotFound
	}
	return &repo.Plan{ID: "p1", Name: "Basic", PriceCents: 4990}, nil
}

func TestCatalog_CachesReads(t *testing.T) {
	mr := miniredis.RunT(t)
	reader := &countingReader{}
	c := &Catalog{Reader: reader, Cache: cache.NewJSON(redis.NewClient(&redis.Options{Addr: mr.Addr()}))}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		plans, err := c.List(ctx, "user")
		require.NoError(t, err)
		require.Len(t, plans, 1)
		assert.Equal(t, "Basic", plans[0].Name)
	}
	assert.Equal(t, 1, reader.lists)

	_, err := c.Get(ctx, "p1")
	require.NoError(t, err)
	p, err := c.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(4990), p.PriceCents)
	assert.Equal(t, 1, reader.gets)

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestCatalog_WithoutCache(t *testing.T) {
	reader := &countingReader{}
	c := &Catalog{Reader: reader}

	_, err := c.List(context.Background(), "")
	require.NoError(t, err)
	_, err = c.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, reader.lists)
}
