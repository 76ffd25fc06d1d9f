package subscriptions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	subdto "github.com/radieske/fitness-benefits-platform/internal/checkin-service/subscriptions/dto"
)

func TestActive(t *testing.T) {
	exp := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/internal/subscriptions/active", r.URL.Path)
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		assert.Equal(t, "user", r.URL.Query().Get("kind"))
		if r.URL.Query().Get("subscriber_id") != "u-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(subdto.ActiveSubscription{
			SubscriptionID: "sub-1", PlanID: "plan-1", PriceCents: 9990,
			CategoryIDs: []string{"cat-1"}, ExpiresAt: &exp,
		})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "service-key")

	a, err := c.Active(context.Background(), "user", "u-1")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", a.SubscriptionID)
	assert.Equal(t, []string{"cat-1"}, a.CategoryIDs)

	_, err = c.Active(context.Background(), "user", "u-2")
	assert.ErrorIs(t, err, ErrNoActive)
}

func TestActive_ExpiredAndServerError(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(subdto.ActiveSubscription{SubscriptionID: "sub-1", ExpiresAt: &past})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.Active(context.Background(), "user", "u-1")
	assert.ErrorIs(t, err, ErrNoActive)

	fail.Store(true)
	_, err = c.Active(context.Background(), "user", "u-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoActive)
}
