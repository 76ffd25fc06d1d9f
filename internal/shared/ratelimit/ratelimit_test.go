package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/radieske/fitness-benefits-platform/internal/shared/auth"
)

func TestHandler_LimitsPerKey(t *testing.T) {
	l := New(0.001, 2)
	h := l.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(remote string, user *auth.User) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		if user != nil {
			req = req.WithContext(auth.WithUser(req.Context(), user))
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1234", nil))
	assert.Equal(t, http.StatusOK, call("10.0.0.1:5678", nil))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:9999", nil))

	// outro usuário no mesmo IP tem balde próprio
	assert.Equal(t, http.StatusOK, call("10.0.0.1:1", &auth.User{ID: "u-1"}))
}

func TestCleanup(t *testing.T) {
	l := New(10, 10)
	l.Allow("a")
	l.Allow("b")
	assert.Equal(t, 2, l.Len())

	l.Cleanup(time.Hour)
	assert.Equal(t, 2, l.Len())

	l.Cleanup(-time.Second)
	assert.Equal(t, 0, l.Len())
}
