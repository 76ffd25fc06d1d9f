// Package ratelimit limita requisições por usuário autenticado (ou IP).
package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/radieske/fitness-benefits-platform/internal/shared/auth"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter mantém um rate.Limiter por chave
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	rate     rate.Limit
	burst    int
}

func New(requestsPerSecond float64, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*entry),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

// Allow consome um token da chave
func (l *Limiter) Allow(key string) bool { return l.get(key).Allow() }

// Handler aplica o limite usando o id do usuário do contexto ou o IP remoto
func (l *Limiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ""
		if u := auth.UserFrom(r.Context()); u != nil {
			key = u.ID
		}
		if key == "" {
			key = r.RemoteAddr
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				key = host
			}
		}
		if !l.Allow(key) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Cleanup remove limiters ociosos há mais de idle
func (l *Limiter) Cleanup(idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cut := time.Now().Add(-idle)
	for k, e := range l.limiters {
		if e.lastSeen.Before(cut) {
			delete(l.limiters, k)
		}
	}
}

// Len retorna a quantidade de chaves monitoradas
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
