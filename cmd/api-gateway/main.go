package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/fitness-benefits-platform/internal/shared/config"
	"github.com/radieske/fitness-benefits-platform/internal/shared/logger"
	"github.com/radieske/fitness-benefits-platform/internal/shared/metrics"
	"github.com/radieske/fitness-benefits-platform/internal/shared/ratelimit"
)

func rp(log *zap.Logger, to string) *httputil.ReverseProxy {
	u, err := url.Parse(to)
	if err != nil {
		log.Fatal("invalid upstream url", zap.String("url", to), zap.Error(err))
	}
	p := httputil.NewSingleHostReverseProxy(u)
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("upstream failed", zap.String("upstream", u.Host), zap.String("path", r.URL.Path), zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream unavailable"}`))
	}
	return p
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	payments := rp(log, cfg.PaymentServiceURL)
	checkins := rp(log, cfg.CheckinServiceURL)

	allowOrigin := os.Getenv("CORS_ALLOW_ORIGIN")
	if allowOrigin == "" {
		allowOrigin = "*"
	}

	limiter := ratelimit.New(30, 60)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(withCORS(allowOrigin))

	// payment-service (ex.: /api/payments/v1/plans -> /v1/plans)
	r.With(limiter.Handler).Mount("/api/payments", http.StripPrefix("/api/payments", payments))

	// checkin-service (ex.: /api/checkins/v1/checkins -> /v1/checkins)
	r.With(limiter.Handler).Mount("/api/checkins", http.StripPrefix("/api/checkins", checkins))

	// webhooks do Asaas e WebSocket seguem sem limite de taxa
	r.Handle("/webhooks/*", payments)
	r.Handle("/ws", payments)

	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, nil)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		log.Info("api-gateway listening",
			zap.String("addr", srv.Addr),
			zap.String("payments", cfg.PaymentServiceURL),
			zap.String("checkins", cfg.CheckinServiceURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("gateway failed", zap.Error(err))
		}
	}()

	go func() {
		t := time.NewTicker(5 * time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				limiter.Cleanup(10 * time.Minute)
			}
		}
	}()

	<-ctx.Done()
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	_ = srv.Shutdown(shutdownCtx)
	_ = msrv.Shutdown(shutdownCtx)
	log.Info("api-gateway stopped")
}

func withCORS(origin string) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			h.ServeHTTP(w, r)
		})
	}
}
