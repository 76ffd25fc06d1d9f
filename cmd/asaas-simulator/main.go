package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	httpapi "github.com/radieske/fitness-benefits-platform/internal/asaas-simulator/http"
	"github.com/radieske/fitness-benefits-platform/internal/asaas-simulator/store"
	"github.com/radieske/fitness-benefits-platform/internal/asaas-simulator/webhook"
	"github.com/radieske/fitness-benefits-platform/internal/shared/config"
	"github.com/radieske/fitness-benefits-platform/internal/shared/logger"
	"github.com/radieske/fitness-benefits-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Métricas Prometheus para os webhooks disparados
	sent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simulator_webhooks_sent_total",
		Help: "Webhooks enviados por evento e resultado",
	}, []string{"event", "delivered"})
	prometheus.MustRegister(sent)

	sender := webhook.NewSender(log.Named("webhook"), cfg.SimulatorWebhookURL, cfg.AsaasWebhookToken)
	sender.OnSent = func(event string, ok bool) { sent.WithLabelValues(event, strconv.FormatBool(ok)).Inc() }

	// URL pública usada nos links de fatura/checkout devolvidos
	publicURL := os.Getenv("SIMULATOR_PUBLIC_URL")
	if publicURL == "" {
		publicURL = "http://localhost:" + cfg.HTTPPort
	}

	api := httpapi.NewServer(log, store.NewMemory(), sender, cfg.AsaasAPIKey, publicURL)

	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, nil)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		log.Info("asaas-simulator listening",
			zap.String("addr", srv.Addr),
			zap.String("api", publicURL+httpapi.APIPrefix),
			zap.String("webhook_url", cfg.SimulatorWebhookURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	_ = srv.Shutdown(shutdownCtx)
	_ = msrv.Shutdown(shutdownCtx)
	log.Info("asaas-simulator stopped")
}
