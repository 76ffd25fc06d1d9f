package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/radieske/fitness-benefits-platform/internal/payment-service/catalog"
	"github.com/radieske/fitness-benefits-platform/internal/payment-service/checkout"
	httpapi "github.com/radieske/fitness-benefits-platform/internal/payment-service/http"
	"github.com/radieske/fitness-benefits-platform/internal/payment-service/producer"
	"github.com/radieske/fitness-benefits-platform/internal/payment-service/repo"
	"github.com/radieske/fitness-benefits-platform/internal/payment-service/webhook"
	"github.com/radieske/fitness-benefits-platform/internal/payment-service/ws"
	"github.com/radieske/fitness-benefits-platform/internal/shared/asaas"
	"github.com/radieske/fitness-benefits-platform/internal/shared/auth"
	sharedcache "github.com/radieske/fitness-benefits-platform/internal/shared/cache"
	"github.com/radieske/fitness-benefits-platform/internal/shared/config"
	"github.com/radieske/fitness-benefits-platform/internal/shared/db"
	"github.com/radieske/fitness-benefits-platform/internal/shared/kafka"
	"github.com/radieske/fitness-benefits-platform/internal/shared/logger"
	"github.com/radieske/fitness-benefits-platform/internal/shared/metrics"
	"github.com/radieske/fitness-benefits-platform/internal/shared/ratelimit"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	rdb, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka producer: webhooks aceitos seguem para o subscription-worker
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicAsaasWebhooks)
	defer writer.Close()

	if cfg.AsaasAPIKey == "" {
		log.Warn("ASAAS_API_KEY not set: gateway calls will be rejected")
	}
	gw := asaas.New(asaas.Config{BaseURL: cfg.AsaasBaseURL, APIKey: cfg.AsaasAPIKey, RPS: cfg.AsaasRPS})

	// Métricas Prometheus
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "payment_checkouts_total", Help: "checkouts iniciados por modo"}, []string{"mode"})
	compensations := prometheus.NewCounter(prometheus.CounterOpts{Name: "payment_checkout_compensations_total", Help: "assinaturas canceladas por falha do gateway"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "payment_webhooks_received_total", Help: "webhooks aceitos por evento"}, []string{"event"})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{Name: "payment_webhooks_duplicate_total", Help: "webhooks repetidos"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "payment_webhooks_rejected_total", Help: "webhooks recusados"}, []string{"reason"})
	wsConns := prometheus.NewGauge(prometheus.GaugeOpts{Name: "payment_ws_connections", Help: "conexões WebSocket abertas"})
	asaasReqs := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "asaas_requests_total", Help: "requisições ao Asaas"}, []string{"method", "status"})
	prometheus.MustRegister(checkouts, compensations, webhooks, duplicates, rejected, wsConns, asaasReqs)

	gw.OnRequest = func(method, _ string, status int) {
		asaasReqs.WithLabelValues(method, statusLabel(status)).Inc()
	}

	store := repo.NewPostgres(pg)
	plansRepo := repo.NewCatalog(db.Sqlx(pg))
	jsonCache := sharedcache.NewJSON(rdb)

	svc := checkout.NewService(log, plansRepo, store, gw, jsonCache, checkout.Options{
		DueDays:    cfg.AsaasDueDays,
		SuccessURL: cfg.CheckoutSuccessURL,
		CancelURL:  cfg.CheckoutCancelURL,
		ExpiredURL: cfg.CheckoutExpiredURL,
	})
	svc.OnCheckout = func(mode string) { checkouts.WithLabelValues(mode).Inc() }
	svc.OnCompensation = compensations.Inc

	hook := webhook.NewHandler(log.Named("webhook"), cfg.AsaasWebhookToken, store, producer.NewKafkaPublisher(writer, cfg.TopicAsaasWebhooks))
	hook.OnReceived = func(event string) { webhooks.WithLabelValues(event).Inc() }
	hook.OnDuplicate = duplicates.Inc
	hook.OnRejected = func(reason string) { rejected.WithLabelValues(reason).Inc() }

	// Hub WebSocket alimentado pelo canal Redis do subscription-worker
	hub := ws.NewHub(func(r *http.Request) bool { return true })
	hub.OnConnect = wsConns.Inc
	hub.OnDisconnect = wsConns.Dec

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ws.StartRedisSubscriber(ctx, log, rdb, cfg.RedisPaymentChannel, hub)

	limiter := ratelimit.New(20, 40)
	janitor := cron.New()
	_, _ = janitor.AddFunc("@every 5m", func() { limiter.Cleanup(10 * time.Minute) })
	janitor.Start()
	defer janitor.Stop()

	authn := auth.NewMiddleware(cfg.SupabaseJWTSecret)
	if !authn.Enabled() {
		log.Warn("SUPABASE_JWT_SECRET not set: requests run as service_role")
	}

	api := httpapi.NewServer(log, &catalog.Catalog{Reader: plansRepo, Cache: jsonCache}, svc, store)
	api.Webhook = hook
	api.WS = hub.HandleWS
	hub.Authorize = api.CanWatchPayment
	api.Auth = authn
	api.Limiter = limiter

	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, metrics.Checks(map[string]metrics.HealthFunc{
		"postgres": store.Ping,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}))

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("payment-service listening", zap.String("addr", srv.Addr), zap.String("asaas", gw.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	_ = srv.Shutdown(shutdownCtx)
	_ = msrv.Shutdown(shutdownCtx)
	log.Info("payment-service stopped")
}

func statusLabel(status int) string {
	switch {
	case status == 0:
		return "network_error"
	case status < 300:
		return "2xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
