package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/fitness-benefits-platform/internal/shared/asaas"
	sharedcache "github.com/radieske/fitness-benefits-platform/internal/shared/cache"
	"github.com/radieske/fitness-benefits-platform/internal/shared/config"
	"github.com/radieske/fitness-benefits-platform/internal/shared/db"
	"github.com/radieske/fitness-benefits-platform/internal/shared/kafka"
	"github.com/radieske/fitness-benefits-platform/internal/shared/logger"
	"github.com/radieske/fitness-benefits-platform/internal/shared/metrics"
	"github.com/radieske/fitness-benefits-platform/internal/subscription-worker/consumer"
	"github.com/radieske/fitness-benefits-platform/internal/subscription-worker/notify"
	"github.com/radieske/fitness-benefits-platform/internal/subscription-worker/reconciler"
	"github.com/radieske/fitness-benefits-platform/internal/subscription-worker/repo"
	"github.com/radieske/fitness-benefits-platform/internal/subscription-worker/sweeper"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Postgres: assinaturas, cobranças e log de webhooks
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis: invalidação do cache de assinatura ativa e broadcast para o WebSocket
	rdb, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicAsaasWebhooks, "subscription-worker")
	defer reader.Close()

	changedWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicSubscriptionChanged)
	defer changedWriter.Close()

	dlqWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicAsaasWebhooksDLQ)
	defer dlqWriter.Close()

	gw := asaas.New(asaas.Config{BaseURL: cfg.AsaasBaseURL, APIKey: cfg.AsaasAPIKey, RPS: cfg.AsaasRPS})

	// Métricas Prometheus
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "subscription_worker_messages_consumed_total", Help: "webhooks consumidos"})
	processed := prometheus.NewCounter(prometheus.CounterOpts{Name: "subscription_worker_messages_processed_total", Help: "webhooks reconciliados"})
	dlq := prometheus.NewCounter(prometheus.CounterOpts{Name: "subscription_worker_dlq_total", Help: "webhooks enviados para a DLQ"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "subscription_worker_errors_total", Help: "erros por fase"}, []string{"phase"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "subscription_transitions_total", Help: "transições de assinatura"}, []string{"from", "to"})
	ignored := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "subscription_worker_ignored_total", Help: "eventos sem efeito"}, []string{"reason"})
	swept := prometheus.NewCounter(prometheus.CounterOpts{Name: "subscription_worker_swept_total", Help: "cobranças reconciliadas pela varredura"})
	asaasReqs := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "asaas_requests_total", Help: "requisições ao Asaas"}, []string{"method", "status"})
	prometheus.MustRegister(consumed, processed, dlq, errorsBy, transitions, ignored, swept, asaasReqs)

	gw.OnRequest = func(method, _ string, status int) {
		asaasReqs.WithLabelValues(method, statusLabel(status)).Inc()
	}

	store := repo.NewPostgres(pg)
	rec := &reconciler.Reconciler{
		Log:          log,
		Store:        store,
		Gateway:      gw,
		Notifier:     notify.New(changedWriter, rdb, cfg.RedisPaymentChannel),
		Cache:        sharedcache.NewJSON(rdb),
		OnTransition: func(from, to string) { transitions.WithLabelValues(from, to).Inc() },
		OnIgnored:    func(reason string) { ignored.WithLabelValues(reason).Inc() },
	}

	proc := &consumer.Processor{
		Log:         log,
		Reader:      reader,
		DLQ:         dlqWriter,
		Handler:     rec,
		Failures:    store,
		OnConsumed:  consumed.Inc,
		OnProcessed: processed.Inc,
		OnDLQ:       dlq.Inc,
		OnError:     func(phase string) { errorsBy.WithLabelValues(phase).Inc() },
	}

	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, metrics.Checks(map[string]metrics.HealthFunc{
		"postgres": store.Ping,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}))

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sw := &sweeper.Sweeper{
		Log:     log.Named("sweeper"),
		Store:   store,
		Gateway: gw,
		Handler: rec,
		MinAge:  cfg.SweepMinAge,
		OnSwept: func(n int) { swept.Add(float64(n)) },
	}
	cr, err := sw.Start(ctx, cfg.SweepCron)
	if err != nil {
		log.Fatal("sweeper schedule", zap.String("spec", cfg.SweepCron), zap.Error(err))
	}

	log.Info("subscription-worker started",
		zap.String("consume", cfg.TopicAsaasWebhooks),
		zap.String("publish", cfg.TopicSubscriptionChanged),
		zap.String("dlq", cfg.TopicAsaasWebhooksDLQ),
	)
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("processor stopped with error", zap.Error(err))
	}

	// aguarda a varredura em andamento antes de fechar as conexões
	<-cr.Stop().Done()
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	_ = msrv.Shutdown(shutdownCtx)
	log.Info("subscription-worker stopped")
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
