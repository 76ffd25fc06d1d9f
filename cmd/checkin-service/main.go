package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/fitness-benefits-platform/internal/checkin-service/checkin"
	httpapi "github.com/radieske/fitness-benefits-platform/internal/checkin-service/http"
	"github.com/radieske/fitness-benefits-platform/internal/checkin-service/producer"
	"github.com/radieske/fitness-benefits-platform/internal/checkin-service/repo"
	"github.com/radieske/fitness-benefits-platform/internal/checkin-service/subscriptions"
	"github.com/radieske/fitness-benefits-platform/internal/shared/auth"
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

	// Kafka producer: gym_checkins para consolidação de repasses
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicGymCheckins)
	defer writer.Close()

	if cfg.SupabaseServiceKey == "" {
		log.Warn("SUPABASE_SERVICE_KEY not set: payment-service calls go without credentials")
	}
	subs := subscriptions.New(cfg.PaymentServiceURL, cfg.SupabaseServiceKey)

	// virada do dia para a regra de um check-in diário
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		log.Warn("timezone America/Sao_Paulo unavailable, using UTC-3", zap.Error(err))
		loc = time.FixedZone("BRT", -3*3600)
	}

	checkins := prometheus.NewCounter(prometheus.CounterOpts{Name: "checkins_total", Help: "check-ins registrados"})
	payout := prometheus.NewCounter(prometheus.CounterOpts{Name: "checkins_payout_cents_total", Help: "repasse gerado em centavos"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "checkins_rejected_total", Help: "check-ins recusados por motivo"}, []string{"reason"})
	prometheus.MustRegister(checkins, payout, rejected)

	store := repo.NewPostgres(db.Sqlx(pg))
	svc := checkin.NewService(log, store, subs, producer.NewKafkaPublisher(writer), loc)
	svc.OnCheckin = func(cents int64) {
		checkins.Inc()
		payout.Add(float64(cents))
	}
	svc.OnRejected = func(reason string) { rejected.WithLabelValues(reason).Inc() }

	api := httpapi.NewServer(log, svc)
	api.Auth = auth.NewMiddleware(cfg.SupabaseJWTSecret)
	api.Limiter = ratelimit.New(10, 20)

	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, metrics.Checks(map[string]metrics.HealthFunc{
		"postgres": store.Ping,
	}))

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		log.Info("checkin-service listening", zap.String("addr", srv.Addr), zap.String("payment_service", cfg.PaymentServiceURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	// limpeza periódica dos limiters ociosos
	go func() {
		t := time.NewTicker(5 * time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				api.Limiter.Cleanup(10 * time.Minute)
			}
		}
	}()

	<-ctx.Done()
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	_ = srv.Shutdown(shutdownCtx)
	_ = msrv.Shutdown(shutdownCtx)
	log.Info("checkin-service stopped")
}
