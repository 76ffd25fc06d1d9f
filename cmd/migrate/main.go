package main

import (
	"go.uber.org/zap"

	"github.com/radieske/fitness-benefits-platform/internal/shared/config"
	"github.com/radieske/fitness-benefits-platform/internal/shared/db"
	"github.com/radieske/fitness-benefits-platform/internal/shared/logger"
)

// Aplica as migrations embutidas em internal/shared/db/migrations
func main() {
	cfg := config.Load()
	log, err := logger.New("migrate", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	version, err := db.Migrate(pg)
	if err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	log.Info("migrations applied", zap.Uint("version", version))
}
