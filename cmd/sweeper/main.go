package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/fitpulsehq/fitpulse-backend/internal/config"
	"github.com/fitpulsehq/fitpulse-backend/internal/infra/postgres"
	"github.com/fitpulsehq/fitpulse-backend/internal/infra/postgres/repository"
	"github.com/fitpulsehq/fitpulse-backend/internal/logger"
	"github.com/fitpulsehq/fitpulse-backend/internal/service"
)

func main() {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	zl, err := logger.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dsn, err := cfg.DB.DSN()
	if err != nil {
		zl.Fatal("database is not configured", zap.Error(err))
	}

	pool, err := postgres.NewPool(ctx, dsn, postgres.PoolConfig{
		MaxConns:        cfg.DB.MaxConnections,
		MaxConnLifetime: cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	quizRepo := repository.NewQuizRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	ledgerRepo := repository.NewLedgerRepository(pool)

	sweep := service.NewSweepService(quizRepo, userRepo, ledgerRepo, zl, service.SweepConfig{
		Interval:        cfg.Sweep.Interval,
		UserBatchSize:   cfg.Sweep.UserBatchSize,
		CleanupOrphans:  cfg.Sweep.CleanupOrphans,
		CleanupSchedule: cfg.Sweep.CleanupSchedule,
	})

	// Blocks until a shutdown signal arrives.
	sweep.Start(ctx)

	zl.Info("shutdown signal received")
}
