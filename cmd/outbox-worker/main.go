package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/vetdesk/clinical-scheduling/internal/config"
	"github.com/vetdesk/clinical-scheduling/internal/db"
	"github.com/vetdesk/clinical-scheduling/internal/events"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLogger := zerolog.New(os.Stderr)
		errLogger.Fatal().Err(err).Msg("config load error")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("service", "outbox-worker").Logger()

	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.OutboxInterval).
		Int("batch_size", cfg.OutboxBatchSize).
		Msg("outbox-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	store := events.NewOutboxStore(pgPool)
	handler := events.NewLogHandler(logger.With().Str("component", "delivery").Logger())

	deliverer := events.NewDeliverer(store, handler, logger).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithInterval(cfg.OutboxInterval)

	// drain whatever accumulated while the worker was down
	deliverer.DeliverOnce(rootCtx)

	deliverer.Run(rootCtx)

	logger.Info().Msg("outbox-worker stopped")
}
