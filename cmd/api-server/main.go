package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/vetdesk/clinical-scheduling/internal/api"
	"github.com/vetdesk/clinical-scheduling/internal/config"
	"github.com/vetdesk/clinical-scheduling/internal/db"
	"github.com/vetdesk/clinical-scheduling/internal/events"
	"github.com/vetdesk/clinical-scheduling/internal/observability/metrics"
	redisclient "github.com/vetdesk/clinical-scheduling/internal/redis"
	"github.com/vetdesk/clinical-scheduling/internal/scheduling"
	"github.com/vetdesk/clinical-scheduling/internal/waitingroom"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLogger := zerolog.New(os.Stderr)
		errLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := newLogger(cfg)
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

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

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	outbox := events.NewOutboxStore(pgPool)

	allowedRoles := make([]scheduling.Role, 0, len(cfg.AllowedRoles))
	for _, r := range cfg.AllowedRoles {
		allowedRoles = append(allowedRoles, scheduling.Role(r))
	}

	schedRepo := scheduling.NewPgRepository(pgPool, outbox)
	schedSvc := scheduling.NewService(scheduling.ServiceConfig{
		Repo:         schedRepo,
		Memberships:  scheduling.NewPgMembershipDirectory(pgPool),
		Owners:       scheduling.NewPgOwnerDirectory(pgPool),
		Animals:      scheduling.NewPgAnimalDirectory(pgPool),
		Locker:       redisclient.NewRedisLocker(rdb, cfg.BookingLockTTL),
		AllowedRoles: allowedRoles,
		Logger:       logger.With().Str("component", "scheduling").Logger(),
		Metrics:      metrics.NewSchedulingMetrics(prometheus.DefaultRegisterer),
	})

	wrSvc := waitingroom.NewService(waitingroom.ServiceConfig{
		Repo:         waitingroom.NewPgRepository(pgPool, outbox),
		Appointments: schedRepo,
		ReopenPolicy: waitingroom.ReopenPolicy(cfg.ReopenPolicy),
		Logger:       logger.With().Str("component", "waitingroom").Logger(),
		Metrics:      metrics.NewWaitingRoomMetrics(prometheus.DefaultRegisterer),
	})

	router := api.NewRouter(api.RouterConfig{
		Scheduling:  schedSvc,
		WaitingRoom: wrSvc,
		PgPool:      pgPool,
		Redis:       rdb,
		Logger:      logger,
		Env:         cfg.Env,
		Version:     version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown error")
	}

	logger.Info().Msg("api-server stopped")
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("service", "api-server").Logger()
}
