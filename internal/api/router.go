package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	Scheduling  SchedulingService
	WaitingRoom WaitingRoomService
	PgPool      *pgxpool.Pool
	Redis       *redis.Client
	Logger      zerolog.Logger
	Env         string
	Version     string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", scheduleAppointmentHandler(cfg.Scheduling))
		r.Get("/", listClinicDayHandler(cfg.Scheduling))
		r.Get("/{id}", getAppointmentHandler(cfg.Scheduling))
		r.Post("/{id}/no-show", markNoShowHandler(cfg.Scheduling))
		r.Post("/{id}/assign", assignPractitionerHandler(cfg.Scheduling))
		r.Post("/{id}/unassign", unassignPractitionerHandler(cfg.Scheduling))
		r.Post("/{id}/check-in", checkInHandler(cfg.WaitingRoom))
	})

	r.Route("/waiting-room", func(r chi.Router) {
		r.Post("/", createWalkInHandler(cfg.WaitingRoom))
		r.Get("/", listQueueHandler(cfg.WaitingRoom))
		r.Get("/{id}", getEntryHandler(cfg.WaitingRoom))
		r.Post("/{id}/call", staffActionHandler(cfg.WaitingRoom.Call))
		r.Post("/{id}/start-service", staffActionHandler(cfg.WaitingRoom.StartService))
		r.Post("/{id}/close", staffActionHandler(cfg.WaitingRoom.Close))
		r.Put("/{id}/triage", updateTriageHandler(cfg.WaitingRoom))
		r.Post("/{id}/link", linkOwnerAndAnimalHandler(cfg.WaitingRoom))
	})

	return r
}
