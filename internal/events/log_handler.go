package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogHandler publishes events to the structured log. It stands in for a
// broker integration and gives operators a durable, ordered record of
// everything the aggregates emitted.
type LogHandler struct {
	logger zerolog.Logger
}

func NewLogHandler(logger zerolog.Logger) *LogHandler {
	return &LogHandler{logger: logger}
}

func (h *LogHandler) Handle(_ context.Context, ev PendingEvent) error {
	h.logger.Info().
		Stringer("event_id", ev.ID).
		Str("event_type", ev.Type).
		Str("aggregate_type", ev.AggregateType).
		Stringer("aggregate_id", ev.AggregateID).
		Stringer("clinic_id", ev.ClinicID).
		Interface("payload", ev.Payload).
		Time("occurred_at", ev.CreatedAt).
		Msg("event delivered")
	return nil
}
