package events

import (
	"time"

	"github.com/google/uuid"
)

// Aggregate type labels used in outbox rows.
const (
	AggregateAppointment      = "appointment"
	AggregateWaitingRoomEntry = "waiting_room_entry"
)

// Record is a domain event awaiting delivery. Payload is a flat map of the
// fields that changed, independent of the aggregate's internal representation.
type Record struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	ClinicID      uuid.UUID
	Type          string
	Payload       map[string]any
	CreatedAt     time.Time
}

// New builds a record for an aggregate mutation.
func New(aggregateType string, aggregateID, clinicID uuid.UUID, eventType string, payload map[string]any, at time.Time) Record {
	if payload == nil {
		payload = map[string]any{}
	}
	return Record{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		ClinicID:      clinicID,
		Type:          eventType,
		Payload:       payload,
		CreatedAt:     at,
	}
}
