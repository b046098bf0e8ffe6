package waitingroom

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/clinical-scheduling/internal/events"
	"github.com/vetdesk/clinical-scheduling/internal/scheduling"
)

// ReopenPolicy decides whether a closed entry still occupies its
// appointment's uniqueness slot: with PolicyBlockReCheckIn a patient who
// returned cannot be checked in again on the same appointment.
type ReopenPolicy string

const (
	PolicyBlockReCheckIn ReopenPolicy = "block"
	PolicyAllowReCheckIn ReopenPolicy = "allow"
)

// Repository persists waiting room entries. Mutations carry the aggregate's
// drained events, written in the same transaction.
type Repository interface {
	Create(ctx context.Context, e *Entry, evs []events.Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)

	// FindByAppointmentID returns the entry occupying appointmentID, or
	// ErrEntryNotFound. includeClosed widens the lookup to closed entries.
	FindByAppointmentID(ctx context.Context, appointmentID uuid.UUID, includeClosed bool) (*Entry, error)

	// UpdateStatus persists a transition as a compare-and-swap on the
	// previous status; a losing concurrent writer gets ErrEntryModified.
	UpdateStatus(ctx context.Context, e *Entry, from Status, evs []events.Record) error
	UpdateTriage(ctx context.Context, e *Entry, evs []events.Record) error
	UpdateIdentification(ctx context.Context, e *Entry, evs []events.Record) error

	// ListQueue returns the clinic's non-closed entries ordered by priority
	// descending, then arrival ascending.
	ListQueue(ctx context.Context, clinicID uuid.UUID) ([]*Entry, error)
}

// AppointmentSource is the narrow view of the scheduling side needed for
// check-in: load the appointment snapshot and stamp its service start.
type AppointmentSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	MarkServiceStarted(ctx context.Context, id uuid.UUID, at time.Time) error
}
