package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/clinical-scheduling/internal/events"
)

// Repository contains all appointment persistence needed by the service.
// Create and the Update methods persist the given events in the same
// transaction as the aggregate row.
type Repository interface {
	Create(ctx context.Context, a *Appointment, evs []events.Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListScheduledForPractitioner(ctx context.Context, clinicID, practitionerID uuid.UUID) ([]*Appointment, error)
	ListByClinicDay(ctx context.Context, clinicID uuid.UUID, day time.Time) ([]*Appointment, error)

	// UpdateStatus is a compare-and-swap on status; a concurrent writer that
	// changed the status first makes the row count zero and the call returns
	// ErrInvalidTransition.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, evs []events.Record) (*Appointment, error)
	UpdateAssignee(ctx context.Context, id uuid.UUID, assignee *uuid.UUID, evs []events.Record) (*Appointment, error)
	MarkServiceStarted(ctx context.Context, id uuid.UUID, at time.Time) error
}

// OwnerDirectory and AnimalDirectory are existence checks against records
// this core treats as opaque identifiers.
type OwnerDirectory interface {
	OwnerExists(ctx context.Context, id uuid.UUID) (bool, error)
}

type AnimalDirectory interface {
	AnimalExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Clock is injected everywhere "now" matters.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

type IDGenerator interface {
	NewID() uuid.UUID
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID() uuid.UUID { return uuid.New() }
