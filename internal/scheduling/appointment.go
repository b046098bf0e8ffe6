package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/clinical-scheduling/internal/events"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusNoShow    Status = "no_show"
)

const (
	EventScheduled              = "APPOINTMENT_SCHEDULED"
	EventMarkedNoShow           = "APPOINTMENT_MARKED_NO_SHOW"
	EventPractitionerAssigned   = "APPOINTMENT_PRACTITIONER_ASSIGNED"
	EventPractitionerUnassigned = "APPOINTMENT_PRACTITIONER_UNASSIGNED"
)

// Appointment is a scheduled visit. Eligibility and conflict checks are
// write-time gates run by the service before construction or reassignment;
// the aggregate itself never queries other aggregates.
type Appointment struct {
	ID               uuid.UUID
	ClinicID         uuid.UUID
	OwnerID          *uuid.UUID
	AnimalID         *uuid.UUID
	Practitioner     *uuid.UUID
	Slot             TimeSlot
	Status           Status
	Reason           *string
	Notes            *string
	ServiceStartedAt *time.Time
	CreatedAt        time.Time

	pending []events.Record
}

// NewAppointment creates a scheduled appointment and records its Scheduled event.
func NewAppointment(id, clinicID uuid.UUID, ownerID, animalID, practitionerID *uuid.UUID, slot TimeSlot, reason, notes *string, now time.Time) *Appointment {
	a := &Appointment{
		ID:           id,
		ClinicID:     clinicID,
		OwnerID:      ownerID,
		AnimalID:     animalID,
		Practitioner: practitionerID,
		Slot:         slot,
		Status:       StatusScheduled,
		Reason:       reason,
		Notes:        notes,
		CreatedAt:    now.UTC(),
	}

	payload := map[string]any{
		"starts_at":        a.Slot.StartsAt,
		"duration_minutes": a.Slot.DurationMinutes,
		"status":           string(a.Status),
	}
	if ownerID != nil {
		payload["owner_id"] = ownerID.String()
	}
	if animalID != nil {
		payload["animal_id"] = animalID.String()
	}
	if practitionerID != nil {
		payload["practitioner_id"] = practitionerID.String()
	}
	if reason != nil {
		payload["reason"] = *reason
	}
	a.record(EventScheduled, payload, now)
	return a
}

// AssignPractitioner sets the assignee. The caller must have re-run
// eligibility and conflict checks for the new practitioner first.
func (a *Appointment) AssignPractitioner(userID uuid.UUID, now time.Time) error {
	if a.Status != StatusScheduled {
		return ErrInvalidTransition
	}
	a.Practitioner = &userID
	a.record(EventPractitionerAssigned, map[string]any{
		"practitioner_id": userID.String(),
	}, now)
	return nil
}

// UnassignPractitioner clears the assignee, keeping the previous id in the
// event for audit.
func (a *Appointment) UnassignPractitioner(now time.Time) error {
	if a.Practitioner == nil {
		return ErrNoPractitionerAssigned
	}
	previous := *a.Practitioner
	a.Practitioner = nil
	a.record(EventPractitionerUnassigned, map[string]any{
		"previous_practitioner_id": previous.String(),
	}, now)
	return nil
}

// MarkNoShow is terminal; only legal from scheduled.
func (a *Appointment) MarkNoShow(now time.Time) error {
	if a.Status != StatusScheduled {
		return ErrInvalidTransition
	}
	a.Status = StatusNoShow
	a.record(EventMarkedNoShow, map[string]any{
		"status": string(StatusNoShow),
	}, now)
	return nil
}

func (a *Appointment) record(eventType string, payload map[string]any, at time.Time) {
	a.pending = append(a.pending, events.New(events.AggregateAppointment, a.ID, a.ClinicID, eventType, payload, at.UTC()))
}

// DrainEvents returns and clears the events recorded since the last drain.
// The repository persists them in the same transaction as the aggregate.
func (a *Appointment) DrainEvents() []events.Record {
	evs := a.pending
	a.pending = nil
	return evs
}
