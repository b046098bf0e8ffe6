package waitingroom

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/clinical-scheduling/internal/events"
)

var (
	ErrEntryNotFound      = errors.New("waiting room entry not found")
	ErrInvalidTransition  = errors.New("invalid waiting room status transition")
	ErrAlreadyCheckedIn   = errors.New("appointment already has a waiting room entry")
	ErrAppointmentNotOpen = errors.New("appointment cannot be checked in from its current status")
	ErrEntryModified      = errors.New("entry was modified concurrently, retry")
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusCalled    Status = "called"
	StatusInService Status = "in_service"
	StatusClosed    Status = "closed"
)

type Origin string

const (
	OriginAppointment Origin = "from_appointment"
	OriginWalkIn      Origin = "walk_in"
)

type ArrivalMode string

const (
	ArrivalStandard  ArrivalMode = "standard"
	ArrivalEmergency ArrivalMode = "emergency"
)

const (
	EventCreatedFromAppointment = "WAITING_ROOM_CREATED_FROM_APPOINTMENT"
	EventWalkInCreated          = "WAITING_ROOM_WALK_IN_CREATED"
	EventLinkedToOwnerAndAnimal = "WAITING_ROOM_LINKED_TO_OWNER_AND_ANIMAL"
	EventCalled                 = "WAITING_ROOM_CALLED"
	EventServiceStarted         = "WAITING_ROOM_SERVICE_STARTED"
	EventTriageUpdated          = "WAITING_ROOM_TRIAGE_UPDATED"
	EventClosed                 = "WAITING_ROOM_CLOSED"
)

// legalTransitions is the closed table of allowed status moves. Triage
// updates and identification links are not transitions; they have their own
// status guards.
var legalTransitions = map[Status]map[Status]bool{
	StatusWaiting:   {StatusCalled: true, StatusClosed: true},
	StatusCalled:    {StatusInService: true, StatusClosed: true},
	StatusInService: {StatusClosed: true},
	StatusClosed:    {},
}

// Entry tracks a physical presence in the clinic, either from a checked-in
// appointment or a walk-in. Stage timestamps are set exactly once as the
// entry advances and are never reset; higher priority means more urgent.
type Entry struct {
	ID                     uuid.UUID
	ClinicID               uuid.UUID
	Origin                 Origin
	ArrivalMode            ArrivalMode
	LinkedAppointmentID    *uuid.UUID
	OwnerID                *uuid.UUID
	AnimalID               *uuid.UUID
	FoundAnimalDescription *string
	Priority               int
	TriageNotes            *string
	Status                 Status
	ArrivedAt              time.Time
	CalledAt               *time.Time
	ServiceStartedAt       *time.Time
	ClosedAt               *time.Time
	CalledBy               *uuid.UUID
	ServiceStartedBy       *uuid.UUID
	ClosedBy               *uuid.UUID

	pending []events.Record
}

// NewFromAppointment builds an entry for a checked-in appointment. The owner
// and animal ids are a snapshot of the appointment at check-in time, not a
// live join.
func NewFromAppointment(id, appointmentID, clinicID uuid.UUID, ownerID, animalID *uuid.UUID, mode ArrivalMode, priority int, now time.Time) *Entry {
	e := &Entry{
		ID:                  id,
		ClinicID:            clinicID,
		Origin:              OriginAppointment,
		ArrivalMode:         mode,
		LinkedAppointmentID: &appointmentID,
		OwnerID:             ownerID,
		AnimalID:            animalID,
		Priority:            priority,
		Status:              StatusWaiting,
		ArrivedAt:           now.UTC(),
	}
	e.record(EventCreatedFromAppointment, map[string]any{
		"appointment_id": appointmentID.String(),
		"arrival_mode":   string(mode),
		"priority":       priority,
	}, now)
	return e
}

// NewWalkIn builds an entry with no prior appointment. Owner and animal may
// be unknown at arrival (a found stray) and linked later.
func NewWalkIn(id, clinicID uuid.UUID, ownerID, animalID *uuid.UUID, foundAnimalDescription *string, mode ArrivalMode, priority int, triageNotes *string, now time.Time) *Entry {
	e := &Entry{
		ID:                     id,
		ClinicID:               clinicID,
		Origin:                 OriginWalkIn,
		ArrivalMode:            mode,
		OwnerID:                ownerID,
		AnimalID:               animalID,
		FoundAnimalDescription: foundAnimalDescription,
		Priority:               priority,
		TriageNotes:            triageNotes,
		Status:                 StatusWaiting,
		ArrivedAt:              now.UTC(),
	}
	payload := map[string]any{
		"arrival_mode": string(mode),
		"priority":     priority,
	}
	if foundAnimalDescription != nil {
		payload["found_animal_description"] = *foundAnimalDescription
	}
	e.record(EventWalkInCreated, payload, now)
	return e
}

func (e *Entry) transition(to Status) error {
	if !legalTransitions[e.Status][to] {
		return ErrInvalidTransition
	}
	e.Status = to
	return nil
}

// Call moves a waiting entry to called, stamping calledAt once.
func (e *Entry) Call(byUserID uuid.UUID, now time.Time) error {
	if err := e.transition(StatusCalled); err != nil {
		return err
	}
	at := now.UTC()
	e.CalledAt = &at
	e.CalledBy = &byUserID
	e.record(EventCalled, map[string]any{
		"called_at": at,
		"called_by": byUserID.String(),
	}, now)
	return nil
}

// StartService moves a called entry into service. Skipping straight from
// waiting is rejected.
func (e *Entry) StartService(byUserID uuid.UUID, now time.Time) error {
	if err := e.transition(StatusInService); err != nil {
		return err
	}
	at := now.UTC()
	e.ServiceStartedAt = &at
	e.ServiceStartedBy = &byUserID
	e.record(EventServiceStarted, map[string]any{
		"service_started_at": at,
		"service_started_by": byUserID.String(),
	}, now)
	return nil
}

// Close terminates the entry from any non-closed status.
func (e *Entry) Close(byUserID uuid.UUID, now time.Time) error {
	if err := e.transition(StatusClosed); err != nil {
		return err
	}
	at := now.UTC()
	e.ClosedAt = &at
	e.ClosedBy = &byUserID
	e.record(EventClosed, map[string]any{
		"closed_at": at,
		"closed_by": byUserID.String(),
	}, now)
	return nil
}

// UpdateTriage adjusts priority, notes and arrival mode. Triage happens
// before service begins: only waiting and called entries accept it.
func (e *Entry) UpdateTriage(priority int, notes *string, mode ArrivalMode, now time.Time) error {
	if e.Status != StatusWaiting && e.Status != StatusCalled {
		return ErrInvalidTransition
	}
	e.Priority = priority
	e.TriageNotes = notes
	e.ArrivalMode = mode
	payload := map[string]any{
		"priority":     priority,
		"arrival_mode": string(mode),
	}
	if notes != nil {
		payload["triage_notes"] = *notes
	}
	e.record(EventTriageUpdated, payload, now)
	return nil
}

// LinkOwnerAndAnimal late-binds identification for an entry whose patient was
// unknown at arrival. Allowed in any non-terminal state.
func (e *Entry) LinkOwnerAndAnimal(ownerID, animalID *uuid.UUID, now time.Time) error {
	if e.Status == StatusClosed {
		return ErrInvalidTransition
	}
	e.OwnerID = ownerID
	e.AnimalID = animalID
	payload := map[string]any{}
	if ownerID != nil {
		payload["owner_id"] = ownerID.String()
	}
	if animalID != nil {
		payload["animal_id"] = animalID.String()
	}
	e.record(EventLinkedToOwnerAndAnimal, payload, now)
	return nil
}

func (e *Entry) record(eventType string, payload map[string]any, at time.Time) {
	e.pending = append(e.pending, events.New(events.AggregateWaitingRoomEntry, e.ID, e.ClinicID, eventType, payload, at.UTC()))
}

// DrainEvents returns and clears the events recorded since the last drain.
func (e *Entry) DrainEvents() []events.Record {
	evs := e.pending
	e.pending = nil
	return evs
}
