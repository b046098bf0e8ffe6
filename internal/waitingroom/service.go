package waitingroom

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vetdesk/clinical-scheduling/internal/observability/metrics"
	"github.com/vetdesk/clinical-scheduling/internal/scheduling"
)

var tracer = otel.Tracer("vetdesk.internal.waitingroom")

// Service implements the waiting room use cases: check-in from an
// appointment, walk-in arrivals, and the call/start-service/close/triage
// staff actions.
type Service struct {
	repo         Repository
	appointments AppointmentSource
	clock        scheduling.Clock
	ids          scheduling.IDGenerator
	policy       ReopenPolicy
	logger       zerolog.Logger
	metrics      *metrics.WaitingRoomMetrics
}

type ServiceConfig struct {
	Repo         Repository
	Appointments AppointmentSource
	Clock        scheduling.Clock
	IDs          scheduling.IDGenerator
	ReopenPolicy ReopenPolicy
	Logger       zerolog.Logger
	Metrics      *metrics.WaitingRoomMetrics
}

func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = scheduling.SystemClock{}
	}
	ids := cfg.IDs
	if ids == nil {
		ids = scheduling.UUIDGenerator{}
	}
	policy := cfg.ReopenPolicy
	if policy == "" {
		policy = PolicyBlockReCheckIn
	}
	return &Service{
		repo:         cfg.Repo,
		appointments: cfg.Appointments,
		clock:        clock,
		ids:          ids,
		policy:       policy,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
	}
}

type CheckInCommand struct {
	AppointmentID uuid.UUID
	ArrivalMode   ArrivalMode
	Priority      int
}

// CheckInAppointment creates the waiting room entry linked to a scheduled
// appointment. The duplicate guard here is advisory; the unique index on
// linked_appointment_id closes the concurrent double check-in race, and the
// repository reports the violation as ErrAlreadyCheckedIn.
func (s *Service) CheckInAppointment(ctx context.Context, cmd CheckInCommand) (*Entry, error) {
	ctx, span := tracer.Start(ctx, "waitingroom.check_in")
	defer span.End()
	span.SetAttributes(attribute.String("vetdesk.appointment_id", cmd.AppointmentID.String()))

	appt, err := s.appointments.GetByID(ctx, cmd.AppointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != scheduling.StatusScheduled {
		return nil, ErrAppointmentNotOpen
	}

	includeClosed := s.policy == PolicyBlockReCheckIn
	if _, err := s.repo.FindByAppointmentID(ctx, cmd.AppointmentID, includeClosed); err == nil {
		return nil, ErrAlreadyCheckedIn
	} else if !errors.Is(err, ErrEntryNotFound) {
		return nil, fmt.Errorf("check existing entry: %w", err)
	}

	entry := NewFromAppointment(s.ids.NewID(), appt.ID, appt.ClinicID, appt.OwnerID, appt.AnimalID, cmd.ArrivalMode, cmd.Priority, s.clock.Now())
	if err := s.repo.Create(ctx, entry, entry.DrainEvents()); err != nil {
		return nil, err
	}

	s.metrics.ObserveArrival(string(OriginAppointment), string(cmd.ArrivalMode))
	s.logger.Info().
		Stringer("entry_id", entry.ID).
		Stringer("appointment_id", appt.ID).
		Stringer("clinic_id", entry.ClinicID).
		Msg("appointment checked in")
	return entry, nil
}

type WalkInCommand struct {
	ClinicID               uuid.UUID
	OwnerID                *uuid.UUID
	AnimalID               *uuid.UUID
	FoundAnimalDescription *string
	ArrivalMode            ArrivalMode
	Priority               int
	TriageNotes            *string
}

// CreateWalkIn registers an arrival with no prior appointment. No
// eligibility or conflict checks apply; no practitioner is assigned yet.
func (s *Service) CreateWalkIn(ctx context.Context, cmd WalkInCommand) (*Entry, error) {
	ctx, span := tracer.Start(ctx, "waitingroom.create_walk_in")
	defer span.End()

	entry := NewWalkIn(s.ids.NewID(), cmd.ClinicID, cmd.OwnerID, cmd.AnimalID, cmd.FoundAnimalDescription, cmd.ArrivalMode, cmd.Priority, cmd.TriageNotes, s.clock.Now())
	if err := s.repo.Create(ctx, entry, entry.DrainEvents()); err != nil {
		return nil, err
	}

	s.metrics.ObserveArrival(string(OriginWalkIn), string(cmd.ArrivalMode))
	s.logger.Info().Stringer("entry_id", entry.ID).Stringer("clinic_id", entry.ClinicID).Msg("walk-in entry created")
	return entry, nil
}

// Call announces the patient. Only a waiting entry can be called.
func (s *Service) Call(ctx context.Context, entryID, byUserID uuid.UUID) (*Entry, error) {
	ctx, span := tracer.Start(ctx, "waitingroom.call")
	defer span.End()

	entry, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	from := entry.Status
	if err := entry.Call(byUserID, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, entry, from, entry.DrainEvents()); err != nil {
		return nil, err
	}

	s.metrics.ObserveTransition(string(StatusCalled))
	if entry.CalledAt != nil {
		s.metrics.ObserveWait(entry.CalledAt.Sub(entry.ArrivedAt).Seconds())
	}
	s.logger.Info().Stringer("entry_id", entry.ID).Msg("waiting room entry called")
	return entry, nil
}

// StartService begins the consultation for a called entry. When the entry is
// linked to an appointment, the appointment's service start is stamped too;
// the link is a snapshot, so a failure there does not roll back the entry.
func (s *Service) StartService(ctx context.Context, entryID, byUserID uuid.UUID) (*Entry, error) {
	ctx, span := tracer.Start(ctx, "waitingroom.start_service")
	defer span.End()

	entry, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	from := entry.Status
	if err := entry.StartService(byUserID, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, entry, from, entry.DrainEvents()); err != nil {
		return nil, err
	}

	if entry.LinkedAppointmentID != nil && entry.ServiceStartedAt != nil {
		if err := s.appointments.MarkServiceStarted(ctx, *entry.LinkedAppointmentID, *entry.ServiceStartedAt); err != nil {
			s.logger.Error().Err(err).Stringer("appointment_id", *entry.LinkedAppointmentID).Msg("stamp appointment service start")
		}
	}

	s.metrics.ObserveTransition(string(StatusInService))
	s.logger.Info().Stringer("entry_id", entry.ID).Msg("service started")
	return entry, nil
}

// Close terminates the entry, from any stage before or during service.
func (s *Service) Close(ctx context.Context, entryID, byUserID uuid.UUID) (*Entry, error) {
	ctx, span := tracer.Start(ctx, "waitingroom.close")
	defer span.End()

	entry, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	from := entry.Status
	if err := entry.Close(byUserID, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, entry, from, entry.DrainEvents()); err != nil {
		return nil, err
	}

	s.metrics.ObserveTransition(string(StatusClosed))
	s.logger.Info().Stringer("entry_id", entry.ID).Msg("waiting room entry closed")
	return entry, nil
}

type TriageCommand struct {
	EntryID     uuid.UUID
	Priority    int
	TriageNotes *string
	ArrivalMode ArrivalMode
}

// UpdateTriage re-prioritizes an entry before service begins.
func (s *Service) UpdateTriage(ctx context.Context, cmd TriageCommand) (*Entry, error) {
	ctx, span := tracer.Start(ctx, "waitingroom.update_triage")
	defer span.End()

	entry, err := s.repo.GetByID(ctx, cmd.EntryID)
	if err != nil {
		return nil, err
	}
	if err := entry.UpdateTriage(cmd.Priority, cmd.TriageNotes, cmd.ArrivalMode, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTriage(ctx, entry, entry.DrainEvents()); err != nil {
		return nil, err
	}

	s.logger.Info().Stringer("entry_id", entry.ID).Int("priority", entry.Priority).Msg("triage updated")
	return entry, nil
}

// LinkOwnerAndAnimal identifies the patient of an entry after arrival.
func (s *Service) LinkOwnerAndAnimal(ctx context.Context, entryID uuid.UUID, ownerID, animalID *uuid.UUID) (*Entry, error) {
	ctx, span := tracer.Start(ctx, "waitingroom.link_owner_and_animal")
	defer span.End()

	entry, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if err := entry.LinkOwnerAndAnimal(ownerID, animalID, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateIdentification(ctx, entry, entry.DrainEvents()); err != nil {
		return nil, err
	}

	s.logger.Info().Stringer("entry_id", entry.ID).Msg("owner and animal linked")
	return entry, nil
}

// GetEntry retrieves an entry by id.
func (s *Service) GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.GetByID(ctx, id)
}

// ListQueue returns the prioritized queue for a clinic.
func (s *Service) ListQueue(ctx context.Context, clinicID uuid.UUID) ([]*Entry, error) {
	return s.repo.ListQueue(ctx, clinicID)
}
