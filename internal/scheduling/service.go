package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vetdesk/clinical-scheduling/internal/observability/metrics"
	redisclient "github.com/vetdesk/clinical-scheduling/internal/redis"
)

var tracer = otel.Tracer("vetdesk.internal.scheduling")

// Service implements the scheduling use cases. It composes the eligibility
// and conflict checkers with the appointment repository; the distributed
// booking lock closes the check-then-act window between the conflict read and
// the insert, with the storage constraint as backstop.
type Service struct {
	repo        Repository
	eligibility *EligibilityChecker
	conflicts   *ConflictChecker
	owners      OwnerDirectory
	animals     AnimalDirectory
	locker      redisclient.Locker
	clock       Clock
	ids         IDGenerator
	roles       []Role
	logger      zerolog.Logger
	metrics     *metrics.SchedulingMetrics
}

type ServiceConfig struct {
	Repo         Repository
	Memberships  MembershipDirectory
	Owners       OwnerDirectory
	Animals      AnimalDirectory
	Locker       redisclient.Locker
	Clock        Clock
	IDs          IDGenerator
	AllowedRoles []Role
	Logger       zerolog.Logger
	Metrics      *metrics.SchedulingMetrics
}

func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	ids := cfg.IDs
	if ids == nil {
		ids = UUIDGenerator{}
	}
	roles := cfg.AllowedRoles
	if len(roles) == 0 {
		roles = []Role{RoleVeterinarian, RoleAssistant}
	}
	return &Service{
		repo:        cfg.Repo,
		eligibility: NewEligibilityChecker(cfg.Memberships),
		conflicts:   NewConflictChecker(cfg.Repo),
		owners:      cfg.Owners,
		animals:     cfg.Animals,
		locker:      cfg.Locker,
		clock:       clock,
		ids:         ids,
		roles:       roles,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
}

type ScheduleAppointmentCommand struct {
	ClinicID        uuid.UUID
	OwnerID         *uuid.UUID
	AnimalID        *uuid.UUID
	PractitionerID  *uuid.UUID
	StartsAt        time.Time
	DurationMinutes int
	Reason          *string
	Notes           *string
}

// ScheduleAppointment validates referenced identities, gates the practitioner
// assignment on eligibility and conflict checks, and persists the new
// appointment with its Scheduled event. Nothing is written on any failure.
func (s *Service) ScheduleAppointment(ctx context.Context, cmd ScheduleAppointmentCommand) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "scheduling.schedule_appointment")
	defer span.End()
	span.SetAttributes(attribute.String("vetdesk.clinic_id", cmd.ClinicID.String()))

	slot, err := NewTimeSlot(cmd.StartsAt, cmd.DurationMinutes)
	if err != nil {
		return nil, err
	}

	if err := s.checkReferences(ctx, cmd.OwnerID, cmd.AnimalID); err != nil {
		return nil, err
	}

	now := s.clock.Now()

	if cmd.PractitionerID == nil {
		appt := NewAppointment(s.ids.NewID(), cmd.ClinicID, cmd.OwnerID, cmd.AnimalID, nil, slot, cmd.Reason, cmd.Notes, now)
		if err := s.repo.Create(ctx, appt, appt.DrainEvents()); err != nil {
			return nil, fmt.Errorf("create appointment: %w", err)
		}
		s.metrics.ObserveScheduled(false)
		s.logger.Info().Stringer("appointment_id", appt.ID).Stringer("clinic_id", appt.ClinicID).Msg("appointment scheduled without practitioner")
		return appt, nil
	}

	practitionerID := *cmd.PractitionerID

	eligible, err := s.eligibility.IsEligible(ctx, practitionerID, cmd.ClinicID, now, s.roles)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, ErrPractitionerNotEligible
	}

	var appt *Appointment
	err = s.locker.WithLock(ctx, redisclient.BookingLockKey(cmd.ClinicID, practitionerID), func(lockCtx context.Context) error {
		overlap, err := s.conflicts.HasOverlap(lockCtx, cmd.ClinicID, practitionerID, slot, nil)
		if err != nil {
			return err
		}
		if overlap {
			return ErrSlotConflict
		}

		appt = NewAppointment(s.ids.NewID(), cmd.ClinicID, cmd.OwnerID, cmd.AnimalID, &practitionerID, slot, cmd.Reason, cmd.Notes, now)
		if err := s.repo.Create(lockCtx, appt, appt.DrainEvents()); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		if errors.Is(err, ErrSlotConflict) {
			s.metrics.ObserveConflict()
		}
		return nil, err
	}

	s.metrics.ObserveScheduled(true)
	s.logger.Info().
		Stringer("appointment_id", appt.ID).
		Stringer("clinic_id", appt.ClinicID).
		Stringer("practitioner_id", practitionerID).
		Time("starts_at", slot.StartsAt).
		Msg("appointment scheduled")
	return appt, nil
}

// AssignPractitioner reassigns an appointment, re-running the eligibility and
// conflict gates and excluding the appointment itself from the overlap scan.
func (s *Service) AssignPractitioner(ctx context.Context, appointmentID, practitionerID uuid.UUID) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "scheduling.assign_practitioner")
	defer span.End()

	appt, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	eligible, err := s.eligibility.IsEligible(ctx, practitionerID, appt.ClinicID, now, s.roles)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, ErrPractitionerNotEligible
	}

	var updated *Appointment
	err = s.locker.WithLock(ctx, redisclient.BookingLockKey(appt.ClinicID, practitionerID), func(lockCtx context.Context) error {
		overlap, err := s.conflicts.HasOverlap(lockCtx, appt.ClinicID, practitionerID, appt.Slot, &appt.ID)
		if err != nil {
			return err
		}
		if overlap {
			return ErrSlotConflict
		}

		if err := appt.AssignPractitioner(practitionerID, now); err != nil {
			return err
		}
		updated, err = s.repo.UpdateAssignee(lockCtx, appt.ID, appt.Practitioner, appt.DrainEvents())
		return err
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		if errors.Is(err, ErrSlotConflict) {
			s.metrics.ObserveConflict()
		}
		return nil, err
	}

	s.logger.Info().Stringer("appointment_id", appt.ID).Stringer("practitioner_id", practitionerID).Msg("practitioner assigned")
	return updated, nil
}

// UnassignPractitioner clears the assignee, keeping the previous one in the
// audit event.
func (s *Service) UnassignPractitioner(ctx context.Context, appointmentID uuid.UUID) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "scheduling.unassign_practitioner")
	defer span.End()

	appt, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if err := appt.UnassignPractitioner(s.clock.Now()); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateAssignee(ctx, appt.ID, nil, appt.DrainEvents())
	if err != nil {
		return nil, err
	}

	s.logger.Info().Stringer("appointment_id", appt.ID).Msg("practitioner unassigned")
	return updated, nil
}

// MarkNoShow moves a scheduled appointment to its terminal no-show state.
func (s *Service) MarkNoShow(ctx context.Context, appointmentID uuid.UUID) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "scheduling.mark_no_show")
	defer span.End()

	appt, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if err := appt.MarkNoShow(s.clock.Now()); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, appt.ID, StatusScheduled, StatusNoShow, appt.DrainEvents())
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveNoShow()
	s.logger.Info().Stringer("appointment_id", appt.ID).Msg("appointment marked no-show")
	return updated, nil
}

// GetAppointment retrieves an appointment by id.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// ListClinicDay returns a clinic's agenda for the UTC day containing day.
func (s *Service) ListClinicDay(ctx context.Context, clinicID uuid.UUID, day time.Time) ([]*Appointment, error) {
	return s.repo.ListByClinicDay(ctx, clinicID, day)
}

func (s *Service) checkReferences(ctx context.Context, ownerID, animalID *uuid.UUID) error {
	if ownerID != nil {
		ok, err := s.owners.OwnerExists(ctx, *ownerID)
		if err != nil {
			return fmt.Errorf("check owner: %w", err)
		}
		if !ok {
			return ErrOwnerNotFound
		}
	}
	if animalID != nil {
		ok, err := s.animals.AnimalExists(ctx, *animalID)
		if err != nil {
			return fmt.Errorf("check animal: %w", err)
		}
		if !ok {
			return ErrAnimalNotFound
		}
	}
	return nil
}
