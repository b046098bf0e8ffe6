package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetdesk/clinical-scheduling/internal/events"
)

type querier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool   querier
	outbox *events.OutboxStore
}

func NewPgRepository(pool *pgxpool.Pool, outbox *events.OutboxStore) *PgRepository {
	return &PgRepository{pool: pool, outbox: outbox}
}

func newPgRepositoryWithExec(exec querier, outbox *events.OutboxStore) *PgRepository {
	return &PgRepository{pool: exec, outbox: outbox}
}

const appointmentCols = `id, clinic_id, owner_id, animal_id, practitioner_id,
	starts_at, duration_minutes, status, reason, notes, service_started_at, created_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.ClinicID,
		&a.OwnerID,
		&a.AnimalID,
		&a.Practitioner,
		&a.Slot.StartsAt,
		&a.Slot.DurationMinutes,
		&a.Status,
		&a.Reason,
		&a.Notes,
		&a.ServiceStartedAt,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

// isOverlapViolation matches the exclusion/unique constraints backing slot
// exclusivity (23P01 exclusion_violation, 23505 unique_violation).
func isOverlapViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23P01" || pgErr.Code == "23505"
}

func (r *PgRepository) Create(ctx context.Context, a *Appointment, evs []events.Record) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (`+appointmentCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, a.ID, a.ClinicID, a.OwnerID, a.AnimalID, a.Practitioner,
		a.Slot.StartsAt, a.Slot.DurationMinutes, a.Status, a.Reason, a.Notes, a.ServiceStartedAt, a.CreatedAt)
	if err != nil {
		if isOverlapViolation(err) {
			return ErrSlotConflict
		}
		return fmt.Errorf("insert appointment: %w", err)
	}

	if err := r.outbox.InsertTx(ctx, tx, evs); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListScheduledForPractitioner(ctx context.Context, clinicID, practitionerID uuid.UUID) ([]*Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE clinic_id = $1
		  AND practitioner_id = $2
		  AND status = 'scheduled'
		ORDER BY starts_at
	`, clinicID, practitionerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) ListByClinicDay(ctx context.Context, clinicID uuid.UUID, day time.Time) ([]*Appointment, error) {
	dayStart := day.UTC().Truncate(24 * time.Hour)
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE clinic_id = $1
		  AND starts_at >= $2
		  AND starts_at < $3
		ORDER BY starts_at
	`, clinicID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]*Appointment, error) {
	var result []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateStatus is a compare-and-swap: a concurrent writer that already moved
// the appointment out of `from` makes the update match nothing.
func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, evs []events.Record) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentCols+`
	`, id, to, from)

	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	if err := r.outbox.InsertTx(ctx, tx, evs); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *PgRepository) UpdateAssignee(ctx context.Context, id uuid.UUID, assignee *uuid.UUID, evs []events.Record) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET practitioner_id = $2
		WHERE id = $1
		  AND status = 'scheduled'
		RETURNING `+appointmentCols+`
	`, id, assignee)

	a, err := scanAppointment(row)
	if err != nil {
		if isOverlapViolation(err) {
			return nil, ErrSlotConflict
		}
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	if err := r.outbox.InsertTx(ctx, tx, evs); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		if isOverlapViolation(err) {
			return nil, ErrSlotConflict
		}
		return nil, err
	}
	return a, nil
}

func (r *PgRepository) MarkServiceStarted(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET service_started_at = $2
		WHERE id = $1
		  AND service_started_at IS NULL
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark service started: %w", err)
	}
	return nil
}
