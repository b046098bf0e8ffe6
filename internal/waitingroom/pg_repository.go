package waitingroom

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetdesk/clinical-scheduling/internal/events"
)

type querier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
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

const entryCols = `id, clinic_id, origin, arrival_mode, linked_appointment_id,
	owner_id, animal_id, found_animal_description, priority, triage_notes, status,
	arrived_at, called_at, service_started_at, closed_at, called_by, service_started_by, closed_by`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID,
		&e.ClinicID,
		&e.Origin,
		&e.ArrivalMode,
		&e.LinkedAppointmentID,
		&e.OwnerID,
		&e.AnimalID,
		&e.FoundAnimalDescription,
		&e.Priority,
		&e.TriageNotes,
		&e.Status,
		&e.ArrivedAt,
		&e.CalledAt,
		&e.ServiceStartedAt,
		&e.ClosedAt,
		&e.CalledBy,
		&e.ServiceStartedBy,
		&e.ClosedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &e, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *PgRepository) Create(ctx context.Context, e *Entry, evs []events.Record) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO waiting_room_entries (`+entryCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, e.ID, e.ClinicID, e.Origin, e.ArrivalMode, e.LinkedAppointmentID,
		e.OwnerID, e.AnimalID, e.FoundAnimalDescription, e.Priority, e.TriageNotes, e.Status,
		e.ArrivedAt, e.CalledAt, e.ServiceStartedAt, e.ClosedAt, e.CalledBy, e.ServiceStartedBy, e.ClosedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyCheckedIn
		}
		return fmt.Errorf("insert waiting room entry: %w", err)
	}

	if err := r.outbox.InsertTx(ctx, tx, evs); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyCheckedIn
		}
		return err
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryCols+`
		FROM waiting_room_entries
		WHERE id = $1
	`, id)
	return scanEntry(row)
}

func (r *PgRepository) FindByAppointmentID(ctx context.Context, appointmentID uuid.UUID, includeClosed bool) (*Entry, error) {
	query := `
		SELECT ` + entryCols + `
		FROM waiting_room_entries
		WHERE linked_appointment_id = $1`
	if !includeClosed {
		query += ` AND status <> 'closed'`
	}
	query += `
		ORDER BY arrived_at DESC
		LIMIT 1`
	row := r.pool.QueryRow(ctx, query, appointmentID)
	return scanEntry(row)
}

// UpdateStatus writes the transition's stamp columns guarded by the previous
// status. A concurrent writer that transitioned first leaves nothing to
// update and the caller gets ErrEntryModified.
func (r *PgRepository) UpdateStatus(ctx context.Context, e *Entry, from Status, evs []events.Record) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE waiting_room_entries
		SET status = $2,
		    called_at = $3,
		    service_started_at = $4,
		    closed_at = $5,
		    called_by = $6,
		    service_started_by = $7,
		    closed_by = $8
		WHERE id = $1
		  AND status = $9
	`, e.ID, e.Status, e.CalledAt, e.ServiceStartedAt, e.ClosedAt, e.CalledBy, e.ServiceStartedBy, e.ClosedBy, from)
	if err != nil {
		return fmt.Errorf("update entry status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrEntryModified
	}

	if err := r.outbox.InsertTx(ctx, tx, evs); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PgRepository) UpdateTriage(ctx context.Context, e *Entry, evs []events.Record) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE waiting_room_entries
		SET priority = $2,
		    triage_notes = $3,
		    arrival_mode = $4
		WHERE id = $1
		  AND status IN ('waiting', 'called')
	`, e.ID, e.Priority, e.TriageNotes, e.ArrivalMode)
	if err != nil {
		return fmt.Errorf("update entry triage: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrEntryModified
	}

	if err := r.outbox.InsertTx(ctx, tx, evs); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PgRepository) UpdateIdentification(ctx context.Context, e *Entry, evs []events.Record) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE waiting_room_entries
		SET owner_id = $2,
		    animal_id = $3
		WHERE id = $1
		  AND status <> 'closed'
	`, e.ID, e.OwnerID, e.AnimalID)
	if err != nil {
		return fmt.Errorf("update entry identification: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrEntryModified
	}

	if err := r.outbox.InsertTx(ctx, tx, evs); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PgRepository) ListQueue(ctx context.Context, clinicID uuid.UUID) ([]*Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryCols+`
		FROM waiting_room_entries
		WHERE clinic_id = $1
		  AND status <> 'closed'
		ORDER BY priority DESC, arrived_at
	`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
