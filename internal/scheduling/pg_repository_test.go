package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetdesk/clinical-scheduling/internal/events"
)

var appointmentColNames = []string{
	"id", "clinic_id", "owner_id", "animal_id", "practitioner_id",
	"starts_at", "duration_minutes", "status", "reason", "notes", "service_started_at", "created_at",
}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PgRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, newPgRepositoryWithExec(mock, newOutboxStoreForTest())
}

func newOutboxStoreForTest() *events.OutboxStore {
	// inserts run on the transaction passed in, never on the store's pool
	return events.NewOutboxStore(nil)
}

func TestPgCreateWritesRowAndOutbox(t *testing.T) {
	mock, repo := newMockRepo(t)

	slot := mustSlot(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), 30)
	practitionerID := uuid.New()
	appt := NewAppointment(uuid.New(), uuid.New(), nil, nil, &practitionerID, slot, nil, nil, time.Now())
	evs := appt.DrainEvents()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO appointments").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO outbox").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), appt, evs))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCreateTranslatesExclusionViolation(t *testing.T) {
	mock, repo := newMockRepo(t)

	slot := mustSlot(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), 30)
	practitionerID := uuid.New()
	appt := NewAppointment(uuid.New(), uuid.New(), nil, nil, &practitionerID, slot, nil, nil, time.Now())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO appointments").WillReturnError(&pgconn.PgError{Code: "23P01"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), appt, appt.DrainEvents())
	assert.ErrorIs(t, err, ErrSlotConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetByIDNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM appointments").WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetByID(t *testing.T) {
	mock, repo := newMockRepo(t)

	id := uuid.New()
	clinicID := uuid.New()
	startsAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(appointmentColNames).
		AddRow(id, clinicID, nil, nil, nil, startsAt, 30, StatusScheduled, nil, nil, nil, startsAt.Add(-time.Hour))
	mock.ExpectQuery("SELECT (.+) FROM appointments").WithArgs(id).WillReturnRows(rows)

	appt, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, appt.ID)
	assert.Equal(t, clinicID, appt.ClinicID)
	assert.Equal(t, StatusScheduled, appt.Status)
	assert.Equal(t, 30, appt.Slot.DurationMinutes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateStatusCASMiss(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.UpdateStatus(context.Background(), uuid.New(), StatusScheduled, StatusNoShow, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateStatus(t *testing.T) {
	mock, repo := newMockRepo(t)

	id := uuid.New()
	clinicID := uuid.New()
	startsAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(appointmentColNames).
		AddRow(id, clinicID, nil, nil, nil, startsAt, 30, StatusNoShow, nil, nil, nil, startsAt.Add(-time.Hour))

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, StatusNoShow, StatusScheduled).
		WillReturnRows(rows)
	mock.ExpectCommit()

	appt, err := repo.UpdateStatus(context.Background(), id, StatusScheduled, StatusNoShow, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, appt.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
