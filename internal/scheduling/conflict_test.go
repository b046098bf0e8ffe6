package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAppointment(t *testing.T, repo *memRepo, clinicID, practitionerID uuid.UUID, startsAt time.Time, minutes int) *Appointment {
	t.Helper()
	slot := mustSlot(t, startsAt, minutes)
	appt := NewAppointment(uuid.New(), clinicID, nil, nil, &practitionerID, slot, nil, nil, time.Now())
	require.NoError(t, repo.Create(context.Background(), appt, appt.DrainEvents()))
	return appt
}

func TestHasOverlap(t *testing.T) {
	repo := newMemRepo()
	checker := NewConflictChecker(repo)
	clinicID := uuid.New()
	practitionerID := uuid.New()
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	seedAppointment(t, repo, clinicID, practitionerID, start, 30)

	overlap, err := checker.HasOverlap(context.Background(), clinicID, practitionerID, mustSlot(t, start.Add(15*time.Minute), 30), nil)
	require.NoError(t, err)
	assert.True(t, overlap)

	overlap, err = checker.HasOverlap(context.Background(), clinicID, practitionerID, mustSlot(t, start.Add(30*time.Minute), 30), nil)
	require.NoError(t, err)
	assert.False(t, overlap, "back-to-back slots do not overlap")

	overlap, err = checker.HasOverlap(context.Background(), clinicID, uuid.New(), mustSlot(t, start, 30), nil)
	require.NoError(t, err)
	assert.False(t, overlap, "another practitioner's agenda is unaffected")
}

func TestHasOverlapExcludesAppointment(t *testing.T) {
	repo := newMemRepo()
	checker := NewConflictChecker(repo)
	clinicID := uuid.New()
	practitionerID := uuid.New()
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	appt := seedAppointment(t, repo, clinicID, practitionerID, start, 30)

	overlap, err := checker.HasOverlap(context.Background(), clinicID, practitionerID, appt.Slot, &appt.ID)
	require.NoError(t, err)
	assert.False(t, overlap, "an appointment cannot conflict with itself on reschedule")
}

func TestHasOverlapIgnoresNoShows(t *testing.T) {
	repo := newMemRepo()
	checker := NewConflictChecker(repo)
	clinicID := uuid.New()
	practitionerID := uuid.New()
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	appt := seedAppointment(t, repo, clinicID, practitionerID, start, 30)
	_, err := repo.UpdateStatus(context.Background(), appt.ID, StatusScheduled, StatusNoShow, nil)
	require.NoError(t, err)

	overlap, err := checker.HasOverlap(context.Background(), clinicID, practitionerID, mustSlot(t, start, 30), nil)
	require.NoError(t, err)
	assert.False(t, overlap)
}
