package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAppointment(t *testing.T, practitionerID *uuid.UUID) *Appointment {
	t.Helper()
	slot := mustSlot(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), 30)
	ownerID := uuid.New()
	animalID := uuid.New()
	return NewAppointment(uuid.New(), uuid.New(), &ownerID, &animalID, practitionerID, slot, nil, nil, time.Now())
}

func TestNewAppointmentStartsScheduledWithEvent(t *testing.T) {
	practitionerID := uuid.New()
	appt := newTestAppointment(t, &practitionerID)

	assert.Equal(t, StatusScheduled, appt.Status)
	require.NotNil(t, appt.Practitioner)
	assert.Equal(t, practitionerID, *appt.Practitioner)

	evs := appt.DrainEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, EventScheduled, evs[0].Type)
	assert.Equal(t, appt.ID, evs[0].AggregateID)
	assert.Equal(t, practitionerID.String(), evs[0].Payload["practitioner_id"])

	assert.Empty(t, appt.DrainEvents(), "drain must clear pending events")
}

func TestMarkNoShowIsTerminal(t *testing.T) {
	appt := newTestAppointment(t, nil)
	appt.DrainEvents()

	require.NoError(t, appt.MarkNoShow(time.Now()))
	assert.Equal(t, StatusNoShow, appt.Status)

	evs := appt.DrainEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, EventMarkedNoShow, evs[0].Type)

	// no transition leaves no-show
	assert.ErrorIs(t, appt.MarkNoShow(time.Now()), ErrInvalidTransition)
	assert.ErrorIs(t, appt.AssignPractitioner(uuid.New(), time.Now()), ErrInvalidTransition)
}

func TestUnassignPractitioner(t *testing.T) {
	practitionerID := uuid.New()
	appt := newTestAppointment(t, &practitionerID)
	appt.DrainEvents()

	require.NoError(t, appt.UnassignPractitioner(time.Now()))
	assert.Nil(t, appt.Practitioner)

	evs := appt.DrainEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, EventPractitionerUnassigned, evs[0].Type)
	assert.Equal(t, practitionerID.String(), evs[0].Payload["previous_practitioner_id"])

	assert.ErrorIs(t, appt.UnassignPractitioner(time.Now()), ErrNoPractitionerAssigned)
}

func TestAssignPractitioner(t *testing.T) {
	appt := newTestAppointment(t, nil)
	appt.DrainEvents()

	newPractitioner := uuid.New()
	require.NoError(t, appt.AssignPractitioner(newPractitioner, time.Now()))
	require.NotNil(t, appt.Practitioner)
	assert.Equal(t, newPractitioner, *appt.Practitioner)

	evs := appt.DrainEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, EventPractitionerAssigned, evs[0].Type)
}
