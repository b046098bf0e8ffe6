package waitingroom

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetdesk/clinical-scheduling/internal/events"
	"github.com/vetdesk/clinical-scheduling/internal/scheduling"
)

// memEntryRepo mirrors the Postgres adapter's guarantees: CAS status writes
// and a uniqueness rule for open entries per appointment standing in for the
// partial unique index.
type memEntryRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*Entry
	events  []events.Record
}

func newMemEntryRepo() *memEntryRepo {
	return &memEntryRepo{entries: make(map[uuid.UUID]*Entry)}
}

func (r *memEntryRepo) Create(_ context.Context, e *Entry, evs []events.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.LinkedAppointmentID != nil {
		for _, existing := range r.entries {
			if existing.LinkedAppointmentID != nil &&
				*existing.LinkedAppointmentID == *e.LinkedAppointmentID &&
				existing.Status != StatusClosed {
				return ErrAlreadyCheckedIn
			}
		}
	}
	cp := *e
	r.entries[e.ID] = &cp
	r.events = append(r.events, evs...)
	return nil
}

func (r *memEntryRepo) GetByID(_ context.Context, id uuid.UUID) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *memEntryRepo) FindByAppointmentID(_ context.Context, appointmentID uuid.UUID, includeClosed bool) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *Entry
	for _, e := range r.entries {
		if e.LinkedAppointmentID == nil || *e.LinkedAppointmentID != appointmentID {
			continue
		}
		if !includeClosed && e.Status == StatusClosed {
			continue
		}
		if latest == nil || e.ArrivedAt.After(latest.ArrivedAt) {
			latest = e
		}
	}
	if latest == nil {
		return nil, ErrEntryNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *memEntryRepo) UpdateStatus(_ context.Context, e *Entry, from Status, evs []events.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.entries[e.ID]
	if !ok || stored.Status != from {
		return ErrEntryModified
	}
	cp := *e
	r.entries[e.ID] = &cp
	r.events = append(r.events, evs...)
	return nil
}

func (r *memEntryRepo) UpdateTriage(_ context.Context, e *Entry, evs []events.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.entries[e.ID]
	if !ok || (stored.Status != StatusWaiting && stored.Status != StatusCalled) {
		return ErrEntryModified
	}
	cp := *e
	r.entries[e.ID] = &cp
	r.events = append(r.events, evs...)
	return nil
}

func (r *memEntryRepo) UpdateIdentification(_ context.Context, e *Entry, evs []events.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.entries[e.ID]
	if !ok || stored.Status == StatusClosed {
		return ErrEntryModified
	}
	cp := *e
	r.entries[e.ID] = &cp
	r.events = append(r.events, evs...)
	return nil
}

func (r *memEntryRepo) ListQueue(_ context.Context, clinicID uuid.UUID) ([]*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Entry
	for _, e := range r.entries {
		if e.ClinicID == clinicID && e.Status != StatusClosed {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ArrivedAt.Before(out[j].ArrivedAt)
	})
	return out, nil
}

type fakeAppointmentSource struct {
	mu      sync.Mutex
	appts   map[uuid.UUID]*scheduling.Appointment
	stamped map[uuid.UUID]time.Time
	err     error
}

func newFakeAppointmentSource() *fakeAppointmentSource {
	return &fakeAppointmentSource{
		appts:   make(map[uuid.UUID]*scheduling.Appointment),
		stamped: make(map[uuid.UUID]time.Time),
	}
}

func (s *fakeAppointmentSource) GetByID(_ context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appts[id]
	if !ok {
		return nil, scheduling.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *fakeAppointmentSource) MarkServiceStarted(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, done := s.stamped[id]; !done {
		s.stamped[id] = at
	}
	return nil
}

func (s *fakeAppointmentSource) addScheduled(t *testing.T, clinicID uuid.UUID) *scheduling.Appointment {
	t.Helper()
	slot, err := scheduling.NewTimeSlot(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), 30)
	require.NoError(t, err)
	ownerID := uuid.New()
	animalID := uuid.New()
	appt := scheduling.NewAppointment(uuid.New(), clinicID, &ownerID, &animalID, nil, slot, nil, nil, time.Now())
	appt.DrainEvents()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.appts[appt.ID] = appt
	return appt
}

type wrFixture struct {
	svc    *Service
	repo   *memEntryRepo
	source *fakeAppointmentSource
}

func newWrFixture(t *testing.T, policy ReopenPolicy) *wrFixture {
	t.Helper()
	repo := newMemEntryRepo()
	source := newFakeAppointmentSource()
	svc := NewService(ServiceConfig{
		Repo:         repo,
		Appointments: source,
		ReopenPolicy: policy,
		Logger:       zerolog.Nop(),
	})
	return &wrFixture{svc: svc, repo: repo, source: source}
}

func TestCheckInAppointment(t *testing.T) {
	f := newWrFixture(t, PolicyBlockReCheckIn)
	clinicID := uuid.New()
	appt := f.source.addScheduled(t, clinicID)

	entry, err := f.svc.CheckInAppointment(context.Background(), CheckInCommand{AppointmentID: appt.ID, ArrivalMode: ArrivalStandard})
	require.NoError(t, err)

	assert.Equal(t, OriginAppointment, entry.Origin)
	require.NotNil(t, entry.LinkedAppointmentID)
	assert.Equal(t, appt.ID, *entry.LinkedAppointmentID)
	assert.Equal(t, appt.OwnerID, entry.OwnerID, "owner snapshot from the appointment")
	assert.Equal(t, appt.AnimalID, entry.AnimalID, "animal snapshot from the appointment")
	assert.Equal(t, StatusWaiting, entry.Status)
}

func TestCheckInUnknownAppointment(t *testing.T) {
	f := newWrFixture(t, PolicyBlockReCheckIn)

	_, err := f.svc.CheckInAppointment(context.Background(), CheckInCommand{AppointmentID: uuid.New()})
	assert.ErrorIs(t, err, scheduling.ErrAppointmentNotFound)
}

func TestCheckInNoShowAppointmentRejected(t *testing.T) {
	f := newWrFixture(t, PolicyBlockReCheckIn)
	appt := f.source.addScheduled(t, uuid.New())
	require.NoError(t, appt.MarkNoShow(time.Now()))

	_, err := f.svc.CheckInAppointment(context.Background(), CheckInCommand{AppointmentID: appt.ID})
	assert.ErrorIs(t, err, ErrAppointmentNotOpen)
}

func TestCheckInTwiceRejected(t *testing.T) {
	f := newWrFixture(t, PolicyBlockReCheckIn)
	appt := f.source.addScheduled(t, uuid.New())

	_, err := f.svc.CheckInAppointment(context.Background(), CheckInCommand{AppointmentID: appt.ID})
	require.NoError(t, err)

	_, err = f.svc.CheckInAppointment(context.Background(), CheckInCommand{AppointmentID: appt.ID})
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)
}

func TestCheckInConcurrentSingleWinner(t *testing.T) {
	f := newWrFixture(t, PolicyBlockReCheckIn)
	appt := f.source.addScheduled(t, uuid.New())

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CheckInAppointment(context.Background(), CheckInCommand{AppointmentID: appt.ID})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else if !errors.Is(err, ErrAlreadyCheckedIn) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes, "one entry per appointment")
}

func TestReCheckInAfterClose(t *testing.T) {
	staff := uuid.New()

	run := func(t *testing.T, policy ReopenPolicy) error {
		f := newWrFixture(t, policy)
		appt := f.source.addScheduled(t, uuid.New())

		entry, err := f.svc.CheckInAppointment(context.Background(), CheckInCommand{AppointmentID: appt.ID})
		require.NoError(t, err)
		_, err = f.svc.Close(context.Background(), entry.ID, staff)
		require.NoError(t, err)

		_, err = f.svc.CheckInAppointment(context.Background(), CheckInCommand{AppointmentID: appt.ID})
		return err
	}

	t.Run("block policy refuses", func(t *testing.T) {
		assert.ErrorIs(t, run(t, PolicyBlockReCheckIn), ErrAlreadyCheckedIn)
	})
	t.Run("allow policy creates a fresh entry", func(t *testing.T) {
		assert.NoError(t, run(t, PolicyAllowReCheckIn))
	})
}

func TestCreateWalkIn(t *testing.T) {
	f := newWrFixture(t, PolicyBlockReCheckIn)
	clinicID := uuid.New()
	desc := "found dog, no collar"

	entry, err := f.svc.CreateWalkIn(context.Background(), WalkInCommand{
		ClinicID:               clinicID,
		FoundAnimalDescription: &desc,
		ArrivalMode:            ArrivalEmergency,
		Priority:               7,
	})
	require.NoError(t, err)

	assert.Equal(t, OriginWalkIn, entry.Origin)
	assert.Nil(t, entry.LinkedAppointmentID)
	assert.Equal(t, 7, entry.Priority)
	assert.Equal(t, ArrivalEmergency, entry.ArrivalMode)
}

func TestFullLifecycleStampsAppointment(t *testing.T) {
	f := newWrFixture(t, PolicyBlockReCheckIn)
	staff := uuid.New()
	appt := f.source.addScheduled(t, uuid.New())

	entry, err := f.svc.CheckInAppointment(context.Background(), CheckInCommand{AppointmentID: appt.ID})
	require.NoError(t, err)

	called, err := f.svc.Call(context.Background(), entry.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, StatusCalled, called.Status)
	require.NotNil(t, called.CalledAt)

	inService, err := f.svc.StartService(context.Background(), entry.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, StatusInService, inService.Status)
	require.NotNil(t, inService.ServiceStartedAt)

	stamped, ok := f.source.stamped[appt.ID]
	require.True(t, ok, "linked appointment must get its service start stamped")
	assert.Equal(t, *inService.ServiceStartedAt, stamped)

	closed, err := f.svc.Close(context.Background(), entry.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)
}

func TestStartServiceStampFailureDoesNotFailEntry(t *testing.T) {
	f := newWrFixture(t, PolicyBlockReCheckIn)
	staff := uuid.New()
	appt := f.source.addScheduled(t, uuid.New())

	entry, err := f.svc.CheckInAppointment(context.Background(), CheckInCommand{AppointmentID: appt.ID})
	require.NoError(t, err)
	_, err = f.svc.Call(context.Background(), entry.ID, staff)
	require.NoError(t, err)

	f.source.err = errors.New("scheduling side down")

	inService, err := f.svc.StartService(context.Background(), entry.ID, staff)
	require.NoError(t, err, "the entry transition must survive a stamp failure")
	assert.Equal(t, StatusInService, inService.Status)
}

func TestStartServiceSkippingCalledRejected(t *testing.T) {
	f := newWrFixture(t, PolicyBlockReCheckIn)
	staff := uuid.New()
	appt := f.source.addScheduled(t, uuid.New())

	entry, err := f.svc.CheckInAppointment(context.Background(), CheckInCommand{AppointmentID: appt.ID})
	require.NoError(t, err)

	_, err = f.svc.StartService(context.Background(), entry.ID, staff)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateTriageService(t *testing.T) {
	f := newWrFixture(t, PolicyBlockReCheckIn)
	staff := uuid.New()

	entry, err := f.svc.CreateWalkIn(context.Background(), WalkInCommand{ClinicID: uuid.New(), ArrivalMode: ArrivalStandard})
	require.NoError(t, err)

	notes := "dehydrated, lethargic"
	updated, err := f.svc.UpdateTriage(context.Background(), TriageCommand{
		EntryID:     entry.ID,
		Priority:    6,
		TriageNotes: &notes,
		ArrivalMode: ArrivalEmergency,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, updated.Priority)

	_, err = f.svc.Call(context.Background(), entry.ID, staff)
	require.NoError(t, err)
	_, err = f.svc.StartService(context.Background(), entry.ID, staff)
	require.NoError(t, err)

	_, err = f.svc.UpdateTriage(context.Background(), TriageCommand{EntryID: entry.ID, Priority: 2})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestLinkOwnerAndAnimalService(t *testing.T) {
	f := newWrFixture(t, PolicyBlockReCheckIn)
	desc := "found parrot"

	entry, err := f.svc.CreateWalkIn(context.Background(), WalkInCommand{
		ClinicID:               uuid.New(),
		FoundAnimalDescription: &desc,
	})
	require.NoError(t, err)

	ownerID := uuid.New()
	animalID := uuid.New()
	updated, err := f.svc.LinkOwnerAndAnimal(context.Background(), entry.ID, &ownerID, &animalID)
	require.NoError(t, err)
	assert.Equal(t, &ownerID, updated.OwnerID)
	assert.Equal(t, &animalID, updated.AnimalID)
}

func TestListQueueOrdersByPriorityThenArrival(t *testing.T) {
	f := newWrFixture(t, PolicyBlockReCheckIn)
	clinicID := uuid.New()
	staff := uuid.New()

	first, err := f.svc.CreateWalkIn(context.Background(), WalkInCommand{ClinicID: clinicID, Priority: 1})
	require.NoError(t, err)
	second, err := f.svc.CreateWalkIn(context.Background(), WalkInCommand{ClinicID: clinicID, Priority: 5})
	require.NoError(t, err)
	third, err := f.svc.CreateWalkIn(context.Background(), WalkInCommand{ClinicID: clinicID, Priority: 5})
	require.NoError(t, err)
	closedEntry, err := f.svc.CreateWalkIn(context.Background(), WalkInCommand{ClinicID: clinicID, Priority: 9})
	require.NoError(t, err)
	_, err = f.svc.Close(context.Background(), closedEntry.ID, staff)
	require.NoError(t, err)

	// force distinct arrival times in the fixture
	f.repo.mu.Lock()
	f.repo.entries[second.ID].ArrivedAt = f.repo.entries[third.ID].ArrivedAt.Add(-time.Minute)
	f.repo.mu.Unlock()

	queue, err := f.svc.ListQueue(context.Background(), clinicID)
	require.NoError(t, err)
	require.Len(t, queue, 3, "closed entries leave the queue")
	assert.Equal(t, second.ID, queue[0].ID)
	assert.Equal(t, third.ID, queue[1].ID)
	assert.Equal(t, first.ID, queue[2].ID)
}
