package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/provider-availability-scheduling/internal/availability"
	"github.com/hackgods/provider-availability-scheduling/internal/calendar"
	"github.com/hackgods/provider-availability-scheduling/internal/config"
	"github.com/hackgods/provider-availability-scheduling/internal/events"
	"github.com/hackgods/provider-availability-scheduling/internal/lifecycle"
	redisclient "github.com/hackgods/provider-availability-scheduling/internal/redis"
)

// Wednesday 2026-01-14 10:00 UTC
var reference = time.Date(2026, 1, 14, 10, 0, 0, 0, time.UTC)

var nextMonday = time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	repo      *MemoryRepository
	store     *availability.Store
	published []events.Event
	pubMu     sync.Mutex
	provider  uuid.UUID
	patient   uuid.UUID
	now       time.Time
	clockMu   sync.Mutex
}

func (f *fixture) clock() time.Time {
	f.clockMu.Lock()
	defer f.clockMu.Unlock()
	return f.now
}

func (f *fixture) setClock(t time.Time) {
	f.clockMu.Lock()
	defer f.clockMu.Unlock()
	f.now = t
}

func (f *fixture) events() []events.Event {
	f.pubMu.Lock()
	defer f.pubMu.Unlock()
	return append([]events.Event(nil), f.published...)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     NewMemoryRepository(),
		provider: uuid.New(),
		patient:  uuid.New(),
		now:      reference,
	}
	f.repo.now = f.clock
	f.repo.AddProvider(Provider{ID: f.provider, Name: "Dr. Grey"})
	f.repo.AddPatient(Patient{ID: f.patient, Name: "Ada"})

	grid := calendar.GridParams{GranularityMinutes: 30, DayStartMinutes: 540, DayEndMinutes: 1020, WeekStart: time.Monday}
	store, err := availability.NewStore(availability.NewMemoryRepository(), f.repo, availability.DefaultCatalog(), availability.StoreConfig{
		Grid: grid,
		Now:  f.clock,
	}, zerolog.Nop())
	require.NoError(t, err)
	f.store = store

	_, err = store.ApplyNamedTemplate(context.Background(), f.provider, "standard")
	require.NoError(t, err)

	bus := events.NewBus()
	bus.Subscribe(func(_ context.Context, ev events.Event) {
		f.pubMu.Lock()
		defer f.pubMu.Unlock()
		f.published = append(f.published, ev)
	})

	cfg := config.Config{NoShowGrace: 15 * time.Minute}
	f.svc = NewService(f.repo, store, redisclient.NewKeyedMutex(5*time.Second), bus, cfg, zerolog.Nop(), WithClock(f.clock))
	return f
}

func (f *fixture) request(date time.Time, minute int) ReserveRequest {
	return ReserveRequest{ProviderID: f.provider, PatientID: f.patient, Date: date, Time: minute}
}

func TestReserve_Succeeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Reserve(ctx, f.request(nextMonday, 600))
	require.NoError(t, err)

	assert.Equal(t, lifecycle.AppointmentScheduled, appt.Status)
	assert.Equal(t, TypeConsultation, appt.Type)
	assert.Equal(t, 30, appt.DurationMinutes)
	assert.True(t, decimal.NewFromInt(50).Equal(appt.Fee))
	assert.Equal(t, nextMonday, appt.Date)

	week, err := f.store.GetWeek(ctx, f.provider, 1)
	require.NoError(t, err)
	slot := week.Days[0].Slots[week.Days[0].Slot(600)]
	require.NotNil(t, slot.AppointmentRef)
	assert.Equal(t, appt.ID, *slot.AppointmentRef)
	assert.False(t, slot.Available)

	evs := f.events()
	require.Len(t, evs, 1)
	assert.Equal(t, EventAppointmentCreated, evs[0].Type)
	assert.Equal(t, "10:00", evs[0].Time)
	assert.Len(t, f.repo.Events(), 1)
}

func TestReserve_ThenReserveSameSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Reserve(ctx, f.request(nextMonday, 600))
	require.NoError(t, err)

	_, err = f.svc.Reserve(ctx, f.request(nextMonday, 600))
	assert.ErrorIs(t, err, availability.ErrSlotUnavailable)
}

func TestReserve_Concurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const n = 25

	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Reserve(ctx, f.request(nextMonday, 660))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, unavailable int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, availability.ErrSlotUnavailable):
			unavailable++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, unavailable)

	bookings, err := f.repo.ActiveBookings(ctx, f.provider, nextMonday, nextMonday.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
}

func TestReserve_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     ReserveRequest
		wantErr error
	}{
		{"off grid time", f.request(nextMonday, 605), availability.ErrSlotNotFound},
		{"after day end", f.request(nextMonday, 1020), availability.ErrSlotNotFound},
		{"lunch break", f.request(nextMonday, 720), availability.ErrSlotUnavailable},
		{"weekend", f.request(nextMonday.AddDate(0, 0, 5), 600), availability.ErrSlotUnavailable},
		{"already started", f.request(time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC), 570), availability.ErrSlotUnavailable},
		{"unknown patient", ReserveRequest{ProviderID: f.provider, PatientID: uuid.New(), Date: nextMonday, Time: 600}, ErrPatientNotFound},
		{"unknown provider", ReserveRequest{ProviderID: uuid.New(), PatientID: f.patient, Date: nextMonday, Time: 600}, ErrProviderNotFound},
		{"unknown type", ReserveRequest{ProviderID: f.provider, PatientID: f.patient, Date: nextMonday, Time: 600, Type: "surgery"}, ErrInvalidType},
		{"negative duration", ReserveRequest{ProviderID: f.provider, PatientID: f.patient, Date: nextMonday, Time: 600, DurationMinutes: -5}, ErrInvalidRequest},
		{"shorter than a slot", ReserveRequest{ProviderID: f.provider, PatientID: f.patient, Date: nextMonday, Time: 600, DurationMinutes: 15}, ErrInvalidRequest},
		{"longer than a slot", ReserveRequest{ProviderID: f.provider, PatientID: f.patient, Date: nextMonday, Time: 600, DurationMinutes: 45}, ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Reserve(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Empty(t, f.events())
}

func TestReserve_TypeFeeAndDuration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fee := decimal.RequireFromString("75.50")
	appt, err := f.svc.Reserve(ctx, ReserveRequest{
		ProviderID:      f.provider,
		PatientID:       f.patient,
		Date:            nextMonday,
		Time:            540,
		Type:            TypeEmergency,
		Urgent:          true,
		DurationMinutes: 30,
		Fee:             &fee,
		Reason:          "chest pain",
	})
	require.NoError(t, err)
	assert.True(t, appt.Urgent)
	assert.Equal(t, 30, appt.DurationMinutes)
	assert.Equal(t, "75.50", appt.Fee.StringFixed(2))
	assert.Equal(t, "chest pain", appt.Reason)

	appt, err = f.svc.Reserve(ctx, ReserveRequest{ProviderID: f.provider, PatientID: f.patient, Date: nextMonday, Time: 570, Type: TypeFollowUp})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(30).Equal(appt.Fee))
}

func TestReserve_MultiSlotDurationRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.request(nextMonday, 600)
	req.DurationMinutes = 120
	_, err := f.svc.Reserve(ctx, req)
	require.ErrorIs(t, err, ErrInvalidRequest)

	first, err := f.svc.Reserve(ctx, f.request(nextMonday, 600))
	require.NoError(t, err)
	second, err := f.svc.Reserve(ctx, f.request(nextMonday, 630))
	require.NoError(t, err)

	// Appointments never reach into the next cell.
	assert.False(t, first.EndsAt().After(second.StartsAt()))

	list, err := f.repo.ActiveBookings(ctx, f.provider, nextMonday, nextMonday.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestReserve_ClockOutsideUTC(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Monday 09:30 in Brisbane is Sunday 23:30 UTC, so next Monday is still week +1.
	f.setClock(time.Date(2026, 1, 19, 9, 30, 0, 0, time.FixedZone("AEST", 10*60*60)))

	appt, err := f.svc.Reserve(ctx, f.request(nextMonday, 540))
	require.NoError(t, err)

	week, err := f.store.GetWeek(ctx, f.provider, 1)
	require.NoError(t, err)
	require.Equal(t, nextMonday, week.Days[0].Date)
	slot := week.Days[0].Slots[week.Days[0].Slot(540)]
	require.NotNil(t, slot.AppointmentRef)
	assert.Equal(t, appt.ID, *slot.AppointmentRef)
}

func TestReserve_PublishesAfterReleasingLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	locker := redisclient.NewKeyedMutex(50 * time.Millisecond)
	bus := events.NewBus()
	var lockErr error
	var delivered bool
	bus.Subscribe(func(ctx context.Context, ev events.Event) {
		delivered = true
		lockErr = locker.WithLock(ctx, SlotLockKey(ev.ProviderID, nextMonday, 600), func(context.Context) error { return nil })
	})
	svc := NewService(f.repo, f.store, locker, bus, config.Config{}, zerolog.Nop(), WithClock(f.clock))

	_, err := svc.Reserve(ctx, f.request(nextMonday, 600))
	require.NoError(t, err)
	require.True(t, delivered)
	assert.NoError(t, lockErr)
}

func TestCancel_RestoresSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Reserve(ctx, f.request(nextMonday, 600))
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.AppointmentCancelled, cancelled.Status)

	week, err := f.store.GetWeek(ctx, f.provider, 1)
	require.NoError(t, err)
	slot := week.Days[0].Slots[week.Days[0].Slot(600)]
	assert.True(t, slot.Available)
	assert.Nil(t, slot.AppointmentRef)

	second, err := f.svc.Reserve(ctx, f.request(nextMonday, 600))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	week, err = f.store.GetWeek(ctx, f.provider, 1)
	require.NoError(t, err)
	slot = week.Days[0].Slots[week.Days[0].Slot(600)]
	require.NotNil(t, slot.AppointmentRef)
	assert.Equal(t, second.ID, *slot.AppointmentRef)

	_, err = f.svc.Cancel(ctx, first.ID)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Reserve(ctx, f.request(nextMonday, 630))
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, appt.ID)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	started, err := f.svc.Start(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.AppointmentInProgress, started.Status)

	_, err = f.svc.Cancel(ctx, appt.ID)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	got, err := f.svc.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.AppointmentInProgress, got.Status, "rejected transitions leave the status unchanged")
	require.NotNil(t, got.Patient)
	assert.Equal(t, "Ada", got.Patient.Name)

	done, err := f.svc.Complete(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.AppointmentCompleted, done.Status)

	_, err = f.svc.MarkNoShow(ctx, appt.ID)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	_, err = f.svc.Start(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	var types []string
	for _, ev := range f.events() {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{EventAppointmentCreated, EventAppointmentStarted, EventAppointmentCompleted}, types)
}

func TestMarkOverdueNoShows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	early, err := f.svc.Reserve(ctx, f.request(nextMonday, 540))
	require.NoError(t, err)
	late, err := f.svc.Reserve(ctx, f.request(nextMonday, 960))
	require.NoError(t, err)

	marked, err := f.svc.MarkOverdueNoShows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, marked)

	// 09:30 end plus 15 minutes grace has passed, 16:30 has not
	f.setClock(nextMonday.Add(10 * time.Hour))
	marked, err = f.svc.MarkOverdueNoShows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	got, err := f.repo.GetAppointmentByID(ctx, early.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.AppointmentNoShow, got.Status)

	got, err = f.repo.GetAppointmentByID(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.AppointmentScheduled, got.Status)
}

func TestListAppointmentsByPatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, minute := range []int{540, 570, 600} {
		_, err := f.svc.Reserve(ctx, f.request(nextMonday, minute))
		require.NoError(t, err)
	}

	all, err := f.svc.ListAppointmentsByPatient(ctx, f.patient, 0, -3)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 600, all[0].Time)

	page, err := f.svc.ListAppointmentsByPatient(ctx, f.patient, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, 540, page[0].Time)
}

type mockSlotStore struct {
	mock.Mock
}

func (m *mockSlotStore) Grid() calendar.GridParams {
	return calendar.DefaultGridParams()
}

func (m *mockSlotStore) SlotState(ctx context.Context, providerID uuid.UUID, date time.Time, t int) (calendar.TimeSlot, error) {
	args := m.Called(ctx, providerID, date, t)
	return args.Get(0).(calendar.TimeSlot), args.Error(1)
}

func (m *mockSlotStore) MarkBooked(providerID uuid.UUID, date time.Time, t int, appointmentID uuid.UUID) {
	m.Called(providerID, date, t, appointmentID)
}

func (m *mockSlotStore) MarkReleased(providerID uuid.UUID, date time.Time) {
	m.Called(providerID, date)
}

type takenRepository struct {
	*MemoryRepository
}

func (takenRepository) CreateAppointment(context.Context, *Appointment) error {
	return ErrSlotTaken
}

func TestReserve_UniqueViolationIsUnavailable(t *testing.T) {
	repo := NewMemoryRepository()
	provider, patient := uuid.New(), uuid.New()
	repo.AddProvider(Provider{ID: provider})
	repo.AddPatient(Patient{ID: patient})

	slots := &mockSlotStore{}
	slots.On("SlotState", mock.Anything, provider, nextMonday, 600).
		Return(calendar.TimeSlot{Time: 600, Available: true}, nil).Once()

	svc := NewService(takenRepository{repo}, slots, redisclient.NewKeyedMutex(time.Second), nil, config.Config{}, zerolog.Nop(),
		WithClock(func() time.Time { return reference }))

	_, err := svc.Reserve(context.Background(), ReserveRequest{ProviderID: provider, PatientID: patient, Date: nextMonday, Time: 600})
	assert.ErrorIs(t, err, availability.ErrSlotUnavailable)
	slots.AssertExpectations(t)
	slots.AssertNotCalled(t, "MarkBooked", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

type contendedLocker struct{}

func (contendedLocker) WithLock(context.Context, string, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

func TestReserve_LockNotAcquired(t *testing.T) {
	f := newFixture(t)
	f.svc.locker = contendedLocker{}

	_, err := f.svc.Reserve(context.Background(), f.request(nextMonday, 600))
	assert.ErrorIs(t, err, availability.ErrSlotUnavailable)
}

func TestSlotLockKey(t *testing.T) {
	id := uuid.MustParse("8a4b7a8e-3c8c-4d9c-9a7b-1f2e3d4c5b6a")
	assert.Equal(t, "lock:slot:8a4b7a8e-3c8c-4d9c-9a7b-1f2e3d4c5b6a:2026-01-19:600", SlotLockKey(id, nextMonday, 600))
}
