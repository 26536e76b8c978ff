package availability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/provider-availability-scheduling/internal/calendar"
)

var monday = time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)

type fakeBookings struct {
	mu    sync.Mutex
	items []Booking
}

func (f *fakeBookings) add(b Booking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, b)
}

func (f *fakeBookings) ActiveBookings(_ context.Context, _ uuid.UUID, from, to time.Time) ([]Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Booking
	for _, b := range f.items {
		if !b.Date.Before(from) && b.Date.Before(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

type storeFixture struct {
	store    *Store
	bookings *fakeBookings
	now      time.Time
}

func newStoreFixture(t *testing.T, policy DayTogglePolicy) *storeFixture {
	t.Helper()
	f := &storeFixture{bookings: &fakeBookings{}, now: reference}
	store, err := NewStore(NewMemoryRepository(), f.bookings, DefaultCatalog(), StoreConfig{
		Grid:      workdayGrid(),
		DayToggle: policy,
		CacheSize: 16,
		Now:       func() time.Time { return f.now },
	}, zerolog.Nop())
	require.NoError(t, err)
	f.store = store
	return f
}

func assertGridInvariants(t *testing.T, week calendar.WeekSchedule) {
	t.Helper()
	for _, day := range week.Days {
		for _, s := range day.Slots {
			if s.AppointmentRef != nil {
				assert.False(t, s.Available, "booked slot %s %s is available", day.Date.Format(time.DateOnly), s.Label())
			}
			if !day.IsWorkingDay {
				assert.False(t, s.Available, "slot %s on non-working %s", s.Label(), day.Date.Format(time.DateOnly))
				assert.Nil(t, s.AppointmentRef)
			}
		}
	}
}

func TestNewStore_RejectsBadGrid(t *testing.T) {
	_, err := NewStore(NewMemoryRepository(), nil, nil, StoreConfig{
		Grid: calendar.GridParams{GranularityMinutes: 7, DayStartMinutes: 540, DayEndMinutes: 1020},
	}, zerolog.Nop())
	assert.ErrorIs(t, err, calendar.ErrConfiguration)
}

func TestStore_GetWeekWithoutTemplate(t *testing.T) {
	f := newStoreFixture(t, TogglePolicyReset)

	week, err := f.store.GetWeek(context.Background(), uuid.New(), 0)
	require.NoError(t, err)
	require.Len(t, week.Days, calendar.DaysPerWeek)
	assert.Equal(t, monday, week.Start())
	for _, day := range week.Days {
		assert.False(t, day.IsWorkingDay)
	}
	assertGridInvariants(t, week)
}

func TestStore_ApplyTemplate(t *testing.T) {
	f := newStoreFixture(t, TogglePolicyReset)
	ctx := context.Background()
	provider := uuid.New()

	require.NoError(t, f.store.ApplyTemplate(ctx, provider, mondayWithLunch()))

	for _, offset := range []int{0, 1, 4} {
		week, err := f.store.GetWeek(ctx, provider, offset)
		require.NoError(t, err)
		assert.Equal(t, offset, week.WeekOffset)
		assert.True(t, week.Days[0].IsWorkingDay)
		assert.True(t, slotAt(t, week.Days[0], 690).Available)
		assert.False(t, slotAt(t, week.Days[0], 720).Available)
		assert.False(t, slotAt(t, week.Days[0], 750).Available)
		assert.False(t, week.Days[1].IsWorkingDay)
		assertGridInvariants(t, week)
	}

	past, err := f.store.GetWeek(ctx, provider, -1)
	require.NoError(t, err)
	assert.False(t, past.Days[0].IsWorkingDay, "past weeks keep the template in effect at the time")

	got, err := f.store.Template(ctx, provider)
	require.NoError(t, err)
	assert.Equal(t, "monday-lunch", got.Name)
}

func TestStore_ApplyTemplateRejectsInvalid(t *testing.T) {
	f := newStoreFixture(t, TogglePolicyReset)

	err := f.store.ApplyTemplate(context.Background(), uuid.New(), Template{Name: "bad", PerWeekday: map[time.Weekday]WorkingHours{
		time.Monday: {Start: 600, End: 540},
	}})
	assert.ErrorIs(t, err, ErrInvalidTemplate)
}

func TestStore_TemplateHistoryKeepsPastWeeks(t *testing.T) {
	f := newStoreFixture(t, TogglePolicyReset)
	ctx := context.Background()
	provider := uuid.New()

	require.NoError(t, f.store.ApplyTemplate(ctx, provider, mondayWithLunch()))

	f.now = reference.AddDate(0, 0, 7)
	_, err := f.store.ApplyNamedTemplate(ctx, provider, "mornings")
	require.NoError(t, err)

	previous, err := f.store.GetWeek(ctx, provider, -1)
	require.NoError(t, err)
	assert.True(t, slotAt(t, previous.Days[0], 990).Available)
	assert.False(t, previous.Days[1].IsWorkingDay)

	current, err := f.store.GetWeek(ctx, provider, 0)
	require.NoError(t, err)
	assert.False(t, slotAt(t, current.Days[0], 990).Available)
	assert.True(t, slotAt(t, current.Days[0], 540).Available)
	assert.True(t, current.Days[1].IsWorkingDay)
}

func TestStore_ApplyNamedTemplateUnknown(t *testing.T) {
	f := newStoreFixture(t, TogglePolicyReset)
	_, err := f.store.ApplyNamedTemplate(context.Background(), uuid.New(), "nope")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestStore_ToggleSlot(t *testing.T) {
	f := newStoreFixture(t, TogglePolicyReset)
	ctx := context.Background()
	provider := uuid.New()
	require.NoError(t, f.store.ApplyTemplate(ctx, provider, mondayWithLunch()))

	next := monday.AddDate(0, 0, 7)
	slot, err := f.store.ToggleSlot(ctx, provider, 1, next, 600)
	require.NoError(t, err)
	assert.False(t, slot.Available)

	week, err := f.store.GetWeek(ctx, provider, 1)
	require.NoError(t, err)
	assert.False(t, slotAt(t, week.Days[0], 600).Available)
	assert.True(t, week.Days[0].IsWorkingDay)

	_, err = f.store.ToggleSlot(ctx, provider, -1, monday.AddDate(0, 0, -7), 600)
	assert.ErrorIs(t, err, ErrWeekImmutable)

	_, err = f.store.ToggleSlot(ctx, provider, 1, monday, 600)
	assert.ErrorIs(t, err, ErrSlotNotFound, "date outside the addressed week")

	_, err = f.store.ToggleSlot(ctx, provider, 1, next, 615)
	assert.ErrorIs(t, err, ErrSlotNotFound)

	_, err = f.store.ToggleSlot(ctx, provider, 1, next.AddDate(0, 0, 1), 600)
	assert.ErrorIs(t, err, ErrSlotUnavailable, "tuesday is not a working day")
}

func TestStore_ToggleDayResetPolicy(t *testing.T) {
	f := newStoreFixture(t, TogglePolicyReset)
	ctx := context.Background()
	provider := uuid.New()
	require.NoError(t, f.store.ApplyTemplate(ctx, provider, mondayWithLunch()))

	_, err := f.store.ToggleSlot(ctx, provider, 0, monday, 540)
	require.NoError(t, err)

	day, err := f.store.ToggleDay(ctx, provider, 0, monday)
	require.NoError(t, err)
	assert.False(t, day.IsWorkingDay)
	for _, s := range day.Slots {
		assert.False(t, s.Available)
	}

	day, err = f.store.ToggleDay(ctx, provider, 0, monday)
	require.NoError(t, err)
	assert.True(t, day.IsWorkingDay)
	for _, s := range day.Slots {
		assert.True(t, s.Available, "slot %s", s.Label())
	}

	tuesday, err := f.store.ToggleDay(ctx, provider, 0, monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.True(t, tuesday.IsWorkingDay)
	assert.True(t, slotAt(t, tuesday, 990).Available)

	_, err = f.store.ToggleDay(ctx, provider, -2, monday.AddDate(0, 0, -14))
	assert.ErrorIs(t, err, ErrWeekImmutable)
}

type failingResetRepository struct {
	*MemoryRepository
}

var errRepositoryDown = errors.New("repository down")

func (failingResetRepository) ResetDay(context.Context, DayOverride) error {
	return errRepositoryDown
}

func TestStore_ToggleDayResetFailureKeepsSlotOverrides(t *testing.T) {
	repo := failingResetRepository{MemoryRepository: NewMemoryRepository()}
	store, err := NewStore(repo, &fakeBookings{}, DefaultCatalog(), StoreConfig{
		Grid:      workdayGrid(),
		DayToggle: TogglePolicyReset,
		CacheSize: 16,
		Now:       func() time.Time { return reference },
	}, zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	provider := uuid.New()
	require.NoError(t, store.ApplyTemplate(ctx, provider, mondayWithLunch()))
	_, err = store.ToggleSlot(ctx, provider, 0, monday, 540)
	require.NoError(t, err)

	_, err = store.ToggleDay(ctx, provider, 0, monday)
	require.ErrorIs(t, err, errRepositoryDown)

	week, err := store.GetWeek(ctx, provider, 0)
	require.NoError(t, err)
	assert.True(t, week.Days[0].IsWorkingDay)
	assert.False(t, slotAt(t, week.Days[0], 540).Available, "slot override survives a failed reset")
	assert.True(t, slotAt(t, week.Days[0], 570).Available)
}

func TestStore_ToggleDayRestorePolicy(t *testing.T) {
	f := newStoreFixture(t, TogglePolicyRestore)
	ctx := context.Background()
	provider := uuid.New()
	require.NoError(t, f.store.ApplyTemplate(ctx, provider, mondayWithLunch()))

	_, err := f.store.ToggleSlot(ctx, provider, 0, monday, 540)
	require.NoError(t, err)

	day, err := f.store.ToggleDay(ctx, provider, 0, monday)
	require.NoError(t, err)
	assert.False(t, day.IsWorkingDay)
	for _, s := range day.Slots {
		assert.False(t, s.Available)
	}

	day, err = f.store.ToggleDay(ctx, provider, 0, monday)
	require.NoError(t, err)
	assert.True(t, day.IsWorkingDay)
	assert.False(t, slotAt(t, day, 540).Available, "slot override survives")
	assert.False(t, slotAt(t, day, 720).Available, "template break restored")
	assert.True(t, slotAt(t, day, 600).Available)
}

func TestStore_Bookings(t *testing.T) {
	f := newStoreFixture(t, TogglePolicyReset)
	ctx := context.Background()
	provider := uuid.New()
	require.NoError(t, f.store.ApplyTemplate(ctx, provider, mondayWithLunch()))

	apptID := uuid.New()
	f.bookings.add(Booking{AppointmentID: apptID, Date: monday, Time: 600})
	f.bookings.add(Booking{AppointmentID: uuid.New(), Date: monday, Time: 1200})
	f.store.MarkBooked(provider, monday, 600, apptID)

	week, err := f.store.GetWeek(ctx, provider, 0)
	require.NoError(t, err)
	slot := slotAt(t, week.Days[0], 600)
	require.NotNil(t, slot.AppointmentRef)
	assert.Equal(t, apptID, *slot.AppointmentRef)
	assert.False(t, slot.Available)
	assertGridInvariants(t, week)

	state, err := f.store.SlotState(ctx, provider, monday, 600)
	require.NoError(t, err)
	assert.True(t, state.Booked())

	_, err = f.store.ToggleDay(ctx, provider, 0, monday)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	_, err = f.store.ToggleSlot(ctx, provider, 0, monday, 600)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	require.NoError(t, f.store.ApplyTemplate(ctx, provider, Template{Name: "empty"}))
	week, err = f.store.GetWeek(ctx, provider, 0)
	require.NoError(t, err)
	assert.True(t, week.Days[0].IsWorkingDay, "a booking keeps its day working")
	assert.True(t, slotAt(t, week.Days[0], 600).Booked())
	assertGridInvariants(t, week)
}

func TestStore_SlotState(t *testing.T) {
	f := newStoreFixture(t, TogglePolicyReset)
	ctx := context.Background()
	provider := uuid.New()
	require.NoError(t, f.store.ApplyTemplate(ctx, provider, mondayWithLunch()))

	state, err := f.store.SlotState(ctx, provider, monday.AddDate(0, 0, 14), 690)
	require.NoError(t, err)
	assert.True(t, state.Available)

	state, err = f.store.SlotState(ctx, provider, monday, 720)
	require.NoError(t, err)
	assert.False(t, state.Available)

	_, err = f.store.SlotState(ctx, provider, monday, 1020)
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestStore_VersionsAndCopies(t *testing.T) {
	f := newStoreFixture(t, TogglePolicyReset)
	ctx := context.Background()
	provider := uuid.New()
	require.NoError(t, f.store.ApplyTemplate(ctx, provider, mondayWithLunch()))

	first, err := f.store.GetWeek(ctx, provider, 0)
	require.NoError(t, err)
	first.Days[0].Slots[0].Available = false

	second, err := f.store.GetWeek(ctx, provider, 0)
	require.NoError(t, err)
	assert.True(t, second.Days[0].Slots[0].Available, "callers receive private copies")
	assert.Equal(t, first.Version, second.Version)

	_, err = f.store.ToggleSlot(ctx, provider, 0, monday, 540)
	require.NoError(t, err)

	third, err := f.store.GetWeek(ctx, provider, 0)
	require.NoError(t, err)
	assert.Greater(t, third.Version, second.Version)
	assert.False(t, third.Days[0].Slots[0].Available)
}

func TestStore_ConcurrentReadersAndWriters(t *testing.T) {
	f := newStoreFixture(t, TogglePolicyReset)
	ctx := context.Background()
	provider := uuid.New()
	require.NoError(t, f.store.ApplyTemplate(ctx, provider, mondayWithLunch()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			week, err := f.store.GetWeek(ctx, provider, 0)
			assert.NoError(t, err)
			assertGridInvariants(t, week)
		}()
		go func() {
			defer wg.Done()
			_, err := f.store.ToggleSlot(ctx, provider, 0, monday, 600)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// an even number of flips leaves the slot where it started
	week, err := f.store.GetWeek(ctx, provider, 0)
	require.NoError(t, err)
	assert.True(t, slotAt(t, week.Days[0], 600).Available)
}

func TestParseDayTogglePolicy(t *testing.T) {
	p, err := ParseDayTogglePolicy("")
	require.NoError(t, err)
	assert.Equal(t, TogglePolicyReset, p)

	p, err = ParseDayTogglePolicy("Restore")
	require.NoError(t, err)
	assert.Equal(t, TogglePolicyRestore, p)

	_, err = ParseDayTogglePolicy("merge")
	assert.ErrorIs(t, err, calendar.ErrConfiguration)
}
