package availability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/hackgods/provider-availability-scheduling/internal/calendar"
	"github.com/hackgods/provider-availability-scheduling/internal/metrics"
)

// DayTogglePolicy decides what a day toggle does to per-slot customization.
type DayTogglePolicy string

const (
	// TogglePolicyReset cascades the new working state to every slot and drops slot overrides.
	TogglePolicyReset DayTogglePolicy = "reset"
	// TogglePolicyRestore only records a deviation from the template; toggling back
	// restores the template-derived slots and keeps slot overrides.
	TogglePolicyRestore DayTogglePolicy = "restore"
)

func ParseDayTogglePolicy(s string) (DayTogglePolicy, error) {
	switch p := DayTogglePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", TogglePolicyReset:
		return TogglePolicyReset, nil
	case TogglePolicyRestore:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown day toggle policy %q", calendar.ErrConfiguration, s)
}

type StoreConfig struct {
	Grid      calendar.GridParams
	DayToggle DayTogglePolicy
	CacheSize int
	CacheTTL  time.Duration
	Now       func() time.Time
}

type weekKey struct {
	provider uuid.UUID
	start    string
}

type providerState struct {
	mu  sync.Mutex
	gen atomic.Uint64
}

// Store serves materialized week grids and records template and toggle writes.
// Writes are serialized per provider; reads are served from a bounded cache and
// never block on writers.
type Store struct {
	grid     calendar.GridParams
	policy   DayTogglePolicy
	repo     Repository
	bookings BookingSource
	catalog  *Catalog
	logger   zerolog.Logger
	now      func() time.Time

	cache   *expirable.LRU[weekKey, calendar.WeekSchedule]
	version atomic.Uint64

	mu        sync.Mutex
	providers map[uuid.UUID]*providerState
}

func NewStore(repo Repository, bookings BookingSource, catalog *Catalog, cfg StoreConfig, logger zerolog.Logger) (*Store, error) {
	if err := cfg.Grid.Validate(); err != nil {
		return nil, err
	}
	if cfg.DayToggle == "" {
		cfg.DayToggle = TogglePolicyReset
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if catalog == nil {
		catalog = DefaultCatalog()
	}

	return &Store{
		grid:      cfg.Grid,
		policy:    cfg.DayToggle,
		repo:      repo,
		bookings:  bookings,
		catalog:   catalog,
		logger:    logger.With().Str("component", "availability_store").Logger(),
		now:       cfg.Now,
		cache:     expirable.NewLRU[weekKey, calendar.WeekSchedule](cfg.CacheSize, nil, cfg.CacheTTL),
		providers: make(map[uuid.UUID]*providerState),
	}, nil
}

func (s *Store) Grid() calendar.GridParams { return s.grid }

func (s *Store) Catalog() *Catalog { return s.catalog }

func (s *Store) provider(id uuid.UUID) *providerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.providers[id]
	if !ok {
		ps = &providerState{}
		s.providers[id] = ps
	}
	return ps
}

func (s *Store) key(providerID uuid.UUID, weekStart time.Time) weekKey {
	return weekKey{provider: providerID, start: weekStart.Format(time.DateOnly)}
}

// GetWeek returns the provider's grid for the week at weekOffset from the current week.
// The result may lag a concurrent write; it is always a private copy.
func (s *Store) GetWeek(ctx context.Context, providerID uuid.UUID, weekOffset int) (calendar.WeekSchedule, error) {
	now := s.now()
	key := s.key(providerID, s.grid.WeekStartFor(weekOffset, now))

	if cached, ok := s.cache.Get(key); ok {
		metrics.IncGridCache(true)
		week := cached.Clone()
		week.WeekOffset = weekOffset
		return week, nil
	}
	metrics.IncGridCache(false)

	ps := s.provider(providerID)
	gen := ps.gen.Load()

	week, err := s.materialize(ctx, providerID, weekOffset, now)
	if err != nil {
		return calendar.WeekSchedule{}, err
	}
	week.Version = gen

	ps.mu.Lock()
	if ps.gen.Load() == gen {
		s.cache.Add(key, week.Clone())
	}
	ps.mu.Unlock()

	return week, nil
}

// materialize rebuilds a week from the template history, overrides and live bookings.
func (s *Store) materialize(ctx context.Context, providerID uuid.UUID, weekOffset int, now time.Time) (calendar.WeekSchedule, error) {
	week, err := calendar.GenerateWeek(s.grid, weekOffset, now)
	if err != nil {
		return calendar.WeekSchedule{}, err
	}
	week.ProviderID = providerID

	start := week.Start()
	end := start.AddDate(0, 0, calendar.DaysPerWeek)

	tmpl, err := s.repo.TemplateAt(ctx, providerID, start)
	switch {
	case err == nil:
		ApplyTemplate(&week, *tmpl)
	case errors.Is(err, ErrTemplateNotFound):
	default:
		return calendar.WeekSchedule{}, fmt.Errorf("load template: %w", err)
	}

	dayOverrides, err := s.repo.ListDayOverrides(ctx, providerID, start, end)
	if err != nil {
		return calendar.WeekSchedule{}, fmt.Errorf("list day overrides: %w", err)
	}
	for _, o := range dayOverrides {
		if idx := week.Day(o.Date); idx >= 0 {
			_ = SetWorkingDay(&week.Days[idx], o.Working)
		}
	}

	slotOverrides, err := s.repo.ListSlotOverrides(ctx, providerID, start, end)
	if err != nil {
		return calendar.WeekSchedule{}, fmt.Errorf("list slot overrides: %w", err)
	}
	for _, o := range slotOverrides {
		idx := week.Day(o.Date)
		if idx < 0 || !week.Days[idx].IsWorkingDay {
			continue
		}
		day := &week.Days[idx]
		if si := day.Slot(o.Time); si >= 0 {
			day.Slots[si].Available = o.Available
		}
	}

	if s.bookings == nil {
		return week, nil
	}
	bookings, err := s.bookings.ActiveBookings(ctx, providerID, start, end)
	if err != nil {
		return calendar.WeekSchedule{}, fmt.Errorf("list bookings: %w", err)
	}
	for _, b := range bookings {
		if !markBooked(&week, b) {
			s.logger.Warn().
				Str("provider_id", providerID.String()).
				Str("appointment_id", b.AppointmentID.String()).
				Str("date", b.Date.Format(time.DateOnly)).
				Int("time", b.Time).
				Msg("booking outside the configured grid")
		}
	}

	return week, nil
}

func markBooked(week *calendar.WeekSchedule, b Booking) bool {
	idx := week.Day(b.Date)
	if idx < 0 {
		return false
	}
	day := &week.Days[idx]
	si := day.Slot(b.Time)
	if si < 0 {
		return false
	}
	ref := b.AppointmentID
	day.IsWorkingDay = true
	day.Slots[si].AppointmentRef = &ref
	day.Slots[si].Available = false
	return true
}

// commit bumps the provider generation and drops cached weeks starting on or after from.
// Callers hold ps.mu.
func (s *Store) commit(providerID uuid.UUID, ps *providerState, from time.Time) {
	ps.gen.Store(s.version.Add(1))
	for _, k := range s.cache.Keys() {
		if k.provider != providerID {
			continue
		}
		start, err := time.Parse(time.DateOnly, k.start)
		if err != nil || !start.Before(from) {
			s.cache.Remove(k)
		}
	}
}

// ApplyTemplate replaces the provider's template for the current and all future weeks.
// Past weeks keep the template that was in effect for them. Overrides dated from the
// current week on are cleared; bookings are untouched.
func (s *Store) ApplyTemplate(ctx context.Context, providerID uuid.UUID, tmpl Template) error {
	if err := tmpl.Validate(); err != nil {
		return err
	}

	ps := s.provider(providerID)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	from := s.grid.StartOfWeek(s.now())
	if err := s.repo.SaveTemplate(ctx, providerID, from, tmpl); err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	s.commit(providerID, ps, from)

	s.logger.Info().
		Str("provider_id", providerID.String()).
		Str("template", tmpl.Name).
		Str("effective_from", from.Format(time.DateOnly)).
		Msg("template applied")
	return nil
}

func (s *Store) ApplyNamedTemplate(ctx context.Context, providerID uuid.UUID, name string) (Template, error) {
	tmpl, ok := s.catalog.Get(name)
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}
	if err := s.ApplyTemplate(ctx, providerID, tmpl); err != nil {
		return Template{}, err
	}
	return tmpl, nil
}

// Template returns the template in effect for the current week.
func (s *Store) Template(ctx context.Context, providerID uuid.UUID) (*Template, error) {
	return s.repo.TemplateAt(ctx, providerID, s.grid.StartOfWeek(s.now()))
}

// ToggleDay flips the working state of date, which must fall inside the week at weekOffset.
func (s *Store) ToggleDay(ctx context.Context, providerID uuid.UUID, weekOffset int, date time.Time) (calendar.Day, error) {
	if weekOffset < 0 {
		return calendar.Day{}, ErrWeekImmutable
	}
	date = calendar.DateOf(date)

	ps := s.provider(providerID)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := s.now()
	week, err := s.materialize(ctx, providerID, weekOffset, now)
	if err != nil {
		return calendar.Day{}, err
	}
	idx := week.Day(date)
	if idx < 0 {
		return calendar.Day{}, fmt.Errorf("%w: %s is not in week %d", ErrSlotNotFound, date.Format(time.DateOnly), weekOffset)
	}
	day := week.Days[idx]
	working := !day.IsWorkingDay
	if err := SetWorkingDay(&day, working); err != nil {
		return calendar.Day{}, err
	}

	switch s.policy {
	case TogglePolicyRestore:
		templateWorking, err := s.templateWorks(ctx, providerID, week.Start(), date.Weekday())
		if err != nil {
			return calendar.Day{}, err
		}
		if working == templateWorking {
			err = s.repo.DeleteDayOverride(ctx, providerID, date)
		} else {
			err = s.repo.UpsertDayOverride(ctx, DayOverride{ProviderID: providerID, Date: date, Working: working})
		}
		if err != nil {
			return calendar.Day{}, fmt.Errorf("save day override: %w", err)
		}
	default:
		if err := s.repo.ResetDay(ctx, DayOverride{ProviderID: providerID, Date: date, Working: working}); err != nil {
			return calendar.Day{}, fmt.Errorf("reset day: %w", err)
		}
	}
	s.commitWeek(providerID, ps, week.Start())

	return s.reloadDay(ctx, providerID, weekOffset, now, date)
}

func (s *Store) templateWorks(ctx context.Context, providerID uuid.UUID, weekStart time.Time, day time.Weekday) (bool, error) {
	tmpl, err := s.repo.TemplateAt(ctx, providerID, weekStart)
	if errors.Is(err, ErrTemplateNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load template: %w", err)
	}
	_, ok := tmpl.Hours(day)
	return ok, nil
}

// ToggleSlot flips the availability of one slot without touching the day's working state.
func (s *Store) ToggleSlot(ctx context.Context, providerID uuid.UUID, weekOffset int, date time.Time, t int) (calendar.TimeSlot, error) {
	if weekOffset < 0 {
		return calendar.TimeSlot{}, ErrWeekImmutable
	}
	date = calendar.DateOf(date)

	ps := s.provider(providerID)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	week, err := s.materialize(ctx, providerID, weekOffset, s.now())
	if err != nil {
		return calendar.TimeSlot{}, err
	}
	idx := week.Day(date)
	if idx < 0 {
		return calendar.TimeSlot{}, fmt.Errorf("%w: %s is not in week %d", ErrSlotNotFound, date.Format(time.DateOnly), weekOffset)
	}
	day := &week.Days[idx]
	if err := ToggleSlot(day, t); err != nil {
		return calendar.TimeSlot{}, err
	}
	slot := day.Slots[day.Slot(t)]

	err = s.repo.UpsertSlotOverride(ctx, SlotOverride{ProviderID: providerID, Date: date, Time: t, Available: slot.Available})
	if err != nil {
		return calendar.TimeSlot{}, fmt.Errorf("save slot override: %w", err)
	}
	s.commitWeek(providerID, ps, week.Start())

	return slot, nil
}

func (s *Store) commitWeek(providerID uuid.UUID, ps *providerState, weekStart time.Time) {
	ps.gen.Store(s.version.Add(1))
	s.cache.Remove(s.key(providerID, weekStart))
}

func (s *Store) reloadDay(ctx context.Context, providerID uuid.UUID, weekOffset int, now, date time.Time) (calendar.Day, error) {
	week, err := s.materialize(ctx, providerID, weekOffset, now)
	if err != nil {
		return calendar.Day{}, err
	}
	return week.Days[week.Day(date)], nil
}

// SlotState reads the current state of one slot straight from storage, bypassing the cache.
func (s *Store) SlotState(ctx context.Context, providerID uuid.UUID, date time.Time, t int) (calendar.TimeSlot, error) {
	date = calendar.DateOf(date)
	now := s.now()

	week, err := s.materialize(ctx, providerID, s.grid.WeekOffsetOf(date, now), now)
	if err != nil {
		return calendar.TimeSlot{}, err
	}
	idx := week.Day(date)
	if idx < 0 {
		return calendar.TimeSlot{}, fmt.Errorf("%w: %s", ErrSlotNotFound, date.Format(time.DateOnly))
	}
	day := week.Days[idx]
	si := day.Slot(t)
	if si < 0 {
		return calendar.TimeSlot{}, fmt.Errorf("%w: %s %s", ErrSlotNotFound, date.Format(time.DateOnly), calendar.FormatMinutes(t))
	}
	return day.Slots[si], nil
}

// MarkBooked patches a cached grid after a reservation was stored.
func (s *Store) MarkBooked(providerID uuid.UUID, date time.Time, t int, appointmentID uuid.UUID) {
	ps := s.provider(providerID)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	gen := s.version.Add(1)
	ps.gen.Store(gen)

	key := s.key(providerID, s.grid.StartOfWeek(date))
	cached, ok := s.cache.Get(key)
	if !ok {
		return
	}
	week := cached.Clone()
	if !markBooked(&week, Booking{AppointmentID: appointmentID, Date: calendar.DateOf(date), Time: t}) {
		s.cache.Remove(key)
		return
	}
	week.Version = gen
	s.cache.Add(key, week)
}

// MarkReleased drops the cached grid holding a cancelled reservation so the slot's
// template and override state is recomputed on the next read.
func (s *Store) MarkReleased(providerID uuid.UUID, date time.Time) {
	ps := s.provider(providerID)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	s.commitWeek(providerID, ps, s.grid.StartOfWeek(date))
}
