package availability

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type templateVersion struct {
	effectiveFrom time.Time
	template      Template
}

type slotKey struct {
	date string
	time int
}

// MemoryRepository is a Repository kept in process memory, used by tests and
// single-node deployments without Postgres.
type MemoryRepository struct {
	mu            sync.RWMutex
	templates     map[uuid.UUID][]templateVersion
	dayOverrides  map[uuid.UUID]map[string]DayOverride
	slotOverrides map[uuid.UUID]map[slotKey]SlotOverride
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		templates:     make(map[uuid.UUID][]templateVersion),
		dayOverrides:  make(map[uuid.UUID]map[string]DayOverride),
		slotOverrides: make(map[uuid.UUID]map[slotKey]SlotOverride),
	}
}

func dateKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

func inRange(d, from, to time.Time) bool {
	return !d.Before(from) && d.Before(to)
}

func (r *MemoryRepository) TemplateAt(_ context.Context, providerID uuid.UUID, date time.Time) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.templates[providerID]
	for i := len(versions) - 1; i >= 0; i-- {
		if !versions[i].effectiveFrom.After(date) {
			t := versions[i].template
			return &t, nil
		}
	}
	return nil, ErrTemplateNotFound
}

func (r *MemoryRepository) SaveTemplate(_ context.Context, providerID uuid.UUID, effectiveFrom time.Time, tmpl Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deleteOverridesFrom(providerID, effectiveFrom)

	versions := r.templates[providerID]
	for i := range versions {
		if versions[i].effectiveFrom.Equal(effectiveFrom) {
			versions[i].template = tmpl
			return nil
		}
	}
	versions = append(versions, templateVersion{effectiveFrom: effectiveFrom, template: tmpl})
	sort.Slice(versions, func(i, j int) bool { return versions[i].effectiveFrom.Before(versions[j].effectiveFrom) })
	r.templates[providerID] = versions
	return nil
}

func (r *MemoryRepository) ListDayOverrides(_ context.Context, providerID uuid.UUID, from, to time.Time) ([]DayOverride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []DayOverride
	for _, o := range r.dayOverrides[providerID] {
		if inRange(o.Date, from, to) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *MemoryRepository) ListSlotOverrides(_ context.Context, providerID uuid.UUID, from, to time.Time) ([]SlotOverride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []SlotOverride
	for _, o := range r.slotOverrides[providerID] {
		if inRange(o.Date, from, to) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func (r *MemoryRepository) UpsertDayOverride(_ context.Context, o DayOverride) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.dayOverrides[o.ProviderID]
	if !ok {
		m = make(map[string]DayOverride)
		r.dayOverrides[o.ProviderID] = m
	}
	m[dateKey(o.Date)] = o
	return nil
}

func (r *MemoryRepository) DeleteDayOverride(_ context.Context, providerID uuid.UUID, date time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.dayOverrides[providerID], dateKey(date))
	return nil
}

func (r *MemoryRepository) UpsertSlotOverride(_ context.Context, o SlotOverride) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.slotOverrides[o.ProviderID]
	if !ok {
		m = make(map[slotKey]SlotOverride)
		r.slotOverrides[o.ProviderID] = m
	}
	m[slotKey{date: dateKey(o.Date), time: o.Time}] = o
	return nil
}

func (r *MemoryRepository) ResetDay(_ context.Context, o DayOverride) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	day := dateKey(o.Date)
	for k := range r.slotOverrides[o.ProviderID] {
		if k.date == day {
			delete(r.slotOverrides[o.ProviderID], k)
		}
	}

	m, ok := r.dayOverrides[o.ProviderID]
	if !ok {
		m = make(map[string]DayOverride)
		r.dayOverrides[o.ProviderID] = m
	}
	m[day] = o
	return nil
}

// deleteOverridesFrom expects r.mu held.
func (r *MemoryRepository) deleteOverridesFrom(providerID uuid.UUID, from time.Time) {
	for k, o := range r.dayOverrides[providerID] {
		if !o.Date.Before(from) {
			delete(r.dayOverrides[providerID], k)
		}
	}
	for k, o := range r.slotOverrides[providerID] {
		if !o.Date.Before(from) {
			delete(r.slotOverrides[providerID], k)
		}
	}
}
