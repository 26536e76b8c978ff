package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/provider-availability-scheduling/internal/availability"
	"github.com/hackgods/provider-availability-scheduling/internal/lifecycle"
)

type cellKey struct {
	provider uuid.UUID
	date     string
	time     int
}

func cellOf(a Appointment) cellKey {
	return cellKey{provider: a.ProviderID, date: a.Date.Format(time.DateOnly), time: a.Time}
}

// MemoryRepository keeps appointments in process memory. The live-cell index
// gives it the same at-most-one guarantee as the Postgres partial unique index.
type MemoryRepository struct {
	mu           sync.RWMutex
	patients     map[uuid.UUID]Patient
	providers    map[uuid.UUID]Provider
	appointments map[uuid.UUID]Appointment
	live         map[cellKey]uuid.UUID
	events       []EventLog
	now          func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:     make(map[uuid.UUID]Patient),
		providers:    make(map[uuid.UUID]Provider),
		appointments: make(map[uuid.UUID]Appointment),
		live:         make(map[cellKey]uuid.UUID),
		now:          time.Now,
	}
}

func (r *MemoryRepository) AddPatient(p Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.ID] = p
}

func (r *MemoryRepository) AddProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID] = p
}

// Events returns a copy of the recorded event log.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EventLog(nil), r.events...)
}

func (r *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) GetProviderByID(_ context.Context, id uuid.UUID) (*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) GetAppointmentDetail(_ context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return r.detail(a), nil
}

func (r *MemoryRepository) detail(a Appointment) *AppointmentDetail {
	d := &AppointmentDetail{Appointment: a}
	if p, ok := r.patients[a.PatientID]; ok {
		d.Patient = &p
	}
	if p, ok := r.providers[a.ProviderID]; ok {
		d.Provider = &p
	}
	return d
}

func (r *MemoryRepository) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Appointment
	for _, a := range r.appointments {
		if a.PatientID == patientID {
			matched = append(matched, a)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].StartsAt().After(matched[j].StartsAt()) })

	if offset >= len(matched) {
		return []AppointmentDetail{}, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}

	result := make([]AppointmentDetail, 0, len(matched))
	for _, a := range matched {
		result = append(result, *r.detail(a))
	}
	return result, nil
}

func (r *MemoryRepository) CreateAppointment(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := cellOf(*a)
	if _, taken := r.live[key]; taken {
		return ErrSlotTaken
	}

	now := r.now()
	a.CreatedAt = now
	a.UpdatedAt = now
	r.appointments[a.ID] = *a
	r.live[key] = a.ID
	return nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to lifecycle.AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = r.now()
	r.appointments[id] = a
	if !to.Occupies() {
		delete(r.live, cellOf(a))
	}
	return &a, nil
}

func (r *MemoryRepository) FindScheduledBefore(_ context.Context, endBefore time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.Status == lifecycle.AppointmentScheduled && a.EndsAt().Before(endBefore) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (r *MemoryRepository) ActiveBookings(_ context.Context, providerID uuid.UUID, from, to time.Time) ([]availability.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []availability.Booking
	for _, a := range r.appointments {
		if a.ProviderID != providerID || !a.Status.Occupies() {
			continue
		}
		if a.Date.Before(from) || !a.Date.Before(to) {
			continue
		}
		result = append(result, availability.Booking{AppointmentID: a.ID, Date: a.Date, Time: a.Time})
	}
	return result, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}
