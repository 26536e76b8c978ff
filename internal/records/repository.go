package records

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Record) error
	Get(ctx context.Context, id uuid.UUID) (*Record, error)
	// UpdateStatus changes the status only while it still equals from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (*Record, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, kind Kind) ([]Record, error)
}

type MemoryRepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[uuid.UUID]Record)}
}

func cloneRecord(r Record) Record {
	fields := make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	r.Fields = fields
	return r
}

func (m *MemoryRepository) Create(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	m.records[r.ID] = cloneRecord(*r)
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	r = cloneRecord(r)
	return &r, nil
}

func (m *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || r.Status != from {
		return nil, ErrRecordNotFound
	}
	r.Status = to
	r.UpdatedAt = time.Now().UTC()
	m.records[id] = r
	r = cloneRecord(r)
	return &r, nil
}

func (m *MemoryRepository) ListByPatient(_ context.Context, patientID uuid.UUID, kind Kind) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, r := range m.records {
		if r.PatientID == patientID && (kind == "" || r.Kind == kind) {
			out = append(out, cloneRecord(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
