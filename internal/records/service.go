package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/provider-availability-scheduling/internal/lifecycle"
	"github.com/hackgods/provider-availability-scheduling/internal/metrics"
)

type CreateRequest struct {
	Kind          Kind
	PatientID     uuid.UUID
	ProviderID    uuid.UUID
	AppointmentID *uuid.UUID
	Urgent        bool
	Fields        map[string]string
}

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "records_service").Logger()}
}

// Create stores a record in the initial status of its kind.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Record, error) {
	spec, err := specFor(req.Kind)
	if err != nil {
		return nil, err
	}
	if req.PatientID == uuid.Nil || req.ProviderID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient and provider are required", ErrInvalidRecord)
	}
	for _, name := range spec.required {
		if strings.TrimSpace(req.Fields[name]) == "" {
			return nil, fmt.Errorf("%w: %s requires %q", ErrInvalidRecord, req.Kind, name)
		}
	}

	rec := &Record{
		ID:            uuid.New(),
		Kind:          req.Kind,
		PatientID:     req.PatientID,
		ProviderID:    req.ProviderID,
		AppointmentID: req.AppointmentID,
		Status:        spec.machine.initial(),
		Urgent:        req.Urgent,
		Fields:        req.Fields,
	}
	if rec.Fields == nil {
		rec.Fields = map[string]string{}
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create %s: %w", req.Kind, err)
	}

	s.logger.Info().
		Str("record_id", rec.ID.String()).
		Str("kind", string(rec.Kind)).
		Str("status", rec.Status).
		Msg("record created")
	return rec, nil
}

// Transition moves a record of the given kind to status to, if its lifecycle allows it.
func (s *Service) Transition(ctx context.Context, kind Kind, id uuid.UUID, to string) (*Record, error) {
	spec, err := specFor(kind)
	if err != nil {
		return nil, err
	}

	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", kind, err)
	}
	if rec.Kind != kind {
		return nil, fmt.Errorf("load %s: %w", kind, ErrRecordNotFound)
	}
	if !spec.machine.known(to) {
		return nil, fmt.Errorf("%w: %s has no status %q", lifecycle.ErrInvalidTransition, kind, to)
	}
	if err := spec.machine.check(rec.Status, to); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, id, rec.Status, to)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s %s changed concurrently", lifecycle.ErrInvalidTransition, kind, id)
		}
		return nil, fmt.Errorf("update %s: %w", kind, err)
	}

	metrics.IncTransition(spec.machine.entity(), to)
	s.logger.Info().
		Str("record_id", id.String()).
		Str("kind", string(kind)).
		Str("from", rec.Status).
		Str("to", to).
		Msg("record transitioned")
	return updated, nil
}

func (s *Service) Get(ctx context.Context, kind Kind, id uuid.UUID) (*Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", kind, err)
	}
	if kind != "" && rec.Kind != kind {
		return nil, fmt.Errorf("get %s: %w", kind, ErrRecordNotFound)
	}
	return rec, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, kind Kind) ([]Record, error) {
	recs, err := s.repo.ListByPatient(ctx, patientID, kind)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return recs, nil
}
