package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hackgods/provider-availability-scheduling/internal/availability"
	"github.com/hackgods/provider-availability-scheduling/internal/calendar"
	"github.com/hackgods/provider-availability-scheduling/internal/config"
	"github.com/hackgods/provider-availability-scheduling/internal/events"
	"github.com/hackgods/provider-availability-scheduling/internal/lifecycle"
	"github.com/hackgods/provider-availability-scheduling/internal/metrics"
	redisclient "github.com/hackgods/provider-availability-scheduling/internal/redis"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentStarted   = "APPOINTMENT_STARTED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentNoShow    = "APPOINTMENT_NO_SHOW"
)

var (
	ErrInvalidType    = errors.New("unknown appointment type")
	ErrInvalidRequest = errors.New("invalid reservation request")
)

// SlotStore is the part of the availability store the coordinator depends on.
type SlotStore interface {
	Grid() calendar.GridParams
	SlotState(ctx context.Context, providerID uuid.UUID, date time.Time, t int) (calendar.TimeSlot, error)
	MarkBooked(providerID uuid.UUID, date time.Time, t int, appointmentID uuid.UUID)
	MarkReleased(providerID uuid.UUID, date time.Time)
}

type ReserveRequest struct {
	ProviderID      uuid.UUID
	PatientID       uuid.UUID
	Date            time.Time
	Time            int
	Type            Type
	Urgent          bool
	Reason          string
	Notes           string
	DurationMinutes int
	Fee             *decimal.Decimal
}

type Option func(*Service)

// WithClock replaces time.Now, for tests and the simulator.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	repo      Repository
	slots     SlotStore
	locker    redisclient.Locker
	publisher events.Publisher
	fsm       *lifecycle.FSM[lifecycle.AppointmentStatus]
	cfg       config.Config
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, slots SlotStore, locker redisclient.Locker, publisher events.Publisher, cfg config.Config, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		slots:     slots,
		locker:    locker,
		publisher: publisher,
		fsm:       lifecycle.Appointments(),
		cfg:       cfg,
		logger:    logger.With().Str("component", "appointment_service").Logger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SlotLockKey names the lock guarding one (provider, date, time) cell.
func SlotLockKey(providerID uuid.UUID, date time.Time, t int) string {
	return fmt.Sprintf("lock:slot:%s:%s:%d", providerID, date.Format(time.DateOnly), t)
}

// Reserve books the slot for a patient. At most one live appointment can hold a
// slot: concurrent callers are serialized by a per-slot lock and the repository
// rejects a second live appointment for the same cell. The caller decides whether to retry.
func (s *Service) Reserve(ctx context.Context, req ReserveRequest) (*Appointment, error) {
	started := time.Now()
	defer func() { metrics.ObserveReserve(time.Since(started).Seconds()) }()

	appt, err := s.reserve(ctx, req)
	switch {
	case err == nil:
		metrics.IncReservation("created")
	case errors.Is(err, availability.ErrSlotUnavailable):
		metrics.IncReservation("unavailable")
	case errors.Is(err, availability.ErrSlotNotFound):
		metrics.IncReservation("not_found")
	default:
		metrics.IncReservation("rejected")
	}
	return appt, err
}

func (s *Service) reserve(ctx context.Context, req ReserveRequest) (*Appointment, error) {
	if req.Type == "" {
		req.Type = TypeConsultation
	}
	if _, err := ParseType(string(req.Type)); err != nil {
		return nil, err
	}
	if slot := s.slots.Grid().GranularityMinutes; req.DurationMinutes != 0 && req.DurationMinutes != slot {
		return nil, fmt.Errorf("%w: duration must be one slot (%d minutes)", ErrInvalidRequest, slot)
	}
	if req.Fee != nil && req.Fee.IsNegative() {
		return nil, fmt.Errorf("%w: negative fee", ErrInvalidRequest)
	}

	// Validate patient and provider exist
	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if _, err := s.repo.GetProviderByID(ctx, req.ProviderID); err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}

	date := calendar.DateOf(req.Date)
	var created *Appointment

	err := s.locker.WithLock(ctx, SlotLockKey(req.ProviderID, date, req.Time), func(lockCtx context.Context) error {
		// Inside the critical section read the authoritative slot state
		slot, err := s.slots.SlotState(lockCtx, req.ProviderID, date, req.Time)
		if err != nil {
			return err
		}
		// Grid dates are UTC midnights and slot times are minutes past them.
		if !date.Add(time.Duration(req.Time) * time.Minute).After(s.now().UTC()) {
			return fmt.Errorf("%w: slot %s %s has already started", availability.ErrSlotUnavailable, date.Format(time.DateOnly), slot.Label())
		}
		if !slot.Available {
			return fmt.Errorf("%w: %s %s", availability.ErrSlotUnavailable, date.Format(time.DateOnly), slot.Label())
		}

		appt := s.newAppointment(req, date)
		if err := s.repo.CreateAppointment(lockCtx, appt); err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return fmt.Errorf("%w: %v", availability.ErrSlotUnavailable, err)
			}
			return fmt.Errorf("create appointment: %w", err)
		}
		created = appt

		s.slots.MarkBooked(appt.ProviderID, appt.Date, appt.Time, appt.ID)
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, fmt.Errorf("%w: slot is being booked by another request", availability.ErrSlotUnavailable)
		}
		return nil, err
	}

	s.logEvent(ctx, created, EventAppointmentCreated, map[string]any{
		"type":   created.Type,
		"urgent": created.Urgent,
		"fee":    created.Fee.StringFixed(2),
	})
	return created, nil
}

func (s *Service) newAppointment(req ReserveRequest, date time.Time) *Appointment {
	fee := req.Type.DefaultFee()
	if req.Fee != nil {
		fee = *req.Fee
	}

	return &Appointment{
		ID:              uuid.New(),
		ProviderID:      req.ProviderID,
		PatientID:       req.PatientID,
		Date:            date,
		Time:            req.Time,
		DurationMinutes: s.slots.Grid().GranularityMinutes,
		Type:            req.Type,
		Status:          lifecycle.AppointmentScheduled,
		Urgent:          req.Urgent,
		Fee:             fee,
		Reason:          req.Reason,
		Notes:           req.Notes,
	}
}

// Cancel moves a scheduled appointment to cancelled and frees its slot.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.transition(ctx, id, lifecycle.AppointmentCancelled, EventAppointmentCancelled)
	if err != nil {
		return nil, err
	}
	s.slots.MarkReleased(appt.ProviderID, appt.Date)
	metrics.IncCancellation()
	return appt, nil
}

func (s *Service) Start(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, lifecycle.AppointmentInProgress, EventAppointmentStarted)
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, lifecycle.AppointmentCompleted, EventAppointmentCompleted)
}

func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, lifecycle.AppointmentNoShow, EventAppointmentNoShow)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to lifecycle.AppointmentStatus, eventType string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if _, err := s.fsm.Transition(appt.Status, to); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, fmt.Errorf("%w: appointment %s changed concurrently", lifecycle.ErrInvalidTransition, id)
		}
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	metrics.IncTransition(s.fsm.Entity(), string(to))
	s.logEvent(ctx, updated, eventType, map[string]any{"from": appt.Status})

	return updated, nil
}

// MarkOverdueNoShows is intended to be called by the worker periodically. Appointments
// still scheduled once their end plus the grace period has passed become no_show.
func (s *Service) MarkOverdueNoShows(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.NoShowGrace)
	overdue, err := s.repo.FindScheduledBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find overdue appointments: %w", err)
	}

	marked := 0
	for _, appt := range overdue {
		updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, lifecycle.AppointmentScheduled, lifecycle.AppointmentNoShow)
		if err != nil {
			if !errors.Is(err, ErrAppointmentNotFound) {
				s.logger.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to mark no-show")
			}
			continue
		}
		marked++
		metrics.IncTransition(s.fsm.Entity(), string(lifecycle.AppointmentNoShow))
		s.logEvent(ctx, updated, EventAppointmentNoShow, map[string]any{"reason": "worker"})
	}

	return marked, nil
}

func (s *Service) logEvent(ctx context.Context, appt *Appointment, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appt.ID
	now := s.now()

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     now,
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Str("appointment_id", apptID.String()).Msg("failed to insert event log")
	}

	if s.publisher == nil {
		return
	}
	err = s.publisher.Publish(ctx, events.Event{
		Type:          eventType,
		AppointmentID: appt.ID,
		ProviderID:    appt.ProviderID,
		PatientID:     appt.PatientID,
		Date:          appt.Date.Format(time.DateOnly),
		Time:          calendar.FormatMinutes(appt.Time),
		Status:        string(appt.Status),
		OccurredAt:    now,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Str("appointment_id", apptID.String()).Msg("failed to publish event")
	}
}

// GetAppointment retrieves a fully hydrated appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return detail, nil
}

// ListAppointmentsByPatient retrieves appointments for a specific patient
func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appointments, nil
}
