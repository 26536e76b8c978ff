package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSlotNotFound     = errors.New("slot not found")
	ErrSlotUnavailable  = errors.New("slot unavailable")
	ErrWeekImmutable    = errors.New("past weeks cannot be changed")
	ErrTemplateNotFound = errors.New("template not found")
)

// DayOverride forces the working state of one date.
type DayOverride struct {
	ProviderID uuid.UUID
	Date       time.Time
	Working    bool
}

// SlotOverride forces the availability of one slot.
type SlotOverride struct {
	ProviderID uuid.UUID
	Date       time.Time
	Time       int
	Available  bool
}

// Booking is a live reservation occupying a slot.
type Booking struct {
	AppointmentID uuid.UUID
	Date          time.Time
	Time          int
}

// Repository persists templates and manual overrides.
type Repository interface {
	// TemplateAt returns the template in effect on date, or ErrTemplateNotFound.
	TemplateAt(ctx context.Context, providerID uuid.UUID, date time.Time) (*Template, error)
	// SaveTemplate stores tmpl as effective from effectiveFrom and drops every day and
	// slot override dated on or after it, atomically.
	SaveTemplate(ctx context.Context, providerID uuid.UUID, effectiveFrom time.Time, tmpl Template) error

	// Date ranges are inclusive of from and exclusive of to.
	ListDayOverrides(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]DayOverride, error)
	ListSlotOverrides(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]SlotOverride, error)

	UpsertDayOverride(ctx context.Context, o DayOverride) error
	DeleteDayOverride(ctx context.Context, providerID uuid.UUID, date time.Time) error
	UpsertSlotOverride(ctx context.Context, o SlotOverride) error

	// ResetDay stores o and drops the slot overrides of o.Date, atomically.
	ResetDay(ctx context.Context, o DayOverride) error
}

// BookingSource lists the active reservations of a provider.
type BookingSource interface {
	ActiveBookings(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Booking, error)
}
