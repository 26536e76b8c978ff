package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/provider-availability-scheduling/internal/lifecycle"
)

type Type string

const (
	TypeConsultation Type = "consultation"
	TypeFollowUp     Type = "follow_up"
	TypeCheckUp      Type = "check_up"
	TypeEmergency    Type = "emergency"
)

var defaultFees = map[Type]decimal.Decimal{
	TypeConsultation: decimal.NewFromInt(50),
	TypeFollowUp:     decimal.NewFromInt(30),
	TypeCheckUp:      decimal.NewFromInt(40),
	TypeEmergency:    decimal.NewFromInt(120),
}

// ParseType accepts an empty string as a consultation.
func ParseType(s string) (Type, error) {
	if s == "" {
		return TypeConsultation, nil
	}
	t := Type(s)
	if _, ok := defaultFees[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

// DefaultFee is the price of an appointment type when the request carries none.
func (t Type) DefaultFee() decimal.Decimal {
	return defaultFees[t]
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Provider struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment occupies one (provider, date, time) cell while its status is not cancelled.
type Appointment struct {
	ID              uuid.UUID
	ProviderID      uuid.UUID
	PatientID       uuid.UUID
	Date            time.Time
	Time            int
	DurationMinutes int
	Type            Type
	Status          lifecycle.AppointmentStatus
	Urgent          bool
	Fee             decimal.Decimal
	Reason          string
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StartsAt is the slot start as an instant in UTC.
func (a Appointment) StartsAt() time.Time {
	return a.Date.Add(time.Duration(a.Time) * time.Minute)
}

func (a Appointment) EndsAt() time.Time {
	return a.StartsAt().Add(time.Duration(a.DurationMinutes) * time.Minute)
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type AppointmentDetail struct {
	Appointment
	Patient  *Patient
	Provider *Provider
}
