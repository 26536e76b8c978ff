package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/provider-availability-scheduling/internal/appointment"
	"github.com/hackgods/provider-availability-scheduling/internal/availability"
	"github.com/hackgods/provider-availability-scheduling/internal/calendar"
)

type ReserveAppointmentRequest struct {
	ProviderID      string           `json:"provider_id"`
	PatientID       string           `json:"patient_id"`
	Date            string           `json:"date"` // YYYY-MM-DD
	Time            string           `json:"time"` // HH:MM or minutes since midnight
	Type            string           `json:"type,omitempty"`
	Urgent          bool             `json:"urgent,omitempty"`
	Reason          string           `json:"reason,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	DurationMinutes int              `json:"duration_minutes,omitempty"` // zero or one slot
	Fee             *decimal.Decimal `json:"fee,omitempty"`
}

type AppointmentResponse struct {
	ID              uuid.UUID         `json:"id"`
	ProviderID      uuid.UUID         `json:"provider_id"`
	PatientID       uuid.UUID         `json:"patient_id"`
	Date            string            `json:"date"`
	Time            string            `json:"time"`
	DurationMinutes int               `json:"duration_minutes"`
	Type            string            `json:"type"`
	Status          string            `json:"status"`
	Urgent          bool              `json:"urgent"`
	Fee             decimal.Decimal   `json:"fee"`
	Reason          string            `json:"reason,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	Patient         *PatientResponse  `json:"patient,omitempty"`
	Provider        *ProviderResponse `json:"provider,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

type PatientResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email *string   `json:"email,omitempty"`
}

type ProviderResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty *string   `json:"specialty,omitempty"`
}

type ListAppointmentsResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

type TemplateResponse struct {
	ProviderID uuid.UUID                 `json:"provider_id"`
	Template   availability.TemplateSpec `json:"template"`
}

type TemplateCatalogResponse struct {
	Templates []string `json:"templates"`
}

type DayResponse struct {
	ProviderID uuid.UUID    `json:"provider_id"`
	Day        calendar.Day `json:"day"`
}

type SlotResponse struct {
	ProviderID uuid.UUID         `json:"provider_id"`
	Date       string            `json:"date"`
	Label      string            `json:"label"`
	Slot       calendar.TimeSlot `json:"slot"`
}

type CreateRecordRequest struct {
	PatientID     string            `json:"patient_id"`
	ProviderID    string            `json:"provider_id"`
	AppointmentID string            `json:"appointment_id,omitempty"`
	Urgent        bool              `json:"urgent,omitempty"`
	Fields        map[string]string `json:"fields"`
}

type TransitionRequest struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		ProviderID:      a.ProviderID,
		PatientID:       a.PatientID,
		Date:            a.Date.Format(time.DateOnly),
		Time:            calendar.FormatMinutes(a.Time),
		DurationMinutes: a.DurationMinutes,
		Type:            string(a.Type),
		Status:          string(a.Status),
		Urgent:          a.Urgent,
		Fee:             a.Fee,
		Reason:          a.Reason,
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func toDetailResponse(d *appointment.AppointmentDetail) AppointmentResponse {
	resp := toAppointmentResponse(&d.Appointment)
	if d.Patient != nil {
		resp.Patient = &PatientResponse{ID: d.Patient.ID, Name: d.Patient.Name, Email: d.Patient.Email}
	}
	if d.Provider != nil {
		resp.Provider = &ProviderResponse{ID: d.Provider.ID, Name: d.Provider.Name, Specialty: d.Provider.Specialty}
	}
	return resp
}
