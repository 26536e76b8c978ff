package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hackgods/provider-availability-scheduling/internal/appointment"
	"github.com/hackgods/provider-availability-scheduling/internal/availability"
	"github.com/hackgods/provider-availability-scheduling/internal/calendar"
	"github.com/hackgods/provider-availability-scheduling/internal/lifecycle"
	"github.com/hackgods/provider-availability-scheduling/internal/records"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// handleError maps domain errors onto status codes. Anything unrecognised is a 500.
func handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, availability.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, availability.ErrTemplateNotFound):
		writeError(w, http.StatusNotFound, "template_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, records.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "record_not_found", err.Error())
	case errors.Is(err, records.ErrUnknownKind):
		writeError(w, http.StatusNotFound, "unknown_record_kind", err.Error())
	case errors.Is(err, availability.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, availability.ErrWeekImmutable):
		writeError(w, http.StatusConflict, "week_immutable", err.Error())
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, calendar.ErrConfiguration):
		writeError(w, http.StatusUnprocessableEntity, "invalid_configuration", err.Error())
	case errors.Is(err, appointment.ErrInvalidType),
		errors.Is(err, appointment.ErrInvalidRequest),
		errors.Is(err, records.ErrInvalidRecord):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
