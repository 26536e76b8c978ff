package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/provider-availability-scheduling/internal/appointment"
	"github.com/hackgods/provider-availability-scheduling/internal/calendar"
)

func reserveAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReserveAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		date, err := calendar.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		minute, err := calendar.ParseMinutes(req.Time)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", "time must be HH:MM")
			return
		}

		apptType, err := appointment.ParseType(req.Type)
		if err != nil {
			handleError(w, err)
			return
		}

		appt, err := svc.Reserve(r.Context(), appointment.ReserveRequest{
			ProviderID:      providerID,
			PatientID:       patientID,
			Date:            date,
			Time:            minute,
			Type:            apptType,
			Urgent:          req.Urgent,
			Reason:          req.Reason,
			Notes:           req.Notes,
			DurationMinutes: req.DurationMinutes,
			Fee:             req.Fee,
		})
		if err != nil {
			handleError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "invalid_appointment_id")
		if !ok {
			return
		}

		detail, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toDetailResponse(detail))
	}
}

// appointmentActionHandler serves POST /appointments/{id}/{action}.
func appointmentActionHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "invalid_appointment_id")
		if !ok {
			return
		}

		var (
			appt *appointment.Appointment
			err  error
		)
		switch chi.URLParam(r, "action") {
		case "cancel":
			appt, err = svc.Cancel(r.Context(), id)
		case "start":
			appt, err = svc.Start(r.Context(), id)
		case "complete":
			appt, err = svc.Complete(r.Context(), id)
		case "no-show":
			appt, err = svc.MarkNoShow(r.Context(), id)
		default:
			writeError(w, http.StatusNotFound, "unknown_action", "action must be cancel, start, complete or no-show")
			return
		}
		if err != nil {
			handleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listPatientAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, ok := parseUUIDParam(w, r, "patientID", "invalid_patient_id")
		if !ok {
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		list, err := svc.ListAppointmentsByPatient(r.Context(), patientID, limit, offset)
		if err != nil {
			handleError(w, err)
			return
		}

		resp := ListAppointmentsResponse{
			Appointments: make([]AppointmentResponse, 0, len(list)),
			Limit:        limit,
			Offset:       offset,
		}
		for i := range list {
			resp.Appointments = append(resp.Appointments, toDetailResponse(&list[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
