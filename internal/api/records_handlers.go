package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/provider-availability-scheduling/internal/records"
)

func createRecordHandler(svc *records.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := records.ParseKind(chi.URLParam(r, "kind"))
		if err != nil {
			handleError(w, err)
			return
		}

		var req CreateRecordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
			return
		}

		var appointmentID *uuid.UUID
		if req.AppointmentID != "" {
			id, err := uuid.Parse(req.AppointmentID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
				return
			}
			appointmentID = &id
		}

		rec, err := svc.Create(r.Context(), records.CreateRequest{
			Kind:          kind,
			PatientID:     patientID,
			ProviderID:    providerID,
			AppointmentID: appointmentID,
			Urgent:        req.Urgent,
			Fields:        req.Fields,
		})
		if err != nil {
			handleError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, rec)
	}
}

func getRecordHandler(svc *records.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := records.ParseKind(chi.URLParam(r, "kind"))
		if err != nil {
			handleError(w, err)
			return
		}
		id, ok := parseUUIDParam(w, r, "id", "invalid_record_id")
		if !ok {
			return
		}

		rec, err := svc.Get(r.Context(), kind, id)
		if err != nil {
			handleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, rec)
	}
}

func transitionRecordHandler(svc *records.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := records.ParseKind(chi.URLParam(r, "kind"))
		if err != nil {
			handleError(w, err)
			return
		}
		id, ok := parseUUIDParam(w, r, "id", "invalid_record_id")
		if !ok {
			return
		}

		var req TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "body must be {\"status\": \"...\"}")
			return
		}

		rec, err := svc.Transition(r.Context(), kind, id, req.Status)
		if err != nil {
			handleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, rec)
	}
}

func listPatientRecordsHandler(svc *records.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, ok := parseUUIDParam(w, r, "patientID", "invalid_patient_id")
		if !ok {
			return
		}

		var kind records.Kind
		if raw := r.URL.Query().Get("kind"); raw != "" {
			k, err := records.ParseKind(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_record_kind", err.Error())
				return
			}
			kind = k
		}

		recs, err := svc.ListByPatient(r.Context(), patientID, kind)
		if err != nil {
			handleError(w, err)
			return
		}
		if recs == nil {
			recs = []records.Record{}
		}

		writeJSON(w, http.StatusOK, recs)
	}
}
