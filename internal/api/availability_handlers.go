package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/provider-availability-scheduling/internal/availability"
	"github.com/hackgods/provider-availability-scheduling/internal/calendar"
)

func getWeekHandler(store *availability.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := parseUUIDParam(w, r, "providerID", "invalid_provider_id")
		if !ok {
			return
		}
		offset, ok := parseOffset(w, r)
		if !ok {
			return
		}

		week, err := store.GetWeek(r.Context(), providerID, offset)
		if err != nil {
			handleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, week)
	}
}

func getTemplateHandler(store *availability.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := parseUUIDParam(w, r, "providerID", "invalid_provider_id")
		if !ok {
			return
		}

		tmpl, err := store.Template(r.Context(), providerID)
		if err != nil {
			handleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, TemplateResponse{ProviderID: providerID, Template: tmpl.Spec()})
	}
}

func putTemplateHandler(store *availability.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := parseUUIDParam(w, r, "providerID", "invalid_provider_id")
		if !ok {
			return
		}

		var spec availability.TemplateSpec
		if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		tmpl, err := spec.Template()
		if err != nil {
			handleError(w, err)
			return
		}
		if err := store.ApplyTemplate(r.Context(), providerID, tmpl); err != nil {
			handleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, TemplateResponse{ProviderID: providerID, Template: tmpl.Spec()})
	}
}

func putNamedTemplateHandler(store *availability.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := parseUUIDParam(w, r, "providerID", "invalid_provider_id")
		if !ok {
			return
		}

		tmpl, err := store.ApplyNamedTemplate(r.Context(), providerID, chi.URLParam(r, "name"))
		if err != nil {
			handleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, TemplateResponse{ProviderID: providerID, Template: tmpl.Spec()})
	}
}

func listTemplatesHandler(store *availability.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, TemplateCatalogResponse{Templates: store.Catalog().Names()})
	}
}

func toggleDayHandler(store *availability.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := parseUUIDParam(w, r, "providerID", "invalid_provider_id")
		if !ok {
			return
		}
		offset, ok := parseOffset(w, r)
		if !ok {
			return
		}
		date, ok := parseDateParam(w, r)
		if !ok {
			return
		}

		day, err := store.ToggleDay(r.Context(), providerID, offset, date)
		if err != nil {
			handleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, DayResponse{ProviderID: providerID, Day: day})
	}
}

func toggleSlotHandler(store *availability.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := parseUUIDParam(w, r, "providerID", "invalid_provider_id")
		if !ok {
			return
		}
		offset, ok := parseOffset(w, r)
		if !ok {
			return
		}
		date, ok := parseDateParam(w, r)
		if !ok {
			return
		}
		minute, err := calendar.ParseMinutes(chi.URLParam(r, "time"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", "time must be HH:MM")
			return
		}

		slot, err := store.ToggleSlot(r.Context(), providerID, offset, date, minute)
		if err != nil {
			handleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, SlotResponse{
			ProviderID: providerID,
			Date:       date.Format(time.DateOnly),
			Label:      slot.Label(),
			Slot:       slot,
		})
	}
}

func parseOffset(w http.ResponseWriter, r *http.Request) (int, bool) {
	offset, err := strconv.Atoi(chi.URLParam(r, "offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_week_offset", "offset must be an integer")
		return 0, false
	}
	return offset, true
}

func parseDateParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	date, err := calendar.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}
