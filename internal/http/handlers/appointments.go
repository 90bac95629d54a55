package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vitalhub/scheduling-platform/internal/availability"
	"github.com/vitalhub/scheduling-platform/internal/scheduling"
	"github.com/vitalhub/scheduling-platform/internal/tenancy"
	"github.com/vitalhub/scheduling-platform/pkg/logging"
)

// AppointmentsHandler exposes the appointment booking API.
type AppointmentsHandler struct {
	service *scheduling.Service
	logger  *logging.Logger
}

// NewAppointmentsHandler creates a new appointments handler.
func NewAppointmentsHandler(service *scheduling.Service, logger *logging.Logger) *AppointmentsHandler {
	if service == nil {
		panic("handlers: scheduling service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentsHandler{service: service, logger: logger}
}

// Create books a new appointment.
// POST /api/v1/appointments
func (h *AppointmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.FromContext(r.Context())
	if !ok {
		jsonError(w, "missing identity", http.StatusUnauthorized)
		return
	}

	var input scheduling.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	appt, err := h.service.Create(r.Context(), identity, input)
	if err != nil {
		if domainError(w, err) {
			h.logger.Error("create appointment failed", "tenant_id", identity.TenantID, "error", err)
			jsonError(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// Get returns one appointment.
// GET /api/v1/appointments/{appointmentID}
func (h *AppointmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.FromContext(r.Context())
	if !ok {
		jsonError(w, "missing identity", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		jsonError(w, "invalid appointment id", http.StatusBadRequest)
		return
	}

	appt, err := h.service.Get(r.Context(), identity, id)
	if err != nil {
		if domainError(w, err) {
			h.logger.Error("get appointment failed", "tenant_id", identity.TenantID, "error", err)
			jsonError(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Update applies a sparse patch to an appointment.
// PATCH /api/v1/appointments/{appointmentID}
func (h *AppointmentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.FromContext(r.Context())
	if !ok {
		jsonError(w, "missing identity", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		jsonError(w, "invalid appointment id", http.StatusBadRequest)
		return
	}

	var patch scheduling.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	appt, err := h.service.Update(r.Context(), identity, id, patch)
	if err != nil {
		if domainError(w, err) {
			h.logger.Error("update appointment failed", "tenant_id", identity.TenantID, "appointment_id", id, "error", err)
			jsonError(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Cancel marks an appointment cancelled.
// POST /api/v1/appointments/{appointmentID}/cancel
func (h *AppointmentsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.FromContext(r.Context())
	if !ok {
		jsonError(w, "missing identity", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		jsonError(w, "invalid appointment id", http.StatusBadRequest)
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			jsonError(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
	}

	appt, err := h.service.Cancel(r.Context(), identity, id, body.Reason)
	if err != nil {
		if domainError(w, err) {
			h.logger.Error("cancel appointment failed", "tenant_id", identity.TenantID, "appointment_id", id, "error", err)
			jsonError(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// List returns appointments matching the query filters.
// GET /api/v1/appointments
func (h *AppointmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.FromContext(r.Context())
	if !ok {
		jsonError(w, "missing identity", http.StatusUnauthorized)
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	appts, err := h.service.List(r.Context(), identity, filter)
	if err != nil {
		h.logger.Error("list appointments failed", "tenant_id", identity.TenantID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if appts == nil {
		appts = []scheduling.Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

// Slots lists bookable slots for one professional and day.
// GET /api/v1/professionals/{professionalID}/slots?date=2025-06-02&duration=60&step=30
func (h *AppointmentsHandler) Slots(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.FromContext(r.Context())
	if !ok {
		jsonError(w, "missing identity", http.StatusUnauthorized)
		return
	}
	professionalID, err := uuid.Parse(chi.URLParam(r, "professionalID"))
	if err != nil {
		jsonError(w, "invalid professional id", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		jsonError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	duration, err := strconv.Atoi(r.URL.Query().Get("duration"))
	if err != nil || duration <= 0 {
		jsonError(w, "duration must be a positive integer of minutes", http.StatusBadRequest)
		return
	}
	step := 0
	if raw := r.URL.Query().Get("step"); raw != "" {
		step, err = strconv.Atoi(raw)
		if err != nil || step <= 0 {
			jsonError(w, "step must be a positive integer of minutes", http.StatusBadRequest)
			return
		}
	}

	slots, err := h.service.ListSlots(r.Context(), identity, availability.SlotsRequest{
		ProfessionalID:  professionalID,
		Date:            date,
		DurationMinutes: duration,
		StepMinutes:     step,
	})
	if err != nil {
		if domainError(w, err) {
			h.logger.Error("list slots failed", "tenant_id", identity.TenantID, "professional_id", professionalID, "error", err)
			jsonError(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	if slots == nil {
		slots = []availability.Slot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

// Stats aggregates appointment outcomes.
// GET /api/v1/appointments/stats
func (h *AppointmentsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.FromContext(r.Context())
	if !ok {
		jsonError(w, "missing identity", http.StatusUnauthorized)
		return
	}

	var professionalID *uuid.UUID
	if raw := r.URL.Query().Get("professional_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			jsonError(w, "invalid professional_id", http.StatusBadRequest)
			return
		}
		professionalID = &id
	}
	from, to, err := parseRange(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	stats, err := h.service.GetStats(r.Context(), identity, professionalID, from, to)
	if err != nil {
		h.logger.Error("appointment stats failed", "tenant_id", identity.TenantID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func parseFilter(r *http.Request) (scheduling.Filter, error) {
	var f scheduling.Filter
	q := r.URL.Query()

	if raw := q.Get("professional_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, errInvalidParam("professional_id")
		}
		f.ProfessionalID = &id
	}
	if raw := q.Get("client_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, errInvalidParam("client_id")
		}
		f.ClientID = &id
	}
	if raw := q.Get("status"); raw != "" {
		status := scheduling.Status(raw)
		if !scheduling.ValidStatus(status) {
			return f, errInvalidParam("status")
		}
		f.Status = &status
	}
	if raw := q.Get("type"); raw != "" {
		typ := scheduling.AppointmentType(raw)
		if !scheduling.ValidType(typ) {
			return f, errInvalidParam("type")
		}
		f.Type = &typ
	}
	from, to, err := parseRange(r)
	if err != nil {
		return f, err
	}
	f.From = from
	f.To = to
	if raw := q.Get("limit"); raw != "" {
		f.Limit, err = strconv.Atoi(raw)
		if err != nil || f.Limit < 0 {
			return f, errInvalidParam("limit")
		}
	}
	if raw := q.Get("offset"); raw != "" {
		f.Offset, err = strconv.Atoi(raw)
		if err != nil || f.Offset < 0 {
			return f, errInvalidParam("offset")
		}
	}
	return f, nil
}

func parseRange(r *http.Request) (from, to *time.Time, err error) {
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, parseErr := time.Parse(time.RFC3339, raw)
		if parseErr != nil {
			return nil, nil, errInvalidParam("from")
		}
		from = &t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, parseErr := time.Parse(time.RFC3339, raw)
		if parseErr != nil {
			return nil, nil, errInvalidParam("to")
		}
		to = &t
	}
	return from, to, nil
}

type paramError struct{ name string }

func (e *paramError) Error() string { return "invalid " + e.name + " parameter" }

func errInvalidParam(name string) error { return &paramError{name: name} }
