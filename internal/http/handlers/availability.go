package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vitalhub/scheduling-platform/internal/availability"
	"github.com/vitalhub/scheduling-platform/internal/tenancy"
	"github.com/vitalhub/scheduling-platform/pkg/logging"
)

// AvailabilityHandler exposes rule and block management for professionals
// and admins. Writes invalidate the rule cache.
type AvailabilityHandler struct {
	store  *availability.Store
	cache  *availability.CachedRules
	logger *logging.Logger
}

// NewAvailabilityHandler creates a new availability handler. cache may be
// nil when Redis is not configured.
func NewAvailabilityHandler(store *availability.Store, cache *availability.CachedRules, logger *logging.Logger) *AvailabilityHandler {
	if store == nil {
		panic("handlers: availability store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AvailabilityHandler{store: store, cache: cache, logger: logger}
}

type ruleRequest struct {
	ProfessionalID uuid.UUID `json:"professional_id"`
	DayOfWeek      int       `json:"day_of_week"`
	StartTime      string    `json:"start_time"`
	EndTime        string    `json:"end_time"`
	IsActive       *bool     `json:"is_active,omitempty"`
}

// CreateRule adds a weekly open-hours rule.
// POST /api/v1/availability/rules
func (h *AvailabilityHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.FromContext(r.Context())
	if !ok {
		jsonError(w, "missing identity", http.StatusUnauthorized)
		return
	}

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.ProfessionalID == uuid.Nil {
		jsonError(w, "professional_id is required", http.StatusUnprocessableEntity)
		return
	}
	if req.DayOfWeek < 0 || req.DayOfWeek > 6 {
		jsonError(w, "day_of_week must be 0 (Sunday) through 6 (Saturday)", http.StatusUnprocessableEntity)
		return
	}

	rule := &availability.Rule{
		TenantID:       identity.TenantID,
		ProfessionalID: req.ProfessionalID,
		DayOfWeek:      time.Weekday(req.DayOfWeek),
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		IsActive:       true,
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if err := h.store.CreateRule(r.Context(), rule); err != nil {
		if domainError(w, err) {
			h.logger.Error("create rule failed", "tenant_id", identity.TenantID, "error", err)
			jsonError(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	h.invalidate(r, identity.TenantID, rule.ProfessionalID)
	writeJSON(w, http.StatusCreated, rule)
}

// UpdateRule replaces a rule's window and active flag.
// PUT /api/v1/availability/rules/{ruleID}
func (h *AvailabilityHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.FromContext(r.Context())
	if !ok {
		jsonError(w, "missing identity", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "ruleID"))
	if err != nil {
		jsonError(w, "invalid rule id", http.StatusBadRequest)
		return
	}

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.DayOfWeek < 0 || req.DayOfWeek > 6 {
		jsonError(w, "day_of_week must be 0 (Sunday) through 6 (Saturday)", http.StatusUnprocessableEntity)
		return
	}

	rule := &availability.Rule{
		ID:             id,
		TenantID:       identity.TenantID,
		ProfessionalID: req.ProfessionalID,
		DayOfWeek:      time.Weekday(req.DayOfWeek),
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		IsActive:       true,
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if err := h.store.UpdateRule(r.Context(), rule); err != nil {
		if domainError(w, err) {
			h.logger.Error("update rule failed", "tenant_id", identity.TenantID, "rule_id", id, "error", err)
			jsonError(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	h.invalidate(r, identity.TenantID, rule.ProfessionalID)
	writeJSON(w, http.StatusOK, rule)
}

// ListRules returns all rules for a professional, active and inactive.
// GET /api/v1/availability/rules?professional_id=...
func (h *AvailabilityHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.FromContext(r.Context())
	if !ok {
		jsonError(w, "missing identity", http.StatusUnauthorized)
		return
	}
	professionalID, err := uuid.Parse(r.URL.Query().Get("professional_id"))
	if err != nil {
		jsonError(w, "invalid professional_id", http.StatusBadRequest)
		return
	}

	rules, err := h.store.ListRules(r.Context(), identity.TenantID, professionalID)
	if err != nil {
		h.logger.Error("list rules failed", "tenant_id", identity.TenantID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if rules == nil {
		rules = []availability.Rule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

type blockRequest struct {
	ProfessionalID uuid.UUID `json:"professional_id"`
	StartDate      string    `json:"start_date"` // YYYY-MM-DD inclusive
	EndDate        string    `json:"end_date"`   // YYYY-MM-DD inclusive
	Reason         string    `json:"reason"`
}

// CreateBlock marks a professional unavailable for a date range.
// POST /api/v1/availability/blocks
func (h *AvailabilityHandler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.FromContext(r.Context())
	if !ok {
		jsonError(w, "missing identity", http.StatusUnauthorized)
		return
	}

	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.ProfessionalID == uuid.Nil {
		jsonError(w, "professional_id is required", http.StatusUnprocessableEntity)
		return
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		jsonError(w, "start_date must be YYYY-MM-DD", http.StatusUnprocessableEntity)
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		jsonError(w, "end_date must be YYYY-MM-DD", http.StatusUnprocessableEntity)
		return
	}

	block := &availability.Block{
		TenantID:       identity.TenantID,
		ProfessionalID: req.ProfessionalID,
		StartDate:      start,
		EndDate:        end,
		Reason:         req.Reason,
	}
	if err := h.store.CreateBlock(r.Context(), block); err != nil {
		if domainError(w, err) {
			h.logger.Error("create block failed", "tenant_id", identity.TenantID, "error", err)
			jsonError(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, block)
}

// DeleteBlock removes a date-range block.
// DELETE /api/v1/availability/blocks/{blockID}
func (h *AvailabilityHandler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.FromContext(r.Context())
	if !ok {
		jsonError(w, "missing identity", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "blockID"))
	if err != nil {
		jsonError(w, "invalid block id", http.StatusBadRequest)
		return
	}

	if err := h.store.DeleteBlock(r.Context(), identity.TenantID, id); err != nil {
		if domainError(w, err) {
			h.logger.Error("delete block failed", "tenant_id", identity.TenantID, "block_id", id, "error", err)
			jsonError(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListBlocks returns all blocks for a professional.
// GET /api/v1/availability/blocks?professional_id=...
func (h *AvailabilityHandler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.FromContext(r.Context())
	if !ok {
		jsonError(w, "missing identity", http.StatusUnauthorized)
		return
	}
	professionalID, err := uuid.Parse(r.URL.Query().Get("professional_id"))
	if err != nil {
		jsonError(w, "invalid professional_id", http.StatusBadRequest)
		return
	}

	blocks, err := h.store.ListBlocks(r.Context(), identity.TenantID, professionalID)
	if err != nil {
		h.logger.Error("list blocks failed", "tenant_id", identity.TenantID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if blocks == nil {
		blocks = []availability.Block{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": blocks})
}

func (h *AvailabilityHandler) invalidate(r *http.Request, tenantID string, professionalID uuid.UUID) {
	if h.cache != nil {
		h.cache.Invalidate(r.Context(), tenantID, professionalID)
	}
}
