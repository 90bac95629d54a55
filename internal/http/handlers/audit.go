package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/vitalhub/scheduling-platform/internal/audit"
	"github.com/vitalhub/scheduling-platform/internal/tenancy"
	"github.com/vitalhub/scheduling-platform/pkg/logging"
)

// AuditHandler exposes the mutation trail to tenant admins.
type AuditHandler struct {
	service *audit.Service
	logger  *logging.Logger
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(service *audit.Service, logger *logging.Logger) *AuditHandler {
	if service == nil {
		panic("handlers: audit service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AuditHandler{service: service, logger: logger}
}

// Query returns audit entries matching the filters, newest first.
// GET /api/v1/audit?entity_id=...&action=...&from=...&to=...&limit=...
func (h *AuditHandler) Query(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.FromContext(r.Context())
	if !ok {
		jsonError(w, "missing identity", http.StatusUnauthorized)
		return
	}

	filter := audit.Filter{
		TenantID: identity.TenantID,
		EntityID: r.URL.Query().Get("entity_id"),
		Action:   audit.Action(r.URL.Query().Get("action")),
		Limit:    100,
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			jsonError(w, "invalid from parameter", http.StatusBadRequest)
			return
		}
		filter.StartTime = t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			jsonError(w, "invalid to parameter", http.StatusBadRequest)
			return
		}
		filter.EndTime = t
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			jsonError(w, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}

	entries, err := h.service.Query(r.Context(), filter)
	if err != nil {
		h.logger.Error("audit query failed", "tenant_id", identity.TenantID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
