package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vitalhub/scheduling-platform/internal/notify"
	"github.com/vitalhub/scheduling-platform/internal/tenancy"
	"github.com/vitalhub/scheduling-platform/pkg/logging"
)

// NotificationsHandler exposes the caller's in-app notification feed.
type NotificationsHandler struct {
	store  *notify.Store
	logger *logging.Logger
}

// NewNotificationsHandler creates a new notifications handler.
func NewNotificationsHandler(store *notify.Store, logger *logging.Logger) *NotificationsHandler {
	if store == nil {
		panic("handlers: notification store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &NotificationsHandler{store: store, logger: logger}
}

// List returns the caller's notifications, newest first.
// GET /api/v1/notifications?limit=50
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.FromContext(r.Context())
	if !ok {
		jsonError(w, "missing identity", http.StatusUnauthorized)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			jsonError(w, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	notifications, err := h.store.ListByUser(r.Context(), identity.TenantID, identity.UserID, limit)
	if err != nil {
		h.logger.Error("list notifications failed", "tenant_id", identity.TenantID, "user_id", identity.UserID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if notifications == nil {
		notifications = []notify.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

// MarkRead flags one notification as read.
// POST /api/v1/notifications/{notificationID}/read
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.FromContext(r.Context())
	if !ok {
		jsonError(w, "missing identity", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "notificationID"))
	if err != nil {
		jsonError(w, "invalid notification id", http.StatusBadRequest)
		return
	}

	if err := h.store.MarkRead(r.Context(), identity.TenantID, id); err != nil {
		h.logger.Error("mark notification read failed", "tenant_id", identity.TenantID, "notification_id", id, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
