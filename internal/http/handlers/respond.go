package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vitalhub/scheduling-platform/internal/availability"
	"github.com/vitalhub/scheduling-platform/internal/scheduling"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// domainError maps typed scheduling errors onto HTTP statuses. Unknown
// errors report true so callers log and return 500 themselves.
func domainError(w http.ResponseWriter, err error) (unhandled bool) {
	var validation *scheduling.ValidationError
	if errors.As(err, &validation) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": validation.Message,
			"field": validation.Field,
		})
		return false
	}
	var conflict *scheduling.ConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  conflict.Error(),
			"reason": conflict.Reason,
		})
		return false
	}
	var notFound *scheduling.NotFoundError
	if errors.As(err, &notFound) {
		jsonError(w, notFound.Error(), http.StatusNotFound)
		return false
	}
	switch {
	case errors.Is(err, availability.ErrNotFound):
		jsonError(w, "not found", http.StatusNotFound)
		return false
	case errors.Is(err, availability.ErrInvalidWindow), errors.Is(err, availability.ErrInvalidDateRange):
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return false
	}
	return true
}
