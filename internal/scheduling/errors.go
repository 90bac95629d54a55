package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ValidationError reports malformed input. It is returned as a value, never
// surfaced to the transport layer as an opaque 500.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("scheduling: invalid %s: %s", e.Field, e.Message)
}

func invalidField(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ConflictError reports that the requested window is not bookable, either
// because the availability check failed or because a concurrent insert won
// the slot.
type ConflictError struct {
	ProfessionalID uuid.UUID
	Start          time.Time
	End            time.Time
	Reason         string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("scheduling: slot %s-%s unavailable for professional %s: %s",
		e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339), e.ProfessionalID, e.Reason)
}

// NotFoundError reports a missing tenant-scoped entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("scheduling: %s %s not found", e.Entity, e.ID)
}

// DependencyError wraps a collaborator failure (calendar sync, notification
// dispatch). It degrades the operation but never fails it; callers see it
// only in logs and metadata flags.
type DependencyError struct {
	Subsystem string
	Err       error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("scheduling: %s dependency failed: %v", e.Subsystem, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }
