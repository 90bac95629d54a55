// Package calendar mirrors appointments into an external calendar through a
// provider bridge. Mirroring is best-effort: failures are recorded on the
// appointment, never propagated to the booking path.
package calendar

import (
	"context"
	"time"
)

// Event is the provider-neutral representation of a mirrored appointment.
type Event struct {
	TenantID       string    `json:"tenant_id"`
	ProfessionalID string    `json:"professional_id"`
	Title          string    `json:"title"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Location       string    `json:"location,omitempty"`
	Virtual        bool      `json:"virtual"`
}

// Client defines the operations a calendar provider bridge must implement.
type Client interface {
	// CreateEvent mirrors a new appointment and returns the provider's
	// event id.
	CreateEvent(ctx context.Context, ev Event) (string, error)

	// UpdateEvent re-mirrors an appointment onto an existing provider event.
	UpdateEvent(ctx context.Context, eventID string, ev Event) error

	// DeleteEvent removes the mirrored event.
	DeleteEvent(ctx context.Context, eventID string) error
}
