package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentType classifies the service being booked.
type AppointmentType string

const (
	TypeConsultation AppointmentType = "consultation"
	TypeTraining     AppointmentType = "training"
	TypeNutrition    AppointmentType = "nutrition"
	TypeBioimpedance AppointmentType = "bioimpedance"
)

// ValidType reports whether t is a known appointment type.
func ValidType(t AppointmentType) bool {
	switch t {
	case TypeConsultation, TypeTraining, TypeNutrition, TypeBioimpedance:
		return true
	}
	return false
}

// Status tracks the appointment lifecycle.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// ValidStatus reports whether s is a known status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// CanTransitionTo enforces the one-way state machine:
// scheduled -> {completed, cancelled, no_show}.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	return s == StatusScheduled && next.Terminal()
}

// Duration bounds in minutes.
const (
	MinDurationMinutes = 15
	MaxDurationMinutes = 480
)

// Appointment is a booked interval of professional time. Rows are never
// deleted; cancellation is a status change.
type Appointment struct {
	ID                      uuid.UUID       `json:"id"`
	TenantID                string          `json:"tenant_id"`
	ProfessionalID          uuid.UUID       `json:"professional_id"`
	ClientID                uuid.UUID       `json:"client_id"`
	Type                    AppointmentType `json:"type"`
	Title                   string          `json:"title"`
	ScheduledAt             time.Time       `json:"scheduled_at"`
	DurationMinutes         int             `json:"duration_minutes"`
	Status                  Status          `json:"status"`
	Location                string          `json:"location,omitempty"`
	IsVirtual               bool            `json:"is_virtual"`
	CancellationReason      string          `json:"cancellation_reason,omitempty"`
	CancelledAt             *time.Time      `json:"cancelled_at,omitempty"`
	ExternalCalendarEventID string          `json:"external_calendar_event_id,omitempty"`
	ExternalCalendarSynced  bool            `json:"external_calendar_synced"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

// EndsAt returns the exclusive end of the booked interval.
func (a *Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// CreateInput carries the fields a caller supplies when booking.
type CreateInput struct {
	ProfessionalID  uuid.UUID       `json:"professional_id"`
	ClientID        uuid.UUID       `json:"client_id"`
	Type            AppointmentType `json:"type"`
	Title           string          `json:"title"`
	ScheduledAt     time.Time       `json:"scheduled_at"`
	DurationMinutes int             `json:"duration_minutes"`
	Location        string          `json:"location"`
	IsVirtual       bool            `json:"is_virtual"`
}

// UpdateInput is a sparse patch; nil fields are left unchanged.
type UpdateInput struct {
	Type            *AppointmentType `json:"type,omitempty"`
	Title           *string          `json:"title,omitempty"`
	ScheduledAt     *time.Time       `json:"scheduled_at,omitempty"`
	DurationMinutes *int             `json:"duration_minutes,omitempty"`
	Status          *Status          `json:"status,omitempty"`
	Location        *string          `json:"location,omitempty"`
	IsVirtual       *bool            `json:"is_virtual,omitempty"`
}

// Filter selects appointments for listing. All queries are additionally
// tenant-scoped by the store.
type Filter struct {
	ProfessionalID *uuid.UUID
	ClientID       *uuid.UUID
	Status         *Status
	Type           *AppointmentType
	From           *time.Time
	To             *time.Time
	Limit          int
	Offset         int
}

// Stats aggregates appointment outcomes for a professional or tenant.
type Stats struct {
	TenantID       string  `json:"tenant_id"`
	Total          int64   `json:"total"`
	Scheduled      int64   `json:"scheduled"`
	Completed      int64   `json:"completed"`
	Cancelled      int64   `json:"cancelled"`
	NoShow         int64   `json:"no_show"`
	CompletionRate float64 `json:"completion_rate"`
	CancelRate     float64 `json:"cancel_rate"`
	NoShowRate     float64 `json:"no_show_rate"`
}
