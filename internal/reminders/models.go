package reminders

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks the lifecycle of a reminder.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusCancelled Status = "cancelled"
)

// Type identifies the fixed offset a reminder fires at.
type Type string

const (
	Type24hBefore Type = "24h_before"
	Type1hBefore  Type = "1h_before"
)

// Reminder is a notification trigger derived from an appointment's start
// time. Reminders are created with the appointment and cancelled with it;
// they are never independently mutated otherwise.
type Reminder struct {
	ID            uuid.UUID `json:"id"`
	TenantID      string    `json:"tenant_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Type          Type      `json:"type"`
	ScheduledFor  time.Time `json:"scheduled_for"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
