package availability

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Rule is a recurring weekly open-hours definition for a professional.
// Rules are deactivated, never deleted.
type Rule struct {
	ID             uuid.UUID    `json:"id"`
	TenantID       string       `json:"tenant_id"`
	ProfessionalID uuid.UUID    `json:"professional_id"`
	DayOfWeek      time.Weekday `json:"day_of_week"`
	StartTime      string       `json:"start_time"` // "HH:MM" local
	EndTime        string       `json:"end_time"`   // "HH:MM" local
	IsActive       bool         `json:"is_active"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Window returns the rule's open interval as minutes from midnight.
func (r *Rule) Window() (startMin, endMin int, err error) {
	startMin, err = ParseClock(r.StartTime)
	if err != nil {
		return 0, 0, fmt.Errorf("availability: rule %s start: %w", r.ID, err)
	}
	endMin, err = ParseClock(r.EndTime)
	if err != nil {
		return 0, 0, fmt.Errorf("availability: rule %s end: %w", r.ID, err)
	}
	return startMin, endMin, nil
}

// ParseClock converts an "HH:MM" string to minutes from midnight.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("parse %q: out of range", s)
	}
	return h*60 + m, nil
}

// FormatClock converts minutes from midnight to "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Block marks a professional fully unavailable for a date range, regardless
// of rules. Both bounds are inclusive calendar dates.
type Block struct {
	ID             uuid.UUID `json:"id"`
	TenantID       string    `json:"tenant_id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Slot is a candidate booking window of fixed duration.
type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}
