package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vitalhub/scheduling-platform/pkg/logging"
)

// RuleSource supplies the authoritative active rule for a weekday.
type RuleSource interface {
	ActiveRule(ctx context.Context, tenantID string, professionalID uuid.UUID, day time.Weekday) (*Rule, error)
}

// BlockSource supplies date-range exceptions touching a date interval.
type BlockSource interface {
	ListBlocksIntersecting(ctx context.Context, tenantID string, professionalID uuid.UUID, fromDate, toDate time.Time) ([]Block, error)
}

// AppointmentSource counts booked intervals overlapping a window. The
// exclude parameter removes one appointment from the scan so reschedules do
// not conflict with themselves.
type AppointmentSource interface {
	CountOverlapping(ctx context.Context, tenantID string, professionalID uuid.UUID, start, end time.Time, exclude *uuid.UUID) (int, error)
}

// Reason explains why a window is not bookable.
type Reason string

const (
	ReasonAvailable    Reason = ""
	ReasonNoRule       Reason = "no availability rule for that day"
	ReasonOutsideHours Reason = "outside the professional's working hours"
	ReasonBlocked      Reason = "professional is blocked for that date"
	ReasonBooked       Reason = "window overlaps an existing appointment"
)

// Engine composes rules, blocks and existing appointments into availability
// decisions. It never writes and is safe for concurrent use.
type Engine struct {
	rules        RuleSource
	blocks       BlockSource
	appointments AppointmentSource
	loc          *time.Location
	logger       *logging.Logger
}

// NewEngine creates an availability engine. Times-of-day are interpreted in
// loc, the tenant's configured zone; nil defaults to UTC.
func NewEngine(rules RuleSource, blocks BlockSource, appointments AppointmentSource, loc *time.Location, logger *logging.Logger) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{rules: rules, blocks: blocks, appointments: appointments, loc: loc, logger: logger}
}

// CheckRequest describes one availability query.
type CheckRequest struct {
	TenantID        string
	ProfessionalID  uuid.UUID
	Start           time.Time
	DurationMinutes int

	// ExcludeAppointmentID removes the appointment being rescheduled from
	// the overlap scan.
	ExcludeAppointmentID *uuid.UUID
}

// Check evaluates a window and reports why it is unavailable, or
// ReasonAvailable when every check passes.
func (e *Engine) Check(ctx context.Context, req CheckRequest) (Reason, error) {
	end := req.Start.Add(time.Duration(req.DurationMinutes) * time.Minute)
	local := req.Start.In(e.loc)

	rule, err := e.rules.ActiveRule(ctx, req.TenantID, req.ProfessionalID, local.Weekday())
	if err != nil {
		return "", fmt.Errorf("availability: check rule: %w", err)
	}
	if rule == nil {
		return ReasonNoRule, nil
	}

	ruleStart, ruleEnd, err := rule.Window()
	if err != nil {
		return "", err
	}
	startMin := local.Hour()*60 + local.Minute()
	endMin := startMin + req.DurationMinutes
	// The appointment must fit entirely inside the working window; ending
	// past rule end is rejected even when the start is inside it.
	if startMin < ruleStart || endMin > ruleEnd {
		return ReasonOutsideHours, nil
	}

	lastLocal := end.Add(-time.Nanosecond).In(e.loc)
	blocks, err := e.blocks.ListBlocksIntersecting(ctx, req.TenantID, req.ProfessionalID, dateOf(local), dateOf(lastLocal))
	if err != nil {
		return "", fmt.Errorf("availability: check blocks: %w", err)
	}
	if len(blocks) > 0 {
		return ReasonBlocked, nil
	}

	overlapping, err := e.appointments.CountOverlapping(ctx, req.TenantID, req.ProfessionalID, req.Start, end, req.ExcludeAppointmentID)
	if err != nil {
		return "", fmt.Errorf("availability: check overlap: %w", err)
	}
	if overlapping > 0 {
		return ReasonBooked, nil
	}

	return ReasonAvailable, nil
}

// IsAvailable reports whether the window passes every availability check.
func (e *Engine) IsAvailable(ctx context.Context, req CheckRequest) (bool, error) {
	reason, err := e.Check(ctx, req)
	if err != nil {
		return false, err
	}
	return reason == ReasonAvailable, nil
}

// SlotsRequest describes a slot-listing query for one calendar day. Only
// Date's year, month and day are read; the engine anchors them in its own
// zone, so a UTC-parsed "2006-01-02" asks for that calendar day as the
// tenant sees it.
type SlotsRequest struct {
	TenantID        string
	ProfessionalID  uuid.UUID
	Date            time.Time
	DurationMinutes int
	StepMinutes     int
}

// DefaultStepMinutes is the slot grid width when the caller does not choose one.
const DefaultStepMinutes = 30

// ListSlots produces fixed-step candidate slots across the rule's working
// window, each evaluated independently. Slot ends never pass the rule's end
// time. Days without an active rule yield no slots.
func (e *Engine) ListSlots(ctx context.Context, req SlotsRequest) ([]Slot, error) {
	step := req.StepMinutes
	if step <= 0 {
		step = DefaultStepMinutes
	}
	year, month, day := req.Date.Date()
	local := time.Date(year, month, day, 0, 0, 0, 0, e.loc)

	rule, err := e.rules.ActiveRule(ctx, req.TenantID, req.ProfessionalID, local.Weekday())
	if err != nil {
		return nil, fmt.Errorf("availability: list slots: %w", err)
	}
	if rule == nil {
		return nil, nil
	}
	ruleStart, ruleEnd, err := rule.Window()
	if err != nil {
		return nil, err
	}

	var slots []Slot
	for m := ruleStart; m+req.DurationMinutes <= ruleEnd; m += step {
		start := time.Date(local.Year(), local.Month(), local.Day(), m/60, m%60, 0, 0, e.loc)
		reason, err := e.Check(ctx, CheckRequest{
			TenantID:        req.TenantID,
			ProfessionalID:  req.ProfessionalID,
			Start:           start,
			DurationMinutes: req.DurationMinutes,
		})
		if err != nil {
			return nil, err
		}
		slots = append(slots, Slot{
			Start:     start,
			End:       start.Add(time.Duration(req.DurationMinutes) * time.Minute),
			Available: reason == ReasonAvailable,
		})
	}
	return slots, nil
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
