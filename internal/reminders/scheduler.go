package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vitalhub/scheduling-platform/pkg/logging"
)

// offsets are the fixed intervals before an appointment at which reminders
// fire, keyed by reminder type.
var offsets = []struct {
	Type   Type
	Before time.Duration
}{
	{Type24hBefore, 24 * time.Hour},
	{Type1hBefore, time.Hour},
}

// Scheduler derives fixed-offset reminders from confirmed appointments.
type Scheduler struct {
	store  *Store
	logger *logging.Logger
}

// NewScheduler creates a reminder scheduler.
func NewScheduler(store *Store, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{store: store, logger: logger}
}

// ScheduleFor creates one pending reminder per fixed offset for an
// appointment starting at scheduledAt. Offsets already in the past are
// still created; the dispatch worker skips stale rows.
func (s *Scheduler) ScheduleFor(ctx context.Context, tenantID string, appointmentID uuid.UUID, scheduledAt time.Time) ([]Reminder, error) {
	created := make([]Reminder, 0, len(offsets))
	for _, o := range offsets {
		r := &Reminder{
			TenantID:      tenantID,
			AppointmentID: appointmentID,
			Type:          o.Type,
			ScheduledFor:  scheduledAt.Add(-o.Before),
			Status:        StatusPending,
		}
		if err := s.store.Create(ctx, r); err != nil {
			return created, fmt.Errorf("reminders: schedule %s: %w", o.Type, err)
		}
		created = append(created, *r)
	}

	s.logger.Info("reminders scheduled",
		"tenant_id", tenantID,
		"appointment_id", appointmentID,
		"count", len(created),
	)
	return created, nil
}

// RescheduleFor cancels an appointment's pending reminders and derives a
// fresh set from the new start time. Used when an appointment moves.
func (s *Scheduler) RescheduleFor(ctx context.Context, tenantID string, appointmentID uuid.UUID, scheduledAt time.Time) ([]Reminder, error) {
	if _, err := s.store.CancelPending(ctx, tenantID, appointmentID); err != nil {
		return nil, err
	}
	return s.ScheduleFor(ctx, tenantID, appointmentID, scheduledAt)
}

// CancelFor cancels every pending reminder of an appointment.
func (s *Scheduler) CancelFor(ctx context.Context, tenantID string, appointmentID uuid.UUID) error {
	cancelled, err := s.store.CancelPending(ctx, tenantID, appointmentID)
	if err != nil {
		return err
	}
	s.logger.Info("reminders cancelled",
		"tenant_id", tenantID,
		"appointment_id", appointmentID,
		"count", cancelled,
	)
	return nil
}
