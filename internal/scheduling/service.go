package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vitalhub/scheduling-platform/internal/audit"
	"github.com/vitalhub/scheduling-platform/internal/availability"
	"github.com/vitalhub/scheduling-platform/internal/calendar"
	"github.com/vitalhub/scheduling-platform/internal/notify"
	"github.com/vitalhub/scheduling-platform/internal/observability/metrics"
	"github.com/vitalhub/scheduling-platform/internal/reminders"
	"github.com/vitalhub/scheduling-platform/internal/tenancy"
	"github.com/vitalhub/scheduling-platform/pkg/logging"
)

var tracer = otel.Tracer("vitalhub.internal.scheduling")

// AppointmentStore is the persistence surface the service needs.
type AppointmentStore interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	List(ctx context.Context, tenantID string, f Filter) ([]Appointment, error)
	Stats(ctx context.Context, tenantID string, professionalID *uuid.UUID, from, to *time.Time) (*Stats, error)
	SetCalendarSync(ctx context.Context, tenantID string, id uuid.UUID, eventID string, synced bool) error
}

// AvailabilityChecker answers whether a window is bookable and enumerates
// candidate slots.
type AvailabilityChecker interface {
	Check(ctx context.Context, req availability.CheckRequest) (availability.Reason, error)
	ListSlots(ctx context.Context, req availability.SlotsRequest) ([]availability.Slot, error)
}

// ReminderScheduler manages the fixed-offset reminders tied to an appointment.
type ReminderScheduler interface {
	ScheduleFor(ctx context.Context, tenantID string, appointmentID uuid.UUID, scheduledAt time.Time) ([]reminders.Reminder, error)
	RescheduleFor(ctx context.Context, tenantID string, appointmentID uuid.UUID, scheduledAt time.Time) ([]reminders.Reminder, error)
	CancelFor(ctx context.Context, tenantID string, appointmentID uuid.UUID) error
}

// CalendarSync mirrors appointments into an external calendar.
type CalendarSync interface {
	Enabled() bool
	Push(ctx context.Context, eventID string, ev calendar.Event) (string, error)
	Remove(ctx context.Context, eventID string) error
}

// Auditor records mutation trail entries.
type Auditor interface {
	LogChange(ctx context.Context, tenantID, userID string, action audit.Action, entityID string, snap audit.Snapshot) error
}

// Notifier persists in-app notifications and fans out channel copies.
type Notifier interface {
	Create(ctx context.Context, input notify.Input) (*notify.Notification, error)
}

// Service orchestrates appointment booking: validation, availability,
// persistence, and the fan-out side effects. Side effects never fail the
// booking; they run detached from the request.
type Service struct {
	store     AppointmentStore
	checker   AvailabilityChecker
	reminders ReminderScheduler
	calendar  CalendarSync
	auditor   Auditor
	notifier  Notifier
	metrics   *metrics.SchedulingMetrics
	logger    *logging.Logger

	// async runs side-effect fan-out. Defaults to a plain goroutine;
	// tests replace it with a synchronous runner.
	async func(fn func())
}

// ServiceConfig wires the service's collaborators. Store and Checker are
// required; everything else degrades gracefully when absent.
type ServiceConfig struct {
	Store     AppointmentStore
	Checker   AvailabilityChecker
	Reminders ReminderScheduler
	Calendar  CalendarSync
	Auditor   Auditor
	Notifier  Notifier
	Metrics   *metrics.SchedulingMetrics
	Logger    *logging.Logger
}

// NewService constructs the scheduling service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Store == nil {
		panic("scheduling: store required")
	}
	if cfg.Checker == nil {
		panic("scheduling: availability checker required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:     cfg.Store,
		checker:   cfg.Checker,
		reminders: cfg.Reminders,
		calendar:  cfg.Calendar,
		auditor:   cfg.Auditor,
		notifier:  cfg.Notifier,
		metrics:   cfg.Metrics,
		logger:    logger,
		async:     func(fn func()) { go fn() },
	}
}

// Create books a new appointment. The availability check and the insert are
// made effectively atomic by the database overlap constraint: losing the
// race between them still surfaces as ConflictError, never a double booking.
func (s *Service) Create(ctx context.Context, identity tenancy.Identity, input CreateInput) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "scheduling.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("vitalhub.tenant_id", identity.TenantID),
		attribute.String("vitalhub.professional_id", input.ProfessionalID.String()),
	)

	if err := validateCreate(input); err != nil {
		return nil, err
	}

	reason, err := s.checker.Check(ctx, availability.CheckRequest{
		TenantID:        identity.TenantID,
		ProfessionalID:  input.ProfessionalID,
		Start:           input.ScheduledAt,
		DurationMinutes: input.DurationMinutes,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if reason != availability.ReasonAvailable {
		s.metrics.ObserveConflict()
		return nil, &ConflictError{
			ProfessionalID: input.ProfessionalID,
			Start:          input.ScheduledAt,
			End:            input.ScheduledAt.Add(time.Duration(input.DurationMinutes) * time.Minute),
			Reason:         string(reason),
		}
	}

	appt := &Appointment{
		TenantID:        identity.TenantID,
		ProfessionalID:  input.ProfessionalID,
		ClientID:        input.ClientID,
		Type:            input.Type,
		Title:           input.Title,
		ScheduledAt:     input.ScheduledAt.UTC(),
		DurationMinutes: input.DurationMinutes,
		Status:          StatusScheduled,
		Location:        input.Location,
		IsVirtual:       input.IsVirtual,
	}
	if err := s.store.Create(ctx, appt); err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			s.metrics.ObserveConflict()
		} else {
			span.RecordError(err)
		}
		return nil, err
	}

	s.metrics.ObserveBooking(string(appt.Type))
	s.logger.Info("appointment created",
		"tenant_id", appt.TenantID,
		"appointment_id", appt.ID,
		"professional_id", appt.ProfessionalID,
		"scheduled_at", appt.ScheduledAt,
	)

	s.fanOut(ctx, func(ctx context.Context) {
		s.afterCreate(ctx, identity, appt)
	})
	return appt, nil
}

// Update applies a sparse patch. Moving the window re-checks availability
// with the appointment itself excluded from the overlap scan, so a
// reschedule never conflicts with its own current slot.
func (s *Service) Update(ctx context.Context, identity tenancy.Identity, id uuid.UUID, patch UpdateInput) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "scheduling.update")
	defer span.End()
	span.SetAttributes(
		attribute.String("vitalhub.tenant_id", identity.TenantID),
		attribute.String("vitalhub.appointment_id", id.String()),
	)

	current, err := s.store.GetByID(ctx, identity.TenantID, id)
	if err != nil {
		return nil, err
	}
	before := *current

	updated := *current
	if err := applyPatch(&updated, patch); err != nil {
		return nil, err
	}

	if updated.Status != before.Status {
		// Cancellation carries its own side effects (reminder cleanup,
		// calendar removal, cancelledAt); it only happens through Cancel.
		if updated.Status == StatusCancelled {
			return nil, invalidField("status", "use the cancel operation to cancel an appointment")
		}
		if !before.Status.CanTransitionTo(updated.Status) {
			return nil, invalidField("status", fmt.Sprintf("cannot transition from %s to %s", before.Status, updated.Status))
		}
	}

	rescheduled := !updated.ScheduledAt.Equal(before.ScheduledAt) || updated.DurationMinutes != before.DurationMinutes
	if rescheduled {
		if updated.Status != StatusScheduled {
			return nil, invalidField("scheduled_at", "only scheduled appointments can be rescheduled")
		}
		reason, err := s.checker.Check(ctx, availability.CheckRequest{
			TenantID:             identity.TenantID,
			ProfessionalID:       updated.ProfessionalID,
			Start:                updated.ScheduledAt,
			DurationMinutes:      updated.DurationMinutes,
			ExcludeAppointmentID: &updated.ID,
		})
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if reason != availability.ReasonAvailable {
			s.metrics.ObserveConflict()
			return nil, &ConflictError{
				ProfessionalID: updated.ProfessionalID,
				Start:          updated.ScheduledAt,
				End:            updated.EndsAt(),
				Reason:         string(reason),
			}
		}
	}

	if err := s.store.Update(ctx, &updated); err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			s.metrics.ObserveConflict()
		} else {
			span.RecordError(err)
		}
		return nil, err
	}

	s.logger.Info("appointment updated",
		"tenant_id", updated.TenantID,
		"appointment_id", updated.ID,
		"rescheduled", rescheduled,
	)

	s.fanOut(ctx, func(ctx context.Context) {
		s.afterUpdate(ctx, identity, &before, &updated, rescheduled)
	})
	return &updated, nil
}

// Cancel marks the appointment cancelled with a reason. Rows are never
// deleted. Cancelling an already cancelled appointment is a no-op.
func (s *Service) Cancel(ctx context.Context, identity tenancy.Identity, id uuid.UUID, reason string) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "scheduling.cancel")
	defer span.End()
	span.SetAttributes(
		attribute.String("vitalhub.tenant_id", identity.TenantID),
		attribute.String("vitalhub.appointment_id", id.String()),
	)

	current, err := s.store.GetByID(ctx, identity.TenantID, id)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusCancelled {
		return current, nil
	}
	if !current.Status.CanTransitionTo(StatusCancelled) {
		return nil, invalidField("status", fmt.Sprintf("cannot cancel a %s appointment", current.Status))
	}
	before := *current

	now := time.Now().UTC()
	current.Status = StatusCancelled
	current.CancellationReason = reason
	current.CancelledAt = &now
	if err := s.store.Update(ctx, current); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveCancellation()
	s.logger.Info("appointment cancelled",
		"tenant_id", current.TenantID,
		"appointment_id", current.ID,
		"reason", reason,
	)

	cancelled := *current
	s.fanOut(ctx, func(ctx context.Context) {
		s.afterCancel(ctx, identity, &before, &cancelled)
	})
	return current, nil
}

// Get loads one appointment scoped to the identity's tenant.
func (s *Service) Get(ctx context.Context, identity tenancy.Identity, id uuid.UUID) (*Appointment, error) {
	return s.store.GetByID(ctx, identity.TenantID, id)
}

// List returns appointments matching the filter within the tenant.
func (s *Service) List(ctx context.Context, identity tenancy.Identity, f Filter) ([]Appointment, error) {
	return s.store.List(ctx, identity.TenantID, f)
}

// ListSlots enumerates bookable slots for a professional's day.
func (s *Service) ListSlots(ctx context.Context, identity tenancy.Identity, req availability.SlotsRequest) ([]availability.Slot, error) {
	ctx, span := tracer.Start(ctx, "scheduling.list_slots")
	defer span.End()

	if req.DurationMinutes < MinDurationMinutes || req.DurationMinutes > MaxDurationMinutes {
		return nil, invalidField("duration_minutes", fmt.Sprintf("must be between %d and %d", MinDurationMinutes, MaxDurationMinutes))
	}
	req.TenantID = identity.TenantID

	started := time.Now()
	slots, err := s.checker.ListSlots(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.metrics.ObserveSlotQueryLatency(time.Since(started).Seconds())
	return slots, nil
}

// GetStats aggregates appointment outcomes for the tenant.
func (s *Service) GetStats(ctx context.Context, identity tenancy.Identity, professionalID *uuid.UUID, from, to *time.Time) (*Stats, error) {
	return s.store.Stats(ctx, identity.TenantID, professionalID, from, to)
}

// fanOut runs fn detached from the request lifecycle. The context loses its
// cancellation but keeps trace and identity values.
func (s *Service) fanOut(ctx context.Context, fn func(ctx context.Context)) {
	detached := context.WithoutCancel(ctx)
	s.async(func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("side effect panicked", "panic", r)
			}
		}()
		fn(detached)
	})
}

func (s *Service) afterCreate(ctx context.Context, identity tenancy.Identity, appt *Appointment) {
	if s.reminders != nil {
		if _, err := s.reminders.ScheduleFor(ctx, appt.TenantID, appt.ID, appt.ScheduledAt); err != nil {
			s.logger.Error("schedule reminders failed", "appointment_id", appt.ID, "error", err)
		}
	}
	if s.auditor != nil {
		if err := s.auditor.LogChange(ctx, appt.TenantID, identity.UserID, audit.ActionCreate, appt.ID.String(), audit.Snapshot{After: appt}); err != nil {
			s.logger.Error("audit log failed", "appointment_id", appt.ID, "error", err)
		}
	}
	s.notifyProfessional(ctx, appt, "appointment_created", "New appointment booked",
		fmt.Sprintf("%s on %s", appt.Title, appt.ScheduledAt.Format(time.RFC1123)))
	s.syncCalendar(ctx, appt)
}

func (s *Service) afterUpdate(ctx context.Context, identity tenancy.Identity, before, after *Appointment, rescheduled bool) {
	if rescheduled && s.reminders != nil {
		if _, err := s.reminders.RescheduleFor(ctx, after.TenantID, after.ID, after.ScheduledAt); err != nil {
			s.logger.Error("reschedule reminders failed", "appointment_id", after.ID, "error", err)
		}
	}
	if s.auditor != nil {
		if err := s.auditor.LogChange(ctx, after.TenantID, identity.UserID, audit.ActionUpdate, after.ID.String(), audit.Snapshot{Before: before, After: after}); err != nil {
			s.logger.Error("audit log failed", "appointment_id", after.ID, "error", err)
		}
	}
	s.notifyProfessional(ctx, after, "appointment_updated", "Appointment updated",
		fmt.Sprintf("%s now at %s", after.Title, after.ScheduledAt.Format(time.RFC1123)))
	if rescheduled {
		s.syncCalendar(ctx, after)
	}
}

func (s *Service) afterCancel(ctx context.Context, identity tenancy.Identity, before, after *Appointment) {
	if s.reminders != nil {
		if err := s.reminders.CancelFor(ctx, after.TenantID, after.ID); err != nil {
			s.logger.Error("cancel reminders failed", "appointment_id", after.ID, "error", err)
		}
	}
	if s.auditor != nil {
		if err := s.auditor.LogChange(ctx, after.TenantID, identity.UserID, audit.ActionUpdate, after.ID.String(), audit.Snapshot{Before: before, After: after}); err != nil {
			s.logger.Error("audit log failed", "appointment_id", after.ID, "error", err)
		}
	}
	s.notifyProfessional(ctx, after, "appointment_cancelled", "Appointment cancelled",
		fmt.Sprintf("%s at %s was cancelled", after.Title, after.ScheduledAt.Format(time.RFC1123)))

	if s.calendar != nil && s.calendar.Enabled() && after.ExternalCalendarEventID != "" {
		if err := s.calendar.Remove(ctx, after.ExternalCalendarEventID); err != nil {
			s.metrics.ObserveCalendarSync("failure")
			s.logger.Error("calendar event removal failed", "appointment_id", after.ID,
				"error", &DependencyError{Subsystem: "calendar", Err: err})
			return
		}
		s.metrics.ObserveCalendarSync("success")
		if err := s.store.SetCalendarSync(ctx, after.TenantID, after.ID, "", false); err != nil {
			s.logger.Error("record calendar sync failed", "appointment_id", after.ID, "error", err)
		}
	}
}

// syncCalendar mirrors the appointment and records the outcome on the row.
// A failed sync only flips external_calendar_synced; the booking stands.
func (s *Service) syncCalendar(ctx context.Context, appt *Appointment) {
	if s.calendar == nil || !s.calendar.Enabled() {
		return
	}
	eventID, err := s.calendar.Push(ctx, appt.ExternalCalendarEventID, calendar.Event{
		TenantID:       appt.TenantID,
		ProfessionalID: appt.ProfessionalID.String(),
		Title:          appt.Title,
		Start:          appt.ScheduledAt,
		End:            appt.EndsAt(),
		Location:       appt.Location,
		Virtual:        appt.IsVirtual,
	})
	if err != nil {
		s.metrics.ObserveCalendarSync("failure")
		s.logger.Error("calendar sync failed", "appointment_id", appt.ID,
			"error", &DependencyError{Subsystem: "calendar", Err: err})
		if recordErr := s.store.SetCalendarSync(ctx, appt.TenantID, appt.ID, appt.ExternalCalendarEventID, false); recordErr != nil {
			s.logger.Error("record calendar sync failed", "appointment_id", appt.ID, "error", recordErr)
		}
		return
	}
	s.metrics.ObserveCalendarSync("success")
	if err := s.store.SetCalendarSync(ctx, appt.TenantID, appt.ID, eventID, true); err != nil {
		s.logger.Error("record calendar sync failed", "appointment_id", appt.ID, "error", err)
	}
}

func (s *Service) notifyProfessional(ctx context.Context, appt *Appointment, kind, title, message string) {
	if s.notifier == nil {
		return
	}
	_, err := s.notifier.Create(ctx, notify.Input{
		TenantID: appt.TenantID,
		UserID:   appt.ProfessionalID.String(),
		Type:     kind,
		Title:    title,
		Message:  message,
		Data:     map[string]string{"appointment_id": appt.ID.String()},
	})
	if err != nil {
		s.logger.Error("notification failed", "appointment_id", appt.ID,
			"error", &DependencyError{Subsystem: "notify", Err: err})
	}
}

func validateCreate(input CreateInput) error {
	if input.ProfessionalID == uuid.Nil {
		return invalidField("professional_id", "required")
	}
	if input.ClientID == uuid.Nil {
		return invalidField("client_id", "required")
	}
	if !ValidType(input.Type) {
		return invalidField("type", fmt.Sprintf("unknown appointment type %q", input.Type))
	}
	if input.Title == "" {
		return invalidField("title", "required")
	}
	if input.ScheduledAt.IsZero() {
		return invalidField("scheduled_at", "required")
	}
	if input.DurationMinutes < MinDurationMinutes || input.DurationMinutes > MaxDurationMinutes {
		return invalidField("duration_minutes", fmt.Sprintf("must be between %d and %d", MinDurationMinutes, MaxDurationMinutes))
	}
	return nil
}

func applyPatch(a *Appointment, patch UpdateInput) error {
	if patch.Type != nil {
		if !ValidType(*patch.Type) {
			return invalidField("type", fmt.Sprintf("unknown appointment type %q", *patch.Type))
		}
		a.Type = *patch.Type
	}
	if patch.Title != nil {
		if *patch.Title == "" {
			return invalidField("title", "required")
		}
		a.Title = *patch.Title
	}
	if patch.ScheduledAt != nil {
		a.ScheduledAt = patch.ScheduledAt.UTC()
	}
	if patch.DurationMinutes != nil {
		if *patch.DurationMinutes < MinDurationMinutes || *patch.DurationMinutes > MaxDurationMinutes {
			return invalidField("duration_minutes", fmt.Sprintf("must be between %d and %d", MinDurationMinutes, MaxDurationMinutes))
		}
		a.DurationMinutes = *patch.DurationMinutes
	}
	if patch.Status != nil {
		if !ValidStatus(*patch.Status) {
			return invalidField("status", fmt.Sprintf("unknown status %q", *patch.Status))
		}
		a.Status = *patch.Status
	}
	if patch.Location != nil {
		a.Location = *patch.Location
	}
	if patch.IsVirtual != nil {
		a.IsVirtual = *patch.IsVirtual
	}
	return nil
}
