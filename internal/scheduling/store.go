package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// exclusionViolation is the SQLSTATE raised when an insert or update loses
// the race against the appointments overlap constraint.
const exclusionViolation = "23P01"

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides persistence for appointments. Every query is tenant-scoped;
// cross-tenant reads are structurally impossible.
type Store struct {
	db DB
}

// NewStore creates an appointment store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const appointmentColumns = `id, tenant_id, professional_id, client_id, type, title, scheduled_at, duration_minutes, status, location, is_virtual, cancellation_reason, cancelled_at, external_calendar_event_id, external_calendar_synced, created_at, updated_at`

// Create inserts a new appointment. The database exclusion constraint on
// overlapping intervals per professional makes the availability check and
// the insert effectively atomic; losing that race returns ConflictError.
func (s *Store) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = StatusScheduled
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO appointments (id, tenant_id, professional_id, client_id, type, title, scheduled_at, duration_minutes, status, location, is_virtual, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.ID, a.TenantID, a.ProfessionalID, a.ClientID, string(a.Type), a.Title,
		a.ScheduledAt, a.DurationMinutes, string(a.Status), a.Location, a.IsVirtual,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isExclusionViolation(err) {
			return &ConflictError{ProfessionalID: a.ProfessionalID, Start: a.ScheduledAt, End: a.EndsAt(), Reason: "window overlaps an existing appointment"}
		}
		return fmt.Errorf("scheduling: create appointment: %w", err)
	}
	return nil
}

// GetByID loads an appointment scoped to the tenant.
func (s *Store) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return nil, fmt.Errorf("scheduling: get appointment: %w", err)
	}
	defer rows.Close()
	appts, err := scanAppointments(rows)
	if err != nil {
		return nil, err
	}
	if len(appts) == 0 {
		return nil, &NotFoundError{Entity: "appointment", ID: id.String()}
	}
	return &appts[0], nil
}

// Update persists the full appointment row, tenant-scoped. Moving the window
// re-fires the overlap constraint, which maps to ConflictError.
func (s *Store) Update(ctx context.Context, a *Appointment) error {
	a.UpdatedAt = time.Now().UTC()
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments
		SET type = $1, title = $2, scheduled_at = $3, duration_minutes = $4, status = $5,
		    location = $6, is_virtual = $7, cancellation_reason = $8, cancelled_at = $9,
		    external_calendar_event_id = $10, external_calendar_synced = $11, updated_at = $12
		WHERE id = $13 AND tenant_id = $14`,
		string(a.Type), a.Title, a.ScheduledAt, a.DurationMinutes, string(a.Status),
		a.Location, a.IsVirtual, a.CancellationReason, a.CancelledAt,
		a.ExternalCalendarEventID, a.ExternalCalendarSynced, a.UpdatedAt,
		a.ID, a.TenantID,
	)
	if err != nil {
		if isExclusionViolation(err) {
			return &ConflictError{ProfessionalID: a.ProfessionalID, Start: a.ScheduledAt, End: a.EndsAt(), Reason: "window overlaps an existing appointment"}
		}
		return fmt.Errorf("scheduling: update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Entity: "appointment", ID: a.ID.String()}
	}
	return nil
}

// List returns appointments matching the filter, newest first.
func (s *Store) List(ctx context.Context, tenantID string, f Filter) ([]Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE tenant_id = $1`
	args := []any{tenantID}
	argIdx := 2

	if f.ProfessionalID != nil {
		query += fmt.Sprintf(" AND professional_id = $%d", argIdx)
		args = append(args, *f.ProfessionalID)
		argIdx++
	}
	if f.ClientID != nil {
		query += fmt.Sprintf(" AND client_id = $%d", argIdx)
		args = append(args, *f.ClientID)
		argIdx++
	}
	if f.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(*f.Status))
		argIdx++
	}
	if f.Type != nil {
		query += fmt.Sprintf(" AND type = $%d", argIdx)
		args = append(args, string(*f.Type))
		argIdx++
	}
	if f.From != nil {
		query += fmt.Sprintf(" AND scheduled_at >= $%d", argIdx)
		args = append(args, *f.From)
		argIdx++
	}
	if f.To != nil {
		query += fmt.Sprintf(" AND scheduled_at < $%d", argIdx)
		args = append(args, *f.To)
		argIdx++
	}

	query += " ORDER BY scheduled_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", f.Offset)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list appointments: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// CountOverlapping counts booked intervals intersecting [start, end) for a
// professional, using the half-open overlap test. Only scheduled and
// completed appointments block a window. The exclude parameter removes the
// appointment being rescheduled from the scan.
func (s *Store) CountOverlapping(ctx context.Context, tenantID string, professionalID uuid.UUID, start, end time.Time, exclude *uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM appointments
		WHERE tenant_id = $1 AND professional_id = $2
		  AND status IN ('scheduled', 'completed')
		  AND scheduled_at < $3
		  AND scheduled_at + make_interval(mins => duration_minutes) > $4`
	args := []any{tenantID, professionalID, end, start}
	if exclude != nil {
		query += " AND id <> $5"
		args = append(args, *exclude)
	}

	var count int
	if err := s.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("scheduling: count overlapping: %w", err)
	}
	return count, nil
}

// SetCalendarSync records the outcome of an external calendar sync attempt
// without touching the rest of the row.
func (s *Store) SetCalendarSync(ctx context.Context, tenantID string, id uuid.UUID, eventID string, synced bool) error {
	_, err := s.db.Exec(ctx, `
		UPDATE appointments
		SET external_calendar_event_id = $1, external_calendar_synced = $2, updated_at = $3
		WHERE id = $4 AND tenant_id = $5`,
		eventID, synced, time.Now().UTC(), id, tenantID,
	)
	if err != nil {
		return fmt.Errorf("scheduling: set calendar sync: %w", err)
	}
	return nil
}

// Stats aggregates appointment outcomes, optionally restricted to one
// professional and a scheduled_at range.
func (s *Store) Stats(ctx context.Context, tenantID string, professionalID *uuid.UUID, from, to *time.Time) (*Stats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'scheduled') AS scheduled,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed,
			COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled,
			COUNT(*) FILTER (WHERE status = 'no_show') AS no_show
		FROM appointments
		WHERE tenant_id = $1`
	args := []any{tenantID}
	argIdx := 2

	if professionalID != nil {
		query += fmt.Sprintf(" AND professional_id = $%d", argIdx)
		args = append(args, *professionalID)
		argIdx++
	}
	if from != nil {
		query += fmt.Sprintf(" AND scheduled_at >= $%d", argIdx)
		args = append(args, *from)
		argIdx++
	}
	if to != nil {
		query += fmt.Sprintf(" AND scheduled_at < $%d", argIdx)
		args = append(args, *to)
		argIdx++
	}

	stats := &Stats{TenantID: tenantID}
	err := s.db.QueryRow(ctx, query, args...).Scan(&stats.Total, &stats.Scheduled, &stats.Completed, &stats.Cancelled, &stats.NoShow)
	if err != nil {
		return nil, fmt.Errorf("scheduling: stats: %w", err)
	}
	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(stats.Total)
		stats.CancelRate = float64(stats.Cancelled) / float64(stats.Total)
		stats.NoShowRate = float64(stats.NoShow) / float64(stats.Total)
	}
	return stats, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		var a Appointment
		var typ, status string
		err := rows.Scan(
			&a.ID, &a.TenantID, &a.ProfessionalID, &a.ClientID, &typ, &a.Title,
			&a.ScheduledAt, &a.DurationMinutes, &status, &a.Location, &a.IsVirtual,
			&a.CancellationReason, &a.CancelledAt,
			&a.ExternalCalendarEventID, &a.ExternalCalendarSynced,
			&a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scheduling: scan appointment: %w", err)
		}
		a.Type = AppointmentType(typ)
		a.Status = Status(status)
		result = append(result, a)
	}
	return result, rows.Err()
}

func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == exclusionViolation
}
