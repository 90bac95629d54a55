package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides persistence for appointment reminders.
type Store struct {
	db DB
}

// NewStore creates a reminder store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Create inserts a reminder row.
func (s *Store) Create(ctx context.Context, r *Reminder) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	if r.Status == "" {
		r.Status = StatusPending
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO reminders (id, tenant_id, appointment_id, type, scheduled_for, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.TenantID, r.AppointmentID, string(r.Type), r.ScheduledFor, string(r.Status), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("reminders: create: %w", err)
	}
	return nil
}

// ListByAppointment returns all reminders for an appointment.
func (s *Store) ListByAppointment(ctx context.Context, tenantID string, appointmentID uuid.UUID) ([]Reminder, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, tenant_id, appointment_id, type, scheduled_for, status, created_at, updated_at
		FROM reminders
		WHERE tenant_id = $1 AND appointment_id = $2
		ORDER BY scheduled_for ASC`, tenantID, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("reminders: list by appointment: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// CancelPending transitions every pending reminder of an appointment to
// cancelled. Sent reminders are left untouched. Returns how many rows
// changed.
func (s *Store) CancelPending(ctx context.Context, tenantID string, appointmentID uuid.UUID) (int64, error) {
	now := time.Now().UTC()
	tag, err := s.db.Exec(ctx, `
		UPDATE reminders SET status = 'cancelled', updated_at = $1
		WHERE tenant_id = $2 AND appointment_id = $3 AND status = 'pending'`,
		now, tenantID, appointmentID)
	if err != nil {
		return 0, fmt.Errorf("reminders: cancel pending: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanReminders(rows pgx.Rows) ([]Reminder, error) {
	var result []Reminder
	for rows.Next() {
		var r Reminder
		var typ, status string
		err := rows.Scan(&r.ID, &r.TenantID, &r.AppointmentID, &typ, &r.ScheduledFor, &status, &r.CreatedAt, &r.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("reminders: scan: %w", err)
		}
		r.Type = Type(typ)
		r.Status = Status(status)
		result = append(result, r)
	}
	return result, rows.Err()
}
