// Package notify persists in-app notifications and fans out email copies.
// Channel delivery beyond email (push, WhatsApp) is a downstream concern.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vitalhub/scheduling-platform/pkg/logging"
)

// Notification is an in-app message addressed to one user within a tenant.
type Notification struct {
	ID        uuid.UUID       `json:"id"`
	TenantID  string          `json:"tenant_id"`
	UserID    string          `json:"user_id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	ReadAt    *time.Time      `json:"read_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists notification rows.
type Store struct {
	db DB
}

// NewStore creates a notification store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Create inserts a notification row.
func (s *Store) Create(ctx context.Context, n *Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = time.Now().UTC()

	_, err := s.db.Exec(ctx, `
		INSERT INTO notifications (id, tenant_id, user_id, type, title, message, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.TenantID, n.UserID, n.Type, n.Title, n.Message, nullableJSON(n.Data), n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("notify: create notification: %w", err)
	}
	return nil
}

// ListByUser returns a user's notifications, newest first.
func (s *Store) ListByUser(ctx context.Context, tenantID, userID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, tenant_id, user_id, type, title, message, data, read_at, created_at
		FROM notifications
		WHERE tenant_id = $1 AND user_id = $2
		ORDER BY created_at DESC LIMIT $3`, tenantID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("notify: list notifications: %w", err)
	}
	defer rows.Close()

	var result []Notification
	for rows.Next() {
		var n Notification
		var data []byte
		if err := rows.Scan(&n.ID, &n.TenantID, &n.UserID, &n.Type, &n.Title, &n.Message, &data, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("notify: scan notification: %w", err)
		}
		n.Data = data
		result = append(result, n)
	}
	return result, rows.Err()
}

// MarkRead stamps a notification as read.
func (s *Store) MarkRead(ctx context.Context, tenantID string, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE notifications SET read_at = $1
		WHERE id = $2 AND tenant_id = $3 AND read_at IS NULL`,
		time.Now().UTC(), id, tenantID)
	if err != nil {
		return fmt.Errorf("notify: mark read: %w", err)
	}
	return nil
}

// Input carries the fields for creating a notification.
type Input struct {
	TenantID string
	UserID   string
	Type     string
	Title    string
	Message  string
	Data     any

	// Email is the recipient address for the optional email copy; empty
	// skips email fan-out.
	Email string
}

// Service creates notification records and fans out an email copy when a
// sender is configured.
type Service struct {
	store  *Store
	email  EmailSender
	logger *logging.Logger
}

// NewService constructs a notification service.
func NewService(store *Store, email EmailSender, logger *logging.Logger) *Service {
	if store == nil {
		panic("notify: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, email: email, logger: logger}
}

// Create persists the notification and sends the email copy. Email failure
// is logged, never propagated: the notification row is the source of truth.
func (s *Service) Create(ctx context.Context, input Input) (*Notification, error) {
	var data json.RawMessage
	if input.Data != nil {
		encoded, err := json.Marshal(input.Data)
		if err != nil {
			return nil, fmt.Errorf("notify: marshal data: %w", err)
		}
		data = encoded
	}

	n := &Notification{
		TenantID: input.TenantID,
		UserID:   input.UserID,
		Type:     input.Type,
		Title:    input.Title,
		Message:  input.Message,
		Data:     data,
	}
	if err := s.store.Create(ctx, n); err != nil {
		return nil, err
	}

	if s.email != nil && input.Email != "" {
		err := s.email.Send(ctx, EmailMessage{
			To:      input.Email,
			Subject: input.Title,
			Body:    input.Message,
		})
		if err != nil {
			s.logger.Error("notify: email fan-out failed", "error", err, "notification_id", n.ID)
		}
	}

	return n, nil
}

func nullableJSON(m json.RawMessage) any {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}
