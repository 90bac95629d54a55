// Package audit records an immutable trail of scheduling mutations.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action identifies the kind of mutation being recorded.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// Entry is an immutable audit record.
type Entry struct {
	ID         string          `json:"id"`
	TenantID   string          `json:"tenant_id"`
	UserID     string          `json:"user_id"`
	Action     Action          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Changes    json.RawMessage `json:"changes,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Snapshot captures before/after state for an update entry.
type Snapshot struct {
	Before any `json:"before,omitempty"`
	After  any `json:"after,omitempty"`
}

// Service handles audit logging.
type Service struct {
	db *sql.DB
}

// NewService creates a new audit service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// LogAction records an audit entry.
func (s *Service) LogAction(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.EntityType == "" {
		entry.EntityType = "appointment"
	}

	query := `
		INSERT INTO audit_log (id, tenant_id, user_id, action, entity_type, entity_id, changes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.TenantID,
		entry.UserID,
		string(entry.Action),
		entry.EntityType,
		entry.EntityID,
		nullRawMessage(entry.Changes),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to log action: %w", err)
	}
	return nil
}

// LogChange records an entry with a marshalled before/after snapshot.
func (s *Service) LogChange(ctx context.Context, tenantID, userID string, action Action, entityID string, snap Snapshot) error {
	changes, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("audit: marshal snapshot: %w", err)
	}
	return s.LogAction(ctx, Entry{
		TenantID: tenantID,
		UserID:   userID,
		Action:   action,
		EntityID: entityID,
		Changes:  changes,
	})
}

// Filter specifies criteria for querying audit entries.
type Filter struct {
	TenantID  string
	EntityID  string
	Action    Action
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

// Query retrieves audit entries with filters, newest first.
func (s *Service) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT id, tenant_id, user_id, action, entity_type, entity_id, changes, created_at
		FROM audit_log
		WHERE tenant_id = $1
	`
	args := []interface{}{filter.TenantID}
	argIdx := 2

	if filter.EntityID != "" {
		query += fmt.Sprintf(" AND entity_id = $%d", argIdx)
		args = append(args, filter.EntityID)
		argIdx++
	}
	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argIdx)
		args = append(args, string(filter.Action))
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var action string
		var changes sql.NullString
		err := rows.Scan(&e.ID, &e.TenantID, &e.UserID, &action, &e.EntityType, &e.EntityID, &changes, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("audit: failed to scan entry: %w", err)
		}
		e.Action = Action(action)
		if changes.Valid {
			e.Changes = json.RawMessage(changes.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullRawMessage(m json.RawMessage) any {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}
