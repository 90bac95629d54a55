package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Invariant violations surfaced by the store.
var (
	ErrInvalidWindow    = errors.New("availability: rule start must be before end")
	ErrInvalidDateRange = errors.New("availability: block start date must not be after end date")
	ErrNotFound         = errors.New("availability: not found")
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides CRUD operations for availability rules and blocks.
type Store struct {
	db DB
}

// NewStore creates an availability store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// CreateRule inserts a weekly open-hours rule.
func (s *Store) CreateRule(ctx context.Context, r *Rule) error {
	startMin, endMin, err := r.Window()
	if err != nil {
		return err
	}
	if startMin >= endMin {
		return ErrInvalidWindow
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err = s.db.Exec(ctx, `
		INSERT INTO availability_rules (id, tenant_id, professional_id, day_of_week, start_time, end_time, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.TenantID, r.ProfessionalID, int(r.DayOfWeek), r.StartTime, r.EndTime, r.IsActive, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("availability: create rule: %w", err)
	}
	return nil
}

// UpdateRule changes a rule's window or active flag, tenant-scoped.
func (s *Store) UpdateRule(ctx context.Context, r *Rule) error {
	startMin, endMin, err := r.Window()
	if err != nil {
		return err
	}
	if startMin >= endMin {
		return ErrInvalidWindow
	}
	r.UpdatedAt = time.Now().UTC()

	tag, err := s.db.Exec(ctx, `
		UPDATE availability_rules
		SET day_of_week = $1, start_time = $2, end_time = $3, is_active = $4, updated_at = $5
		WHERE id = $6 AND tenant_id = $7`,
		int(r.DayOfWeek), r.StartTime, r.EndTime, r.IsActive, r.UpdatedAt, r.ID, r.TenantID,
	)
	if err != nil {
		return fmt.Errorf("availability: update rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRules returns all rules for a professional, active or not.
func (s *Store) ListRules(ctx context.Context, tenantID string, professionalID uuid.UUID) ([]Rule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, tenant_id, professional_id, day_of_week, start_time, end_time, is_active, created_at, updated_at
		FROM availability_rules
		WHERE tenant_id = $1 AND professional_id = $2
		ORDER BY day_of_week ASC, start_time ASC`, tenantID, professionalID)
	if err != nil {
		return nil, fmt.Errorf("availability: list rules: %w", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

// ActiveRule returns the authoritative active rule for a weekday, or nil if
// none exists. If duplicates exist the most recently updated rule wins.
func (s *Store) ActiveRule(ctx context.Context, tenantID string, professionalID uuid.UUID, day time.Weekday) (*Rule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, tenant_id, professional_id, day_of_week, start_time, end_time, is_active, created_at, updated_at
		FROM availability_rules
		WHERE tenant_id = $1 AND professional_id = $2 AND day_of_week = $3 AND is_active
		ORDER BY updated_at DESC
		LIMIT 1`, tenantID, professionalID, int(day))
	if err != nil {
		return nil, fmt.Errorf("availability: active rule: %w", err)
	}
	defer rows.Close()
	rules, err := scanRules(rows)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, nil
	}
	return &rules[0], nil
}

// CreateBlock inserts a date-range exception.
func (s *Store) CreateBlock(ctx context.Context, b *Block) error {
	if b.EndDate.Before(b.StartDate) {
		return ErrInvalidDateRange
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = time.Now().UTC()

	_, err := s.db.Exec(ctx, `
		INSERT INTO availability_blocks (id, tenant_id, professional_id, start_date, end_date, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.TenantID, b.ProfessionalID, b.StartDate, b.EndDate, b.Reason, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("availability: create block: %w", err)
	}
	return nil
}

// DeleteBlock removes an exception once it no longer applies.
func (s *Store) DeleteBlock(ctx context.Context, tenantID string, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM availability_blocks WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("availability: delete block: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListBlocks returns all blocks for a professional.
func (s *Store) ListBlocks(ctx context.Context, tenantID string, professionalID uuid.UUID) ([]Block, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, tenant_id, professional_id, start_date, end_date, reason, created_at
		FROM availability_blocks
		WHERE tenant_id = $1 AND professional_id = $2
		ORDER BY start_date ASC`, tenantID, professionalID)
	if err != nil {
		return nil, fmt.Errorf("availability: list blocks: %w", err)
	}
	defer rows.Close()
	return scanBlocks(rows)
}

// ListBlocksIntersecting returns blocks whose inclusive date range touches
// [fromDate, toDate].
func (s *Store) ListBlocksIntersecting(ctx context.Context, tenantID string, professionalID uuid.UUID, fromDate, toDate time.Time) ([]Block, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, tenant_id, professional_id, start_date, end_date, reason, created_at
		FROM availability_blocks
		WHERE tenant_id = $1 AND professional_id = $2
		  AND start_date <= $3 AND end_date >= $4
		ORDER BY start_date ASC`, tenantID, professionalID, toDate, fromDate)
	if err != nil {
		return nil, fmt.Errorf("availability: list intersecting blocks: %w", err)
	}
	defer rows.Close()
	return scanBlocks(rows)
}

func scanRules(rows pgx.Rows) ([]Rule, error) {
	var result []Rule
	for rows.Next() {
		var r Rule
		var day int
		err := rows.Scan(&r.ID, &r.TenantID, &r.ProfessionalID, &day, &r.StartTime, &r.EndTime, &r.IsActive, &r.CreatedAt, &r.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("availability: scan rule: %w", err)
		}
		r.DayOfWeek = time.Weekday(day)
		result = append(result, r)
	}
	return result, rows.Err()
}

func scanBlocks(rows pgx.Rows) ([]Block, error) {
	var result []Block
	for rows.Next() {
		var b Block
		err := rows.Scan(&b.ID, &b.TenantID, &b.ProfessionalID, &b.StartDate, &b.EndDate, &b.Reason, &b.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("availability: scan block: %w", err)
		}
		result = append(result, b)
	}
	return result, rows.Err()
}
