package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/viczenith/estatecore/internal/domain"
)

// SequenceStore implements domain.SequenceStore on SQLite. The increment
// is a single upsert statement, so the read-increment-write that would
// race as three steps executes as one atomic unit inside SQLite's write
// lock, the equivalent of a row-level SELECT ... FOR UPDATE.
type SequenceStore struct {
	db *sql.DB
}

// Compile-time check: SequenceStore implements domain.SequenceStore.
var _ domain.SequenceStore = (*SequenceStore)(nil)

// NewSequenceStore wraps an existing database connection. The schema is
// created by the repository migrations.
func NewSequenceStore(db *sql.DB) *SequenceStore {
	return &SequenceStore{db: db}
}

func (s *SequenceStore) Next(ctx context.Context, tenantID, key string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO sequence_counters (tenant_id, key, last_value)
		 VALUES (?, ?, 1)
		 ON CONFLICT (tenant_id, key)
		 DO UPDATE SET last_value = last_value + 1
		 RETURNING last_value`,
		tenantID, key,
	).Scan(&value)
	if err != nil {
		if isBusy(err) {
			return 0, fmt.Errorf("%w: %v", domain.ErrSequenceConflict, err)
		}
		return 0, fmt.Errorf("incrementing sequence: %w", err)
	}
	return value, nil
}

func (s *SequenceStore) Current(ctx context.Context, tenantID, key string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(
			(SELECT last_value FROM sequence_counters WHERE tenant_id = ? AND key = ?),
			0)`,
		tenantID, key,
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("reading sequence: %w", err)
	}
	return value, nil
}

func (s *SequenceStore) Seed(ctx context.Context, tenantID, key string, value int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sequence_counters (tenant_id, key, last_value)
		 VALUES (?, ?, ?)
		 ON CONFLICT (tenant_id, key)
		 DO UPDATE SET last_value = MAX(last_value, excluded.last_value)`,
		tenantID, key, value,
	)
	if err != nil {
		if isBusy(err) {
			return fmt.Errorf("%w: %v", domain.ErrSequenceConflict, err)
		}
		return fmt.Errorf("seeding sequence: %w", err)
	}
	return nil
}

// isBusy checks for SQLite lock contention, which is transient and
// resolved by the allocator's retry loop.
func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
