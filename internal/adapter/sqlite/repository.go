package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/viczenith/estatecore/internal/domain"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// TenantRepository implements domain.TenantRepository using SQLite.
type TenantRepository struct {
	db *sql.DB
}

// Compile-time check: TenantRepository implements domain.TenantRepository.
var _ domain.TenantRepository = (*TenantRepository)(nil)

// New opens a SQLite database, runs migrations, and returns a ready repository.
func New(dataSourceName string) (*TenantRepository, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and returns a ready repository.
// Use this when the *sql.DB has been pre-configured (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*TenantRepository, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &TenantRepository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *TenantRepository) Close() error {
	return r.db.Close()
}

// DB returns the underlying database connection for use by other adapters (e.g., river).
func (r *TenantRepository) DB() *sql.DB {
	return r.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

const timeFormat = "2006-01-02T15:04:05.000Z"

const tenantColumns = `id, name, slug, status,
	trial_ends_at, subscription_ends_at, grace_period_ends_at,
	data_deletion_date, deletion_signaled_at, read_only,
	api_key, custom_domain, active, version, created_at, updated_at`

func (r *TenantRepository) Create(ctx context.Context, t domain.Tenant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (`+tenantColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Slug, string(t.Status),
		fmtTime(t.TrialEndsAt), fmtTime(t.SubscriptionEndsAt), fmtTime(t.GracePeriodEndsAt),
		fmtTime(t.DataDeletionDate), fmtTime(t.DeletionSignaledAt), t.ReadOnly,
		t.APIKey, t.CustomDomain, t.Active, t.Version,
		t.CreatedAt.Format(timeFormat),
		t.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.SlugConflictError{Slug: t.Slug}
		}
		return fmt.Errorf("inserting tenant: %w", err)
	}
	return nil
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	return r.scanTenant(r.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = ?`, id,
	))
}

func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (domain.Tenant, error) {
	return r.scanTenant(r.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE slug = ?`, slug,
	))
}

func (r *TenantRepository) GetByAPIKey(ctx context.Context, key string) (domain.Tenant, error) {
	return r.scanTenant(r.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE api_key = ?`, key,
	))
}

func (r *TenantRepository) GetByDomain(ctx context.Context, host string) (domain.Tenant, error) {
	return r.scanTenant(r.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE custom_domain = ?`, host,
	))
}

func (r *TenantRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants`
	var args []any

	if filter.Status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*filter.Status))
	}

	query += ` ORDER BY created_at DESC, id`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	var tenants []domain.Tenant
	for rows.Next() {
		t, err := scanTenantRow(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}

	return tenants, rows.Err()
}

// UpdateLifecycle persists lifecycle fields guarded by the version token.
// The WHERE clause on (id, version) is the compare-and-swap: exactly one
// of two interleaved writers can match, the other gets ErrVersionConflict
// and must reload.
func (r *TenantRepository) UpdateLifecycle(ctx context.Context, t domain.Tenant) (domain.Tenant, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET
			status = ?,
			trial_ends_at = ?,
			subscription_ends_at = ?,
			grace_period_ends_at = ?,
			data_deletion_date = ?,
			deletion_signaled_at = ?,
			read_only = ?,
			version = version + 1,
			updated_at = ?
		 WHERE id = ? AND version = ?`,
		string(t.Status),
		fmtTime(t.TrialEndsAt), fmtTime(t.SubscriptionEndsAt), fmtTime(t.GracePeriodEndsAt),
		fmtTime(t.DataDeletionDate), fmtTime(t.DeletionSignaledAt), t.ReadOnly,
		t.UpdatedAt.Format(timeFormat),
		t.ID, t.Version,
	)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("updating tenant lifecycle: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		// Distinguish a lost race from a missing tenant.
		if _, err := r.GetByID(ctx, t.ID); errors.Is(err, domain.ErrTenantNotFound) {
			return domain.Tenant{}, domain.ErrTenantNotFound
		}
		return domain.Tenant{}, domain.ErrVersionConflict
	}

	t.Version++
	return t, nil
}

// scanTenant scans a single row from QueryRow into a domain.Tenant.
func (r *TenantRepository) scanTenant(row *sql.Row) (domain.Tenant, error) {
	t, err := scanTenantFields(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Tenant{}, domain.ErrTenantNotFound
		}
		return domain.Tenant{}, fmt.Errorf("scanning tenant: %w", err)
	}
	return t, nil
}

func scanTenantRow(rows *sql.Rows) (domain.Tenant, error) {
	t, err := scanTenantFields(rows.Scan)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("scanning tenant row: %w", err)
	}
	return t, nil
}

func scanTenantFields(scan func(dest ...any) error) (domain.Tenant, error) {
	var t domain.Tenant
	var status, createdAt, updatedAt string
	var trialEnds, subEnds, graceEnds, deletionDate, deletionSignaled sql.NullString
	var apiKey, customDomain sql.NullString

	err := scan(
		&t.ID, &t.Name, &t.Slug, &status,
		&trialEnds, &subEnds, &graceEnds,
		&deletionDate, &deletionSignaled, &t.ReadOnly,
		&apiKey, &customDomain, &t.Active, &t.Version,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Tenant{}, err
	}

	t.Status = domain.Status(status)
	t.TrialEndsAt = parseTime(trialEnds)
	t.SubscriptionEndsAt = parseTime(subEnds)
	t.GracePeriodEndsAt = parseTime(graceEnds)
	t.DataDeletionDate = parseTime(deletionDate)
	t.DeletionSignaledAt = parseTime(deletionSignaled)
	if apiKey.Valid {
		t.APIKey = &apiKey.String
	}
	if customDomain.Valid {
		t.CustomDomain = &customDomain.String
	}
	t.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	t.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return t, nil
}

func fmtTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(timeFormat, s.String)
	if err != nil {
		return nil
	}
	return &t
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
