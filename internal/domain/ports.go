package domain

import (
	"context"
	"time"
)

// TenantRepository defines the persistence contract for tenants.
type TenantRepository interface {
	Create(ctx context.Context, tenant Tenant) error
	GetByID(ctx context.Context, id string) (Tenant, error)
	GetBySlug(ctx context.Context, slug string) (Tenant, error)
	GetByAPIKey(ctx context.Context, key string) (Tenant, error)
	GetByDomain(ctx context.Context, host string) (Tenant, error)
	List(ctx context.Context, filter ListFilter) ([]Tenant, error)

	// UpdateLifecycle persists the tenant's lifecycle fields using the
	// Version token as a compare-and-swap guard. On success the stored
	// version is bumped and the returned tenant carries the new Version.
	// Returns ErrVersionConflict when another writer won the race.
	UpdateLifecycle(ctx context.Context, tenant Tenant) (Tenant, error)
}

// ListFilter holds optional criteria for listing tenants.
type ListFilter struct {
	Status *Status
	Limit  int
	Offset int
}

// SequenceStore is the persistence contract for per-tenant monotonic
// counters. Next must be atomic: two concurrent callers for the same
// (tenant, key) never observe the same value.
type SequenceStore interface {
	Next(ctx context.Context, tenantID, key string) (int64, error)

	// Current returns the last allocated value without advancing the
	// counter; zero when the counter does not exist yet.
	Current(ctx context.Context, tenantID, key string) (int64, error)

	// Seed raises the counter to at least value. Used by operator
	// backfills after data imports; never lowers an existing counter.
	Seed(ctx context.Context, tenantID, key string, value int64) error
}

// EventPublisher defines the contract for emitting lifecycle signals.
// PublishDeletionDue is a distinct sink from transitions: it feeds the
// external data-purge job and is delivered at least once.
type EventPublisher interface {
	PublishTransition(ctx context.Context, event TransitionEvent, tenant Tenant) error
	PublishDeletionDue(ctx context.Context, tenant Tenant, at time.Time) error
	PublishExpiryWarning(ctx context.Context, tenant Tenant, daysRemaining int) error
}

// TransitionValidator checks whether an event is legal from a state and
// returns the destination state.
type TransitionValidator interface {
	Apply(ctx context.Context, current Status, event Event) (Status, error)
}
