package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/viczenith/estatecore/internal/domain"
)

// maxSequenceAttempts bounds retries on transient sequence conflicts
// (busy database, lost increment race). Conflicts are an internal
// concern and never surface to callers as such.
const maxSequenceAttempts = 5

// SequenceAllocator mints tenant-scoped monotonic identifiers. For a
// fixed (tenant, key) pair, successive Next calls return strictly
// increasing, never-repeating values under arbitrary concurrency; the
// store performs the read-increment-write as one atomic unit.
type SequenceAllocator struct {
	store domain.SequenceStore
}

// NewSequenceAllocator creates an allocator backed by the given store.
func NewSequenceAllocator(store domain.SequenceStore) *SequenceAllocator {
	return &SequenceAllocator{store: store}
}

// Next returns the next value for (tenant, key), creating the counter at
// zero on first use. Transient conflicts are retried with exponential
// backoff before a hard failure is surfaced.
func (a *SequenceAllocator) Next(ctx context.Context, tenantID, key string) (int64, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond

	value, err := backoff.Retry(ctx, func() (int64, error) {
		v, err := a.store.Next(ctx, tenantID, key)
		if err != nil {
			if errors.Is(err, domain.ErrSequenceConflict) {
				return 0, err
			}
			return 0, backoff.Permanent(err)
		}
		return v, nil
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(maxSequenceAttempts))
	if err != nil {
		return 0, fmt.Errorf("allocating sequence %s/%s: %w", tenantID, key, err)
	}
	return value, nil
}

// Preview returns the value the next allocation would yield, without
// allocating it. Purely informational: a concurrent Next can claim the
// previewed value first.
func (a *SequenceAllocator) Preview(ctx context.Context, tenantID, key string) (int64, error) {
	current, err := a.store.Current(ctx, tenantID, key)
	if err != nil {
		return 0, fmt.Errorf("previewing sequence %s/%s: %w", tenantID, key, err)
	}
	return current + 1, nil
}

// Seed raises the counter for (tenant, key) to at least value. Operator
// tooling uses it to initialize counters from imported data; it never
// lowers an existing counter.
func (a *SequenceAllocator) Seed(ctx context.Context, tenantID, key string, value int64) error {
	if err := a.store.Seed(ctx, tenantID, key, value); err != nil {
		return fmt.Errorf("seeding sequence %s/%s: %w", tenantID, key, err)
	}
	return nil
}
