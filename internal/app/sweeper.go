package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/viczenith/estatecore/internal/domain"
)

// sweepPageSize bounds how many tenants one listing query pulls.
const sweepPageSize = 200

// SweepSummary reports what a single sweep did.
type SweepSummary struct {
	Checked     int
	Transitions int
	Failed      int
}

// Sweeper drives the lifecycle engine across all tenants. It is safe to
// run concurrently with itself and with request traffic: Advance is
// idempotent and guarded by the tenant row's version token, so an
// overlapping sweep applies nothing twice.
type Sweeper struct {
	repo      domain.TenantRepository
	engine    *Engine
	publisher domain.EventPublisher
}

// NewSweeper creates a sweeper over the given repository and engine.
func NewSweeper(repo domain.TenantRepository, engine *Engine, publisher domain.EventPublisher) *Sweeper {
	return &Sweeper{repo: repo, engine: engine, publisher: publisher}
}

// Sweep advances every tenant (or just tenantID when non-empty) against
// now. A failure on one tenant is logged and counted but never aborts
// the sweep; the tenant is retried on the next tick. The returned error
// is non-nil only for sweep-level failures, i.e. the tenant listing
// itself could not be read.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time, tenantID string) (SweepSummary, error) {
	if tenantID != "" {
		return s.sweepOne(ctx, now, tenantID)
	}

	var summary SweepSummary
	offset := 0
	for {
		tenants, err := s.repo.List(ctx, domain.ListFilter{Limit: sweepPageSize, Offset: offset})
		if err != nil {
			return summary, fmt.Errorf("listing tenants: %w", err)
		}
		if len(tenants) == 0 {
			break
		}

		for _, tenant := range tenants {
			summary.Checked++
			advanced, events, err := s.engine.Advance(ctx, tenant.ID, now)
			if err != nil {
				summary.Failed++
				slog.ErrorContext(ctx, "tenant advance failed",
					"tenant_id", tenant.ID,
					"tenant_slug", tenant.Slug,
					"error", err,
				)
				continue
			}
			summary.Transitions += len(events)
			for _, ev := range events {
				slog.InfoContext(ctx, "lifecycle transition",
					"tenant_id", ev.TenantID,
					"from", ev.From,
					"to", ev.To,
					"at", ev.At,
				)
			}
			s.announceUpcomingExpiry(ctx, advanced, now)
		}

		if len(tenants) < sweepPageSize {
			break
		}
		offset += sweepPageSize
	}
	return summary, nil
}

func (s *Sweeper) sweepOne(ctx context.Context, now time.Time, tenantID string) (SweepSummary, error) {
	summary := SweepSummary{Checked: 1}
	advanced, events, err := s.engine.Advance(ctx, tenantID, now)
	if err != nil {
		summary.Failed++
		slog.ErrorContext(ctx, "tenant advance failed", "tenant_id", tenantID, "error", err)
		return summary, nil
	}
	summary.Transitions = len(events)
	s.announceUpcomingExpiry(ctx, advanced, now)
	return summary, nil
}

// announceUpcomingExpiry raises an expiry warning when the tenant's
// billable window closes on one of the alert thresholds. The alerting
// consumer deduplicates against warnings it has already shown, so a
// repeated announcement within one threshold day is harmless.
func (s *Sweeper) announceUpcomingExpiry(ctx context.Context, tenant domain.Tenant, now time.Time) {
	days, due := domain.UpcomingExpiry(tenant, now)
	if !due {
		return
	}
	if err := s.publisher.PublishExpiryWarning(ctx, tenant, days); err != nil {
		slog.WarnContext(ctx, "expiry warning publish failed",
			"tenant_id", tenant.ID,
			"days_remaining", days,
			"error", err,
		)
	}
}
