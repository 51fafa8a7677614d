package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/viczenith/estatecore/internal/domain"
)

// maxLifecycleWriteAttempts bounds the optimistic-concurrency retry loop
// on lifecycle writes. A sweep and a concurrent renewal can race on one
// tenant row; the loser reloads and re-plans from fresh state.
const maxLifecycleWriteAttempts = 4

// Engine owns all time-driven lifecycle transitions. It is the single
// writer of a tenant's lifecycle fields (together with the explicit
// Renew action, which it also implements).
type Engine struct {
	repo      domain.TenantRepository
	publisher domain.EventPublisher
	validator domain.TransitionValidator
}

// NewEngine creates a lifecycle engine with the given adapters.
func NewEngine(repo domain.TenantRepository, publisher domain.EventPublisher, validator domain.TransitionValidator) *Engine {
	return &Engine{
		repo:      repo,
		publisher: publisher,
		validator: validator,
	}
}

type advanceOutcome struct {
	tenant      domain.Tenant
	events      []domain.TransitionEvent
	deletionDue bool
}

// Advance re-evaluates a tenant against now and applies any transitions
// that have become due. It is idempotent: a second call with the same
// now (or any later now that crosses no further threshold) changes
// nothing and emits no events.
func (e *Engine) Advance(ctx context.Context, tenantID string, now time.Time) (domain.Tenant, []domain.TransitionEvent, error) {
	out, err := backoff.Retry(ctx, func() (advanceOutcome, error) {
		tenant, err := e.repo.GetByID(ctx, tenantID)
		if err != nil {
			return advanceOutcome{}, backoff.Permanent(err)
		}

		updated, events, deletionDue, err := e.plan(ctx, tenant, now)
		if err != nil {
			return advanceOutcome{}, backoff.Permanent(err)
		}
		if len(events) == 0 && !deletionDue {
			return advanceOutcome{tenant: tenant}, nil
		}

		persisted, err := e.repo.UpdateLifecycle(ctx, updated)
		if err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				return advanceOutcome{}, err
			}
			return advanceOutcome{}, backoff.Permanent(err)
		}
		return advanceOutcome{tenant: persisted, events: events, deletionDue: deletionDue}, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(maxLifecycleWriteAttempts))
	if err != nil {
		return domain.Tenant{}, nil, fmt.Errorf("advancing tenant %s: %w", tenantID, err)
	}

	// Publish only after the transition is durable, so a lost CAS race
	// never produces duplicate events.
	for _, ev := range out.events {
		if err := e.publisher.PublishTransition(ctx, ev, out.tenant); err != nil {
			return out.tenant, out.events, fmt.Errorf("publishing transition %s→%s: %w", ev.From, ev.To, err)
		}
	}
	if out.deletionDue {
		if err := e.publisher.PublishDeletionDue(ctx, out.tenant, now.UTC()); err != nil {
			return out.tenant, out.events, fmt.Errorf("publishing deletion-due signal: %w", err)
		}
	}

	return out.tenant, out.events, nil
}

// plan computes the transitions due at now against a snapshot of the
// tenant, mutating only the local copy. Multiple thresholds crossed in a
// single call are applied in lifecycle order, but entering grace always
// grants the full grace window from now, so a long-idle tenant is never
// pushed straight to read-only.
func (e *Engine) plan(ctx context.Context, t domain.Tenant, now time.Time) (domain.Tenant, []domain.TransitionEvent, bool, error) {
	now = now.UTC()
	var events []domain.TransitionEvent

	apply := func(event domain.Event) error {
		next, err := e.validator.Apply(ctx, t.Status, event)
		if err != nil {
			return fmt.Errorf("applying %q: %w", event, err)
		}
		events = append(events, domain.TransitionEvent{
			TenantID: t.ID,
			From:     t.Status,
			To:       next,
			At:       now,
		})
		t.Status = next
		return nil
	}

	// Billable window lapsed → grace. Guarded on the stored status so an
	// already-graced tenant is never re-graced.
	switch {
	case t.Status == domain.StatusTrial && lapsed(t.TrialEndsAt, now) && t.GracePeriodEndsAt == nil:
		if err := apply(domain.EventTrialLapsed); err != nil {
			return t, nil, false, err
		}
		graceEnds := now.Add(domain.GraceWindow)
		t.GracePeriodEndsAt = &graceEnds
	case t.Status == domain.StatusActive && lapsed(t.SubscriptionEndsAt, now) && t.GracePeriodEndsAt == nil:
		if err := apply(domain.EventSubscriptionLapsed); err != nil {
			return t, nil, false, err
		}
		graceEnds := now.Add(domain.GraceWindow)
		t.GracePeriodEndsAt = &graceEnds
	}

	// Grace window lapsed → read-only, with data deletion scheduled.
	if t.Status == domain.StatusGrace && lapsed(t.GracePeriodEndsAt, now) && !t.ReadOnly {
		if err := apply(domain.EventGraceLapsed); err != nil {
			return t, nil, false, err
		}
		t.ReadOnly = true
		deletion := now.Add(domain.RetentionWindow)
		t.DataDeletionDate = &deletion
	}

	// Retention lapsed → signal the external purge job, exactly once per
	// expiry episode. Not a state transition; the tenant row is retained.
	deletionDue := false
	if t.Status == domain.StatusReadOnly && lapsed(t.DataDeletionDate, now) && t.DeletionSignaledAt == nil {
		signaled := now
		t.DeletionSignaledAt = &signaled
		deletionDue = true
	}

	if len(events) > 0 || deletionDue {
		t.UpdatedAt = now
	}
	return t, events, deletionDue, nil
}

// Renew is the externally-driven transition: a successful payment resets
// the tenant to active with a fresh subscription window and clears every
// expiry artifact, including the deletion-due marker.
func (e *Engine) Renew(ctx context.Context, tenantID string, newPeriodEnd, now time.Time) (domain.Tenant, error) {
	now = now.UTC()
	newPeriodEnd = newPeriodEnd.UTC()

	out, err := backoff.Retry(ctx, func() (advanceOutcome, error) {
		tenant, err := e.repo.GetByID(ctx, tenantID)
		if err != nil {
			return advanceOutcome{}, backoff.Permanent(err)
		}

		next, err := e.validator.Apply(ctx, tenant.Status, domain.EventRenew)
		if err != nil {
			return advanceOutcome{}, backoff.Permanent(err)
		}

		event := domain.TransitionEvent{
			TenantID: tenant.ID,
			From:     tenant.Status,
			To:       next,
			At:       now,
		}

		tenant.Status = next
		tenant.SubscriptionEndsAt = &newPeriodEnd
		tenant.GracePeriodEndsAt = nil
		tenant.DataDeletionDate = nil
		tenant.DeletionSignaledAt = nil
		tenant.ReadOnly = false
		tenant.UpdatedAt = now

		persisted, err := e.repo.UpdateLifecycle(ctx, tenant)
		if err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				return advanceOutcome{}, err
			}
			return advanceOutcome{}, backoff.Permanent(err)
		}
		return advanceOutcome{tenant: persisted, events: []domain.TransitionEvent{event}}, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(maxLifecycleWriteAttempts))
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("renewing tenant %s: %w", tenantID, err)
	}

	for _, ev := range out.events {
		if err := e.publisher.PublishTransition(ctx, ev, out.tenant); err != nil {
			return out.tenant, fmt.Errorf("publishing renew event: %w", err)
		}
	}
	return out.tenant, nil
}

func lapsed(deadline *time.Time, now time.Time) bool {
	return deadline != nil && !now.Before(*deadline)
}
