package river

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/viczenith/estatecore/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// TransitionJobArgs carries one lifecycle transition to the notification
// and audit consumers. River serializes this as JSON into its job queue
// table, snapshotting the tenant so the worker never re-queries it.
type TransitionJobArgs struct {
	TenantID string    `json:"tenant_id"`
	Slug     string    `json:"slug"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	At       time.Time `json:"at"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (TransitionJobArgs) Kind() string { return "lifecycle.transition" }

// DeletionDueJobArgs is the distinct deletion-due sink: it feeds the
// external data-purge job. The engine emits it exactly once per expiry
// episode; River's at-least-once delivery means the purge consumer must
// tolerate redelivery.
type DeletionDueJobArgs struct {
	TenantID string    `json:"tenant_id"`
	Slug     string    `json:"slug"`
	DueAt    time.Time `json:"due_at"`
}

func (DeletionDueJobArgs) Kind() string { return "lifecycle.deletion_due" }

// ExpiryWarningJobArgs announces an upcoming trial or subscription
// expiry at one of the product's warning thresholds. Deduplication
// against warnings already raised is the alerting consumer's job.
type ExpiryWarningJobArgs struct {
	TenantID      string `json:"tenant_id"`
	Slug          string `json:"slug"`
	DaysRemaining int    `json:"days_remaining"`
}

func (ExpiryWarningJobArgs) Kind() string { return "lifecycle.expiry_warning" }

// SweepJobArgs triggers one full lifecycle sweep. Enqueued periodically
// by River's periodic job scheduler inside the server.
type SweepJobArgs struct{}

func (SweepJobArgs) Kind() string { return "lifecycle.sweep" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// errNotBound guards publishes before Bind; it indicates a wiring bug.
var errNotBound = errors.New("river publisher not bound to a client")

// Publisher implements domain.EventPublisher by enqueuing River jobs.
// The client is bound after Setup because the sweep worker registered
// there closes over the engine, which in turn publishes through this
// publisher.
type Publisher struct {
	client *Client
}

// NewPublisher creates an unbound publisher. Call Bind before use.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Bind attaches the River client. Must happen before the first publish.
func (p *Publisher) Bind(client *Client) {
	p.client = client
}

func (p *Publisher) PublishTransition(ctx context.Context, event domain.TransitionEvent, tenant domain.Tenant) error {
	if p.client == nil {
		return errNotBound
	}
	_, err := p.client.Insert(ctx, TransitionJobArgs{
		TenantID: event.TenantID,
		Slug:     tenant.Slug,
		From:     string(event.From),
		To:       string(event.To),
		At:       event.At,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing transition job: %w", err)
	}
	return nil
}

func (p *Publisher) PublishDeletionDue(ctx context.Context, tenant domain.Tenant, at time.Time) error {
	if p.client == nil {
		return errNotBound
	}
	_, err := p.client.Insert(ctx, DeletionDueJobArgs{
		TenantID: tenant.ID,
		Slug:     tenant.Slug,
		DueAt:    at,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing deletion-due job: %w", err)
	}
	return nil
}

// PublishExpiryWarning enqueues an upcoming-expiry announcement.
func (p *Publisher) PublishExpiryWarning(ctx context.Context, tenant domain.Tenant, daysRemaining int) error {
	if p.client == nil {
		return errNotBound
	}
	_, err := p.client.Insert(ctx, ExpiryWarningJobArgs{
		TenantID:      tenant.ID,
		Slug:          tenant.Slug,
		DaysRemaining: daysRemaining,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing expiry-warning job: %w", err)
	}
	return nil
}
