package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/viczenith/estatecore/internal/domain"
)

// TracingPublisher wraps a domain.EventPublisher with OpenTelemetry tracing.
type TracingPublisher struct {
	next   domain.EventPublisher
	tracer trace.Tracer
}

// Compile-time check: TracingPublisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*TracingPublisher)(nil)

// NewTracingPublisher creates a tracing decorator around the given publisher.
func NewTracingPublisher(next domain.EventPublisher) *TracingPublisher {
	return &TracingPublisher{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (p *TracingPublisher) PublishTransition(ctx context.Context, event domain.TransitionEvent, tenant domain.Tenant) error {
	ctx, span := p.tracer.Start(ctx, "EventPublisher.PublishTransition",
		trace.WithAttributes(
			attribute.String("tenant.id", event.TenantID),
			attribute.String("transition.from", string(event.From)),
			attribute.String("transition.to", string(event.To)),
		),
	)
	defer span.End()

	err := p.next.PublishTransition(ctx, event, tenant)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *TracingPublisher) PublishDeletionDue(ctx context.Context, tenant domain.Tenant, at time.Time) error {
	ctx, span := p.tracer.Start(ctx, "EventPublisher.PublishDeletionDue",
		trace.WithAttributes(
			attribute.String("tenant.id", tenant.ID),
			attribute.String("tenant.slug", tenant.Slug),
		),
	)
	defer span.End()

	err := p.next.PublishDeletionDue(ctx, tenant, at)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *TracingPublisher) PublishExpiryWarning(ctx context.Context, tenant domain.Tenant, daysRemaining int) error {
	ctx, span := p.tracer.Start(ctx, "EventPublisher.PublishExpiryWarning",
		trace.WithAttributes(
			attribute.String("tenant.id", tenant.ID),
			attribute.Int("expiry.days_remaining", daysRemaining),
		),
	)
	defer span.End()

	err := p.next.PublishExpiryWarning(ctx, tenant, daysRemaining)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
