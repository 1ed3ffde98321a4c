package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vintbound/clubsync/internal/domain"
)

// TracingDispatcher wraps a domain.NotificationDispatcher with
// OpenTelemetry tracing.
type TracingDispatcher struct {
	next   domain.NotificationDispatcher
	tracer trace.Tracer
}

// Compile-time check: TracingDispatcher implements domain.NotificationDispatcher.
var _ domain.NotificationDispatcher = (*TracingDispatcher)(nil)

// NewTracingDispatcher creates a tracing decorator around the given dispatcher.
func NewTracingDispatcher(next domain.NotificationDispatcher) *TracingDispatcher {
	return &TracingDispatcher{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (d *TracingDispatcher) NotifyExpiration(ctx context.Context, clientRef, customerRef, tierRef string) error {
	ctx, span := d.tracer.Start(ctx, "NotificationDispatcher.NotifyExpiration",
		trace.WithAttributes(
			attribute.String("notification.client_ref", clientRef),
			attribute.String("notification.customer_ref", customerRef),
			attribute.String("notification.tier_ref", tierRef),
		),
	)
	defer span.End()

	err := d.next.NotifyExpiration(ctx, clientRef, customerRef, tierRef)
	recordResult(span, err)
	return err
}

func (d *TracingDispatcher) NotifyUpgrade(ctx context.Context, clientRef, customerRef, oldTierRef, newTierRef string) error {
	ctx, span := d.tracer.Start(ctx, "NotificationDispatcher.NotifyUpgrade",
		trace.WithAttributes(
			attribute.String("notification.client_ref", clientRef),
			attribute.String("notification.customer_ref", customerRef),
			attribute.String("notification.old_tier_ref", oldTierRef),
			attribute.String("notification.tier_ref", newTierRef),
		),
	)
	defer span.End()

	err := d.next.NotifyUpgrade(ctx, clientRef, customerRef, oldTierRef, newTierRef)
	recordResult(span, err)
	return err
}

func (d *TracingDispatcher) NotifyMonthlyStatus(ctx context.Context, clientRef, customerRef, tierRef string) error {
	ctx, span := d.tracer.Start(ctx, "NotificationDispatcher.NotifyMonthlyStatus",
		trace.WithAttributes(
			attribute.String("notification.client_ref", clientRef),
			attribute.String("notification.customer_ref", customerRef),
			attribute.String("notification.tier_ref", tierRef),
		),
	)
	defer span.End()

	err := d.next.NotifyMonthlyStatus(ctx, clientRef, customerRef, tierRef)
	recordResult(span, err)
	return err
}
