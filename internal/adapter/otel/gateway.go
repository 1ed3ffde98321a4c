package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vintbound/clubsync/internal/domain"
)

const tracerName = "github.com/vintbound/clubsync/internal/adapter/otel"

// TracingGateway wraps a domain.CRMGateway with OpenTelemetry tracing.
// Each call creates a span with semantic attributes and records errors,
// so every outbound platform request shows up in traces.
type TracingGateway struct {
	next   domain.CRMGateway
	tracer trace.Tracer
}

// Compile-time check: TracingGateway implements domain.CRMGateway.
var _ domain.CRMGateway = (*TracingGateway)(nil)

// NewTracingGateway creates a tracing decorator around the given gateway.
func NewTracingGateway(next domain.CRMGateway) *TracingGateway {
	return &TracingGateway{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func recordResult(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func (g *TracingGateway) CreateClub(ctx context.Context, attrs domain.ClubAttributes) (string, error) {
	ctx, span := g.tracer.Start(ctx, "CRMGateway.CreateClub",
		trace.WithAttributes(
			attribute.String("club.name", attrs.Name),
			attribute.String("club.tier_ref", attrs.TierRef),
		),
	)
	defer span.End()

	id, err := g.next.CreateClub(ctx, attrs)
	recordResult(span, err)
	if err == nil {
		span.SetAttributes(attribute.String("club.id", id))
	}
	return id, err
}

func (g *TracingGateway) UpdateClub(ctx context.Context, id string, attrs domain.ClubAttributes) (string, error) {
	ctx, span := g.tracer.Start(ctx, "CRMGateway.UpdateClub",
		trace.WithAttributes(
			attribute.String("club.id", id),
			attribute.String("club.name", attrs.Name),
		),
	)
	defer span.End()

	id, err := g.next.UpdateClub(ctx, id, attrs)
	recordResult(span, err)
	return id, err
}

func (g *TracingGateway) DeleteClub(ctx context.Context, id string) error {
	ctx, span := g.tracer.Start(ctx, "CRMGateway.DeleteClub",
		trace.WithAttributes(attribute.String("club.id", id)),
	)
	defer span.End()

	err := g.next.DeleteClub(ctx, id)
	recordResult(span, err)
	return err
}

func (g *TracingGateway) CreatePromotion(ctx context.Context, attrs domain.PromotionAttributes) (string, error) {
	ctx, span := g.tracer.Start(ctx, "CRMGateway.CreatePromotion",
		trace.WithAttributes(
			attribute.String("promotion.name", attrs.Name),
			attribute.String("promotion.club_id", attrs.ClubID),
		),
	)
	defer span.End()

	id, err := g.next.CreatePromotion(ctx, attrs)
	recordResult(span, err)
	return id, err
}

func (g *TracingGateway) UpdatePromotion(ctx context.Context, id string, attrs domain.PromotionAttributes) (string, error) {
	ctx, span := g.tracer.Start(ctx, "CRMGateway.UpdatePromotion",
		trace.WithAttributes(
			attribute.String("promotion.id", id),
			attribute.String("promotion.set_id", attrs.SetID),
		),
	)
	defer span.End()

	id, err := g.next.UpdatePromotion(ctx, id, attrs)
	recordResult(span, err)
	return id, err
}

func (g *TracingGateway) DeletePromotion(ctx context.Context, id string) error {
	ctx, span := g.tracer.Start(ctx, "CRMGateway.DeletePromotion",
		trace.WithAttributes(attribute.String("promotion.id", id)),
	)
	defer span.End()

	err := g.next.DeletePromotion(ctx, id)
	recordResult(span, err)
	return err
}

func (g *TracingGateway) CreatePromotionSet(ctx context.Context, attrs domain.PromotionSetAttributes) (string, error) {
	ctx, span := g.tracer.Start(ctx, "CRMGateway.CreatePromotionSet",
		trace.WithAttributes(attribute.String("promotion_set.club_id", attrs.ClubID)),
	)
	defer span.End()

	id, err := g.next.CreatePromotionSet(ctx, attrs)
	recordResult(span, err)
	return id, err
}

func (g *TracingGateway) DeletePromotionSet(ctx context.Context, id string) error {
	ctx, span := g.tracer.Start(ctx, "CRMGateway.DeletePromotionSet",
		trace.WithAttributes(attribute.String("promotion_set.id", id)),
	)
	defer span.End()

	err := g.next.DeletePromotionSet(ctx, id)
	recordResult(span, err)
	return err
}

func (g *TracingGateway) CreateLoyaltyTier(ctx context.Context, attrs domain.LoyaltyTierAttributes) (string, error) {
	ctx, span := g.tracer.Start(ctx, "CRMGateway.CreateLoyaltyTier",
		trace.WithAttributes(attribute.String("loyalty_tier.club_id", attrs.ClubID)),
	)
	defer span.End()

	id, err := g.next.CreateLoyaltyTier(ctx, attrs)
	recordResult(span, err)
	return id, err
}

func (g *TracingGateway) DeleteLoyaltyTier(ctx context.Context, id string) error {
	ctx, span := g.tracer.Start(ctx, "CRMGateway.DeleteLoyaltyTier",
		trace.WithAttributes(attribute.String("loyalty_tier.id", id)),
	)
	defer span.End()

	err := g.next.DeleteLoyaltyTier(ctx, id)
	recordResult(span, err)
	return err
}

func (g *TracingGateway) CancelMembership(ctx context.Context, params domain.MembershipParams) error {
	ctx, span := g.tracer.Start(ctx, "CRMGateway.CancelMembership",
		trace.WithAttributes(
			attribute.String("membership.customer_ref", params.CustomerRef),
			attribute.String("membership.tier_ref", params.TierRef),
		),
	)
	defer span.End()

	err := g.next.CancelMembership(ctx, params)
	recordResult(span, err)
	return err
}

func (g *TracingGateway) AddMembership(ctx context.Context, params domain.MembershipParams) error {
	ctx, span := g.tracer.Start(ctx, "CRMGateway.AddMembership",
		trace.WithAttributes(
			attribute.String("membership.customer_ref", params.CustomerRef),
			attribute.String("membership.tier_ref", params.TierRef),
		),
	)
	defer span.End()

	err := g.next.AddMembership(ctx, params)
	recordResult(span, err)
	return err
}
