package otel_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	adapter "github.com/vintbound/clubsync/internal/adapter/otel"
	"github.com/vintbound/clubsync/internal/domain"
)

// --- Test tracer setup ---

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter
}

func assertAttribute(t *testing.T, span tracetest.SpanStub, key, want string) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			got := attr.Value.Emit()
			if got != want {
				t.Errorf("attribute %q = %q, want %q", key, got, want)
			}
			return
		}
	}
	t.Errorf("attribute %q not found on span %q", key, span.Name)
}

// --- Mock gateway ---

type mockGateway struct {
	createClubErr error
	cancelErr     error
	cancelled     []domain.MembershipParams
}

func (m *mockGateway) CreateClub(_ context.Context, _ domain.ClubAttributes) (string, error) {
	if m.createClubErr != nil {
		return "", m.createClubErr
	}
	return "club-1", nil
}

func (m *mockGateway) UpdateClub(_ context.Context, id string, _ domain.ClubAttributes) (string, error) {
	return id, nil
}

func (m *mockGateway) DeleteClub(_ context.Context, _ string) error { return nil }

func (m *mockGateway) CreatePromotion(_ context.Context, _ domain.PromotionAttributes) (string, error) {
	return "promo-1", nil
}

func (m *mockGateway) UpdatePromotion(_ context.Context, id string, _ domain.PromotionAttributes) (string, error) {
	return id, nil
}

func (m *mockGateway) DeletePromotion(_ context.Context, _ string) error { return nil }

func (m *mockGateway) CreatePromotionSet(_ context.Context, _ domain.PromotionSetAttributes) (string, error) {
	return "set-1", nil
}

func (m *mockGateway) DeletePromotionSet(_ context.Context, _ string) error { return nil }

func (m *mockGateway) CreateLoyaltyTier(_ context.Context, _ domain.LoyaltyTierAttributes) (string, error) {
	return "loyalty-1", nil
}

func (m *mockGateway) DeleteLoyaltyTier(_ context.Context, _ string) error { return nil }

func (m *mockGateway) CancelMembership(_ context.Context, params domain.MembershipParams) error {
	if m.cancelErr != nil {
		return m.cancelErr
	}
	m.cancelled = append(m.cancelled, params)
	return nil
}

func (m *mockGateway) AddMembership(_ context.Context, _ domain.MembershipParams) error { return nil }

// --- Tests ---

func TestTracingGateway_CreateClub_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := &mockGateway{}
	gw := adapter.NewTracingGateway(inner)

	id, err := gw.CreateClub(context.Background(), domain.ClubAttributes{
		Name:    "Gold",
		TierRef: "tier-gold",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "club-1" {
		t.Errorf("id = %q, want club-1", id)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "CRMGateway.CreateClub" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "CRMGateway.CreateClub")
	}

	assertAttribute(t, spans[0], "club.name", "Gold")
	assertAttribute(t, spans[0], "club.tier_ref", "tier-gold")
	assertAttribute(t, spans[0], "club.id", "club-1")
}

func TestTracingGateway_CreateClub_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	wantErr := errors.New("platform unavailable")
	inner := &mockGateway{createClubErr: wantErr}
	gw := adapter.NewTracingGateway(inner)

	_, err := gw.CreateClub(context.Background(), domain.ClubAttributes{Name: "Gold"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped platform error, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}

	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}

	if len(spans[0].Events) == 0 {
		t.Error("expected error event on span")
	}
}

func TestTracingGateway_CancelMembership_PassesThrough(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := &mockGateway{}
	gw := adapter.NewTracingGateway(inner)

	params := domain.MembershipParams{
		TierRef:     "tier-gold",
		CustomerRef: "cust-1",
	}
	if err := gw.CancelMembership(context.Background(), params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(inner.cancelled) != 1 || inner.cancelled[0].CustomerRef != "cust-1" {
		t.Errorf("inner gateway cancelled = %+v", inner.cancelled)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "CRMGateway.CancelMembership" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "CRMGateway.CancelMembership")
	}

	assertAttribute(t, spans[0], "membership.customer_ref", "cust-1")
	assertAttribute(t, spans[0], "membership.tier_ref", "tier-gold")
}

func TestTracingGateway_CancelMembership_PreservesClassification(t *testing.T) {
	setupTestTracer(t)
	inner := &mockGateway{cancelErr: domain.Retryable(errors.New("timeout"))}
	gw := adapter.NewTracingGateway(inner)

	err := gw.CancelMembership(context.Background(), domain.MembershipParams{CustomerRef: "cust-1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !domain.IsRetryable(err) {
		t.Errorf("decorator must not strip the retryable classification: %v", err)
	}
}
