package otel_test

import (
	"context"
	"fmt"
	"testing"

	"go.opentelemetry.io/otel/codes"

	adapter "github.com/vintbound/clubsync/internal/adapter/otel"
)

// --- Mock dispatcher ---

type sentNotification struct {
	kind        string
	customerRef string
	tierRef     string
	oldTierRef  string
}

type mockDispatcher struct {
	sent []sentNotification
}

func (m *mockDispatcher) NotifyExpiration(_ context.Context, _, customerRef, tierRef string) error {
	m.sent = append(m.sent, sentNotification{kind: "expiration", customerRef: customerRef, tierRef: tierRef})
	return nil
}

func (m *mockDispatcher) NotifyUpgrade(_ context.Context, _, customerRef, oldTierRef, newTierRef string) error {
	m.sent = append(m.sent, sentNotification{kind: "upgrade", customerRef: customerRef, tierRef: newTierRef, oldTierRef: oldTierRef})
	return nil
}

func (m *mockDispatcher) NotifyMonthlyStatus(_ context.Context, _, customerRef, tierRef string) error {
	m.sent = append(m.sent, sentNotification{kind: "monthly_status", customerRef: customerRef, tierRef: tierRef})
	return nil
}

type failingDispatcher struct{}

func (failingDispatcher) NotifyExpiration(_ context.Context, _, _, _ string) error {
	return fmt.Errorf("dispatch failed")
}

func (failingDispatcher) NotifyUpgrade(_ context.Context, _, _, _, _ string) error {
	return fmt.Errorf("dispatch failed")
}

func (failingDispatcher) NotifyMonthlyStatus(_ context.Context, _, _, _ string) error {
	return fmt.Errorf("dispatch failed")
}

// --- Tests ---

func TestTracingDispatcher_NotifyUpgrade_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := &mockDispatcher{}
	dispatcher := adapter.NewTracingDispatcher(inner)

	err := dispatcher.NotifyUpgrade(context.Background(), "client-1", "cust-1", "tier-silver", "tier-gold")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "NotificationDispatcher.NotifyUpgrade" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "NotificationDispatcher.NotifyUpgrade")
	}

	assertAttribute(t, spans[0], "notification.customer_ref", "cust-1")
	assertAttribute(t, spans[0], "notification.old_tier_ref", "tier-silver")
	assertAttribute(t, spans[0], "notification.tier_ref", "tier-gold")

	if len(inner.sent) != 1 || inner.sent[0].kind != "upgrade" {
		t.Errorf("inner dispatcher sent = %+v", inner.sent)
	}
}

func TestTracingDispatcher_NotifyExpiration_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	dispatcher := adapter.NewTracingDispatcher(failingDispatcher{})

	err := dispatcher.NotifyExpiration(context.Background(), "client-1", "cust-1", "tier-gold")
	if err == nil {
		t.Fatal("expected error from failing dispatcher")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}

	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}
}

func TestTracingDispatcher_NotifyMonthlyStatus_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := &mockDispatcher{}
	dispatcher := adapter.NewTracingDispatcher(inner)

	if err := dispatcher.NotifyMonthlyStatus(context.Background(), "client-1", "cust-7", "tier-silver"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "NotificationDispatcher.NotifyMonthlyStatus" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "NotificationDispatcher.NotifyMonthlyStatus")
	}
	assertAttribute(t, spans[0], "notification.tier_ref", "tier-silver")
}
