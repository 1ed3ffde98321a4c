package domain_test

import (
	"testing"
	"time"

	"github.com/vintbound/clubsync/internal/domain"
)

func TestNewSyncQueueItem(t *testing.T) {
	before := time.Now().UTC()
	item := domain.NewSyncQueueItem("q-1", domain.ActionCancelMembership, "client-9", "tier-3", "cust-7")
	after := time.Now().UTC()

	if item.ID != "q-1" {
		t.Errorf("ID = %q, want %q", item.ID, "q-1")
	}
	if item.Action != domain.ActionCancelMembership {
		t.Errorf("Action = %q, want %q", item.Action, domain.ActionCancelMembership)
	}
	if item.Status != domain.StatusQueued {
		t.Errorf("Status = %q, want %q", item.Status, domain.StatusQueued)
	}
	if item.Attempts != 0 {
		t.Errorf("Attempts = %d, want 0", item.Attempts)
	}
	if item.CreatedAt.Before(before) || item.CreatedAt.After(after) {
		t.Errorf("CreatedAt = %v, want between %v and %v", item.CreatedAt, before, after)
	}
	if item.UpdatedAt != item.CreatedAt {
		t.Errorf("UpdatedAt should equal CreatedAt on new item")
	}
}

func TestTransitions_ValidPaths(t *testing.T) {
	cases := []struct {
		event domain.Event
		src   domain.Status
		dst   domain.Status
	}{
		{domain.EventClaim, domain.StatusQueued, domain.StatusProcessing},
		{domain.EventSucceed, domain.StatusProcessing, domain.StatusSucceeded},
		{domain.EventRetry, domain.StatusProcessing, domain.StatusRetryPending},
		{domain.EventRequeue, domain.StatusRetryPending, domain.StatusQueued},
		// Operator intervention on a dead-lettered item.
		{domain.EventRequeue, domain.StatusDeadLetter, domain.StatusQueued},
		{domain.EventDeadLetter, domain.StatusProcessing, domain.StatusDeadLetter},
	}

	for _, tc := range cases {
		found := false
		for _, tr := range domain.Transitions {
			if tr.Event == tc.event && tr.Src == tc.src && tr.Dst == tc.dst {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing transition: %q from %q → %q", tc.event, tc.src, tc.dst)
		}
	}
}

func TestTransitions_InvalidPaths(t *testing.T) {
	// These transitions must NOT exist.
	invalid := []struct {
		event domain.Event
		src   domain.Status
	}{
		// Succeeded is terminal.
		{domain.EventRequeue, domain.StatusSucceeded},
		{domain.EventClaim, domain.StatusSucceeded},
		// An unclaimed item cannot resolve.
		{domain.EventSucceed, domain.StatusQueued},
		{domain.EventRetry, domain.StatusQueued},
		{domain.EventDeadLetter, domain.StatusQueued},
		// Double-claim.
		{domain.EventClaim, domain.StatusProcessing},
		// Retry-pending must pass through queued before processing again.
		{domain.EventClaim, domain.StatusRetryPending},
	}

	for _, tc := range invalid {
		for _, tr := range domain.Transitions {
			if tr.Event == tc.event && tr.Src == tc.src {
				t.Errorf("unexpected transition: %q from %q should not exist", tc.event, tc.src)
			}
		}
	}
}
