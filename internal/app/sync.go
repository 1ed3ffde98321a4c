package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vintbound/clubsync/internal/domain"
)

// RetryPolicy bounds how often a sync queue item is attempted and how long
// it waits between attempts. The delay grows exponentially from BaseDelay,
// capped at MaxDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy matches the cadence of an hourly external trigger.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Minute,
		MaxDelay:    time.Hour,
	}
}

// Delay returns the backoff before the given attempt number (1-based)
// is retried.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// SyncProcessor consumes queued membership-lifecycle change requests and
// applies them against the external platform. It owns no scheduler: an
// external trigger calls ProcessBatch or ProcessItem. Items are claimed
// exclusively before processing, so a batch may run concurrently without
// double-processing.
type SyncProcessor struct {
	queue      domain.SyncQueueRepository
	gateway    domain.CRMGateway
	dispatcher domain.NotificationDispatcher
	validator  domain.TransitionValidator
	policy     RetryPolicy
}

// NewSyncProcessor creates a processor with the given adapters and policy.
func NewSyncProcessor(
	queue domain.SyncQueueRepository,
	gateway domain.CRMGateway,
	dispatcher domain.NotificationDispatcher,
	validator domain.TransitionValidator,
	policy RetryPolicy,
) *SyncProcessor {
	return &SyncProcessor{
		queue:      queue,
		gateway:    gateway,
		dispatcher: dispatcher,
		validator:  validator,
		policy:     policy,
	}
}

// SyncDraft carries an operator's request for a membership change.
type SyncDraft struct {
	Action        domain.Action
	ClientRef     string
	TierRef       string
	ClubRef       string
	MembershipRef string
	CustomerRef   string
	OldTierRef    string
	OldClubRef    string
}

// EnqueueRequest mints an id for the draft and enqueues it.
func (s *SyncProcessor) EnqueueRequest(ctx context.Context, draft SyncDraft) (domain.SyncQueueItem, error) {
	item := domain.NewSyncQueueItem(newID(), draft.Action, draft.ClientRef, draft.TierRef, draft.CustomerRef)
	item.ClubRef = draft.ClubRef
	item.MembershipRef = draft.MembershipRef
	item.OldTierRef = draft.OldTierRef
	item.OldClubRef = draft.OldClubRef

	if err := s.Enqueue(ctx, item); err != nil {
		return domain.SyncQueueItem{}, err
	}
	return item, nil
}

// Enqueue validates and persists a new queue item in the "queued" state.
func (s *SyncProcessor) Enqueue(ctx context.Context, item domain.SyncQueueItem) error {
	if item.Action == domain.ActionUpgradeMembership && item.OldTierRef == "" {
		return domain.ErrMissingOldTier
	}
	if err := s.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("enqueuing sync item: %w", err)
	}
	return nil
}

// GetByID returns one queue item for operator inspection.
func (s *SyncProcessor) GetByID(ctx context.Context, id string) (domain.SyncQueueItem, error) {
	return s.queue.GetByID(ctx, id)
}

// ListByStatus returns queue items in the given state, newest first.
func (s *SyncProcessor) ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.SyncQueueItem, error) {
	return s.queue.ListByStatus(ctx, status, limit)
}

// ProcessBatch requeues due retry_pending items, claims up to limit queued
// items and processes them concurrently. Each item is claimed exclusively
// before its goroutine starts. Returns the number of items processed.
func (s *SyncProcessor) ProcessBatch(ctx context.Context, limit int) (int, error) {
	if _, err := s.queue.RequeueDue(ctx); err != nil {
		return 0, fmt.Errorf("requeuing due items: %w", err)
	}

	items, err := s.queue.ClaimBatch(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("claiming batch: %w", err)
	}

	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		go func(it domain.SyncQueueItem) {
			defer wg.Done()
			s.process(ctx, it)
		}(item)
	}
	wg.Wait()

	return len(items), nil
}

// ProcessItem claims and processes a single queued item. A concurrent
// duplicate delivery of the same id observes the item already claimed and
// gets ErrItemNotFound.
func (s *SyncProcessor) ProcessItem(ctx context.Context, id string) (domain.SyncQueueItem, error) {
	item, err := s.queue.Claim(ctx, id)
	if err != nil {
		return domain.SyncQueueItem{}, err
	}
	return s.process(ctx, item), nil
}

// Requeue is the operator intervention on a dead-lettered (or waiting)
// item: attempts and reason reset, the item goes back to queued.
func (s *SyncProcessor) Requeue(ctx context.Context, id string) (domain.SyncQueueItem, error) {
	item, err := s.queue.GetByID(ctx, id)
	if err != nil {
		return domain.SyncQueueItem{}, err
	}

	next, err := s.validator.Apply(ctx, item.Status, domain.EventRequeue)
	if err != nil {
		return domain.SyncQueueItem{}, err
	}

	item.Status = next
	item.Attempts = 0
	item.Reason = ""
	item.NextAttemptAt = time.Time{}

	if err := s.queue.Update(ctx, item); err != nil {
		return domain.SyncQueueItem{}, fmt.Errorf("updating item: %w", err)
	}
	return item, nil
}

// process applies an already-claimed item and drives its state machine to
// succeeded, retry_pending or dead_letter.
func (s *SyncProcessor) process(ctx context.Context, item domain.SyncQueueItem) domain.SyncQueueItem {
	err := s.apply(ctx, &item)
	if err == nil {
		item.Reason = ""
		return s.transition(ctx, item, domain.EventSucceed)
	}

	item.Attempts++
	retryable := domain.IsRetryable(err)

	slog.WarnContext(ctx, "sync item failed",
		"item_id", item.ID,
		"action", string(item.Action),
		"attempt", item.Attempts,
		"retryable", retryable,
		"error", err,
	)

	if retryable && item.Attempts < s.policy.MaxAttempts {
		item.NextAttemptAt = time.Now().UTC().Add(s.policy.Delay(item.Attempts))
		return s.transition(ctx, item, domain.EventRetry)
	}

	// Reason may already carry partial_upgrade; don't overwrite it.
	if item.Reason == "" {
		if retryable {
			item.Reason = domain.ReasonRetriesExhausted
		} else {
			item.Reason = domain.ReasonFatalError
		}
	}
	return s.transition(ctx, item, domain.EventDeadLetter)
}

// apply performs the CRM-side change for the item's action and, on
// success, attempts the corresponding notification. Notification failures
// are logged and swallowed: a completed CRM change is never undone or
// retried because a message failed to send.
func (s *SyncProcessor) apply(ctx context.Context, item *domain.SyncQueueItem) error {
	switch item.Action {
	case domain.ActionCancelMembership:
		err := s.gateway.CancelMembership(ctx, domain.MembershipParams{
			TierRef:       item.TierRef,
			ClubRef:       item.ClubRef,
			CustomerRef:   item.CustomerRef,
			MembershipRef: item.MembershipRef,
		})
		if err != nil {
			return fmt.Errorf("cancelling membership: %w", err)
		}

		s.notify(ctx, item, func() error {
			return s.dispatcher.NotifyExpiration(ctx, item.ClientRef, item.CustomerRef, item.TierRef)
		})
		return nil

	case domain.ActionUpgradeMembership:
		if item.OldTierRef == "" {
			return domain.Fatal(domain.ErrMissingOldTier)
		}

		err := s.gateway.CancelMembership(ctx, domain.MembershipParams{
			TierRef:       item.OldTierRef,
			ClubRef:       item.OldClubRef,
			CustomerRef:   item.CustomerRef,
			MembershipRef: item.MembershipRef,
		})
		if err != nil {
			return fmt.Errorf("cancelling old membership: %w", err)
		}

		err = s.gateway.AddMembership(ctx, domain.MembershipParams{
			TierRef:     item.TierRef,
			ClubRef:     item.ClubRef,
			CustomerRef: item.CustomerRef,
		})
		if err != nil {
			// The old membership is already cancelled. There is no
			// automatic revert: the gap stays visible to operators
			// through the recorded reason.
			item.Reason = domain.ReasonPartialUpgrade
			return fmt.Errorf("adding new membership: %w", err)
		}

		s.notify(ctx, item, func() error {
			return s.dispatcher.NotifyUpgrade(ctx, item.ClientRef, item.CustomerRef, item.OldTierRef, item.TierRef)
		})
		return nil

	default:
		return domain.Fatal(fmt.Errorf("unknown action %q", item.Action))
	}
}

func (s *SyncProcessor) notify(ctx context.Context, item *domain.SyncQueueItem, send func() error) {
	if err := send(); err != nil {
		slog.ErrorContext(ctx, "notification dispatch failed",
			"item_id", item.ID,
			"action", string(item.Action),
			"customer_ref", item.CustomerRef,
			"error", err,
		)
	}
}

func (s *SyncProcessor) transition(ctx context.Context, item domain.SyncQueueItem, event domain.Event) domain.SyncQueueItem {
	next, err := s.validator.Apply(ctx, item.Status, event)
	if err != nil {
		slog.ErrorContext(ctx, "invalid queue transition",
			"item_id", item.ID,
			"event", string(event),
			"current", string(item.Status),
			"error", err,
		)
		return item
	}

	item.Status = next
	if err := s.queue.Update(ctx, item); err != nil {
		slog.ErrorContext(ctx, "persisting queue item failed",
			"item_id", item.ID,
			"status", string(item.Status),
			"error", err,
		)
	}
	return item
}
