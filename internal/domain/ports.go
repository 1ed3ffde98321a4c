package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// ClubAttributes are the external club resource's fields. TierRef is
// attached as the platform's app-data so a club can be found again after
// an ambiguous create timeout.
type ClubAttributes struct {
	Name           string
	DurationMonths int
	MinPurchase    decimal.Decimal
	TierRef        string
}

// PromotionAttributes are the external discount rule's fields. SetID is
// empty for a promotion that is not part of a promotion set.
type PromotionAttributes struct {
	ClubID       string
	SetID        string
	Name         string
	DiscountType DiscountType
	Amount       decimal.Decimal
	AppliesTo    string
	MinCart      decimal.Decimal
}

// PromotionSetAttributes describe the grouping that makes multiple
// promotions apply simultaneously.
type PromotionSetAttributes struct {
	ClubID string
	Name   string
}

// LoyaltyTierAttributes describe the points-earning configuration.
type LoyaltyTierAttributes struct {
	ClubID   string
	Name     string
	EarnRate decimal.Decimal
}

// MembershipParams target one customer's association with a club.
// ClubRef is empty on platforms without a club concept; MembershipRef is
// empty when no membership id was cached, in which case the gateway looks
// the membership up by customer and club.
type MembershipParams struct {
	TierRef       string
	ClubRef       string
	CustomerRef   string
	MembershipRef string
}

// CRMGateway is the capability interface over the external commerce/CRM
// platform. One implementation exists per platform; the orchestrator and
// the sync processor depend only on this interface. Every call is a
// blocking network operation bounded by the implementation's timeout.
type CRMGateway interface {
	CreateClub(ctx context.Context, attrs ClubAttributes) (string, error)
	UpdateClub(ctx context.Context, id string, attrs ClubAttributes) (string, error)
	DeleteClub(ctx context.Context, id string) error

	CreatePromotion(ctx context.Context, attrs PromotionAttributes) (string, error)
	UpdatePromotion(ctx context.Context, id string, attrs PromotionAttributes) (string, error)
	DeletePromotion(ctx context.Context, id string) error

	CreatePromotionSet(ctx context.Context, attrs PromotionSetAttributes) (string, error)
	DeletePromotionSet(ctx context.Context, id string) error

	CreateLoyaltyTier(ctx context.Context, attrs LoyaltyTierAttributes) (string, error)
	DeleteLoyaltyTier(ctx context.Context, id string) error

	// CancelMembership is a soft cancellation on every supported platform:
	// the membership's status flips and future discounts deactivate, the
	// resource is not deleted.
	CancelMembership(ctx context.Context, params MembershipParams) error
	AddMembership(ctx context.Context, params MembershipParams) error
}

// NotificationDispatcher fires lifecycle messages after a CRM-side change.
// Failures must be logged by the caller and never undo the CRM change.
type NotificationDispatcher interface {
	NotifyExpiration(ctx context.Context, clientRef, customerRef, tierRef string) error
	NotifyUpgrade(ctx context.Context, clientRef, customerRef, oldTierRef, newTierRef string) error
	NotifyMonthlyStatus(ctx context.Context, clientRef, customerRef, tierRef string) error
}

// Message is the single "notify" capability handed to a concrete
// email/SMS provider. Per-vendor wire formatting lives behind Messenger.
type Message struct {
	Kind        string
	ClientRef   string
	CustomerRef string
	TierRef     string
	OldTierRef  string
}

// Messenger delivers one lifecycle message through a communication provider.
type Messenger interface {
	Send(ctx context.Context, msg Message) error
}

// TierRepository defines the persistence contract for tiers.
type TierRepository interface {
	Create(ctx context.Context, tier Tier) error
	GetByID(ctx context.Context, id string) (Tier, error)
	List(ctx context.Context, filter TierFilter) ([]Tier, error)
	Update(ctx context.Context, tier Tier) error
}

// TierFilter holds optional criteria for listing tiers.
type TierFilter struct {
	Provisioned *bool
	Limit       int
	Offset      int
}

// SyncQueueRepository defines the persistence contract for queue items.
type SyncQueueRepository interface {
	Enqueue(ctx context.Context, item SyncQueueItem) error
	GetByID(ctx context.Context, id string) (SyncQueueItem, error)
	ListByStatus(ctx context.Context, status Status, limit int) ([]SyncQueueItem, error)

	// Claim atomically moves an item from queued to processing and returns
	// the claimed item. A second concurrent claim of the same item must
	// fail with ErrItemNotFound rather than double-process.
	Claim(ctx context.Context, id string) (SyncQueueItem, error)

	// ClaimBatch claims up to limit due queued items, each exclusively.
	ClaimBatch(ctx context.Context, limit int) ([]SyncQueueItem, error)

	// Update persists status, attempts, reason and next-attempt time.
	Update(ctx context.Context, item SyncQueueItem) error

	// RequeueDue moves retry_pending items whose backoff has elapsed back
	// to queued, returning how many were moved.
	RequeueDue(ctx context.Context) (int, error)
}

// TransitionValidator checks queue item lifecycle transitions.
type TransitionValidator interface {
	Apply(ctx context.Context, current Status, event Event) (Status, error)
}
