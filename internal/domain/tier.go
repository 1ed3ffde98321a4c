package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType identifies how a promotion's amount is interpreted.
type DiscountType string

const (
	DiscountPercent      DiscountType = "percent"
	DiscountFixedAmount  DiscountType = "fixed_amount"
	DiscountFreeShipping DiscountType = "free_shipping"
)

// PromotionSpec describes one discount rule owned by a tier. When a tier
// owns more than one spec, the external platform requires them grouped
// under a promotion set so they all apply simultaneously.
type PromotionSpec struct {
	Name         string
	DiscountType DiscountType
	Amount       decimal.Decimal
	AppliesTo    string          // "storewide" or a collection/category reference
	MinCart      decimal.Decimal // zero means no minimum
	ExternalID   string          // set after successful provisioning
}

// LoyaltySpec describes the optional points-earning benefit of a tier.
type LoyaltySpec struct {
	Enabled  bool
	EarnRate decimal.Decimal // points earned per currency unit spent
}

// Tier is the local representation of a membership level. ExternalClubID
// is empty until the first successful provisioning; once set it is stable
// and re-provisioning updates the existing club rather than creating a
// duplicate.
type Tier struct {
	ID             string
	Name           string
	DurationMonths int
	MinPurchase    decimal.Decimal
	Promotions     []PromotionSpec
	Loyalty        LoyaltySpec
	ExternalClubID string
	PromotionSetID string
	LoyaltyTierID  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewTier creates an unprovisioned tier.
func NewTier(id, name string, durationMonths int, minPurchase decimal.Decimal) Tier {
	now := time.Now().UTC()
	return Tier{
		ID:             id,
		Name:           name,
		DurationMonths: durationMonths,
		MinPurchase:    minPurchase,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ResourceType identifies a kind of externally provisioned resource.
type ResourceType string

const (
	ResourceClub         ResourceType = "club"
	ResourcePromotion    ResourceType = "promotion"
	ResourcePromotionSet ResourceType = "promotion_set"
	ResourceLoyaltyTier  ResourceType = "loyalty_tier"
)

// DeleteFunc removes one provisioned resource from the external platform.
type DeleteFunc func(ctx context.Context) error

// ProvisionedResource is one entry in a saga's compensation list: the
// resource's type and external id, plus the action that undoes its creation.
type ProvisionedResource struct {
	Type   ResourceType
	ID     string
	Delete DeleteFunc
}

// ProvisionedResourceSet records everything created during one provisioning
// attempt, in creation order. It lives only for the duration of the attempt:
// on success its ids are persisted onto the tier, on failure it is consumed
// by the compensator and discarded.
type ProvisionedResourceSet struct {
	ClubID         string
	PromotionIDs   []string
	PromotionSetID string
	LoyaltyTierID  string

	resources []ProvisionedResource
}

// Record appends a successfully created resource to the compensation list
// and mirrors its id into the typed field for the resource's kind.
func (s *ProvisionedResourceSet) Record(t ResourceType, id string, del DeleteFunc) {
	s.resources = append(s.resources, ProvisionedResource{Type: t, ID: id, Delete: del})
	switch t {
	case ResourceClub:
		s.ClubID = id
	case ResourcePromotion:
		s.PromotionIDs = append(s.PromotionIDs, id)
	case ResourcePromotionSet:
		s.PromotionSetID = id
	case ResourceLoyaltyTier:
		s.LoyaltyTierID = id
	}
}

// Resources returns the recorded resources in creation order.
func (s *ProvisionedResourceSet) Resources() []ProvisionedResource {
	return s.resources
}
