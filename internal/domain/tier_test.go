package domain_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vintbound/clubsync/internal/domain"
)

func TestNewTier(t *testing.T) {
	tier := domain.NewTier("t-1", "Gold", 12, decimal.NewFromInt(500))

	if tier.Name != "Gold" {
		t.Errorf("Name = %q, want %q", tier.Name, "Gold")
	}
	if tier.ExternalClubID != "" {
		t.Error("ExternalClubID should be empty before provisioning")
	}
	if !tier.MinPurchase.Equal(decimal.NewFromInt(500)) {
		t.Errorf("MinPurchase = %s, want 500", tier.MinPurchase)
	}
	if tier.UpdatedAt != tier.CreatedAt {
		t.Error("UpdatedAt should equal CreatedAt on new tier")
	}
}

func TestProvisionedResourceSet_Record(t *testing.T) {
	noop := func(context.Context) error { return nil }

	var set domain.ProvisionedResourceSet
	set.Record(domain.ResourceClub, "club-1", noop)
	set.Record(domain.ResourcePromotion, "promo-1", noop)
	set.Record(domain.ResourcePromotionSet, "set-1", noop)
	set.Record(domain.ResourcePromotion, "promo-2", noop)
	set.Record(domain.ResourceLoyaltyTier, "loyalty-1", noop)

	if set.ClubID != "club-1" {
		t.Errorf("ClubID = %q, want %q", set.ClubID, "club-1")
	}
	if len(set.PromotionIDs) != 2 || set.PromotionIDs[0] != "promo-1" || set.PromotionIDs[1] != "promo-2" {
		t.Errorf("PromotionIDs = %v, want [promo-1 promo-2]", set.PromotionIDs)
	}
	if set.PromotionSetID != "set-1" {
		t.Errorf("PromotionSetID = %q, want %q", set.PromotionSetID, "set-1")
	}
	if set.LoyaltyTierID != "loyalty-1" {
		t.Errorf("LoyaltyTierID = %q, want %q", set.LoyaltyTierID, "loyalty-1")
	}

	// Creation order is preserved for reverse-order compensation.
	got := set.Resources()
	wantOrder := []string{"club-1", "promo-1", "set-1", "promo-2", "loyalty-1"}
	if len(got) != len(wantOrder) {
		t.Fatalf("len(Resources) = %d, want %d", len(got), len(wantOrder))
	}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("Resources()[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
}
