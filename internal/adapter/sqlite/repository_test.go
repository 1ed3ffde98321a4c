package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vintbound/clubsync/internal/adapter/sqlite"
	"github.com/vintbound/clubsync/internal/domain"
)

// newTestRepo creates an in-memory SQLite repository for testing.
func newTestRepo(t *testing.T) *sqlite.TierRepository {
	t.Helper()
	repo, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("creating test repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustCreate(t *testing.T, repo *sqlite.TierRepository, tier domain.Tier) {
	t.Helper()
	if err := repo.Create(context.Background(), tier); err != nil {
		t.Fatalf("mustCreate failed: %v", err)
	}
}

func testTier(id, name string) domain.Tier {
	tier := domain.NewTier(id, name, 12, decimal.NewFromInt(500))
	tier.Promotions = []domain.PromotionSpec{
		{Name: "15% off storewide", DiscountType: domain.DiscountPercent, Amount: decimal.NewFromInt(15), AppliesTo: "storewide"},
	}
	tier.Loyalty = domain.LoyaltySpec{Enabled: true, EarnRate: decimal.NewFromFloat(0.02)}
	return tier
}

func TestCreate_And_GetByID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tier := testTier("t-1", "Gold")

	if err := repo.Create(ctx, tier); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "t-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if got.ID != "t-1" {
		t.Errorf("ID = %q, want %q", got.ID, "t-1")
	}
	if got.Name != "Gold" {
		t.Errorf("Name = %q, want %q", got.Name, "Gold")
	}
	if !got.MinPurchase.Equal(decimal.NewFromInt(500)) {
		t.Errorf("MinPurchase = %s, want 500", got.MinPurchase)
	}
	if len(got.Promotions) != 1 || got.Promotions[0].Name != "15% off storewide" {
		t.Errorf("Promotions = %+v, want the persisted spec", got.Promotions)
	}
	if !got.Loyalty.Enabled || !got.Loyalty.EarnRate.Equal(decimal.NewFromFloat(0.02)) {
		t.Errorf("Loyalty = %+v, want enabled with earn rate 0.02", got.Loyalty)
	}
	if got.ExternalClubID != "" {
		t.Error("ExternalClubID should be empty for an unprovisioned tier")
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should not be zero")
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetByID(context.Background(), "nonexistent")
	if !errors.Is(err, domain.ErrTierNotFound) {
		t.Errorf("expected ErrTierNotFound, got %v", err)
	}
}

func TestUpdate_PersistsExternalIDs(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tier := testTier("t-1", "Gold")
	mustCreate(t, repo, tier)

	tier.ExternalClubID = "club-77"
	tier.PromotionSetID = "set-12"
	tier.LoyaltyTierID = "loyalty-3"
	tier.Promotions[0].ExternalID = "promo-41"

	if err := repo.Update(ctx, tier); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, _ := repo.GetByID(ctx, "t-1")
	if got.ExternalClubID != "club-77" {
		t.Errorf("ExternalClubID = %q, want %q", got.ExternalClubID, "club-77")
	}
	if got.PromotionSetID != "set-12" {
		t.Errorf("PromotionSetID = %q, want %q", got.PromotionSetID, "set-12")
	}
	if got.LoyaltyTierID != "loyalty-3" {
		t.Errorf("LoyaltyTierID = %q, want %q", got.LoyaltyTierID, "loyalty-3")
	}
	if got.Promotions[0].ExternalID != "promo-41" {
		t.Errorf("promotion ExternalID = %q, want %q", got.Promotions[0].ExternalID, "promo-41")
	}
	if got.UpdatedAt.Before(got.CreatedAt) {
		t.Error("UpdatedAt should not be before CreatedAt")
	}
}

func TestUpdate_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.Update(context.Background(), testTier("nonexistent", "X"))
	if !errors.Is(err, domain.ErrTierNotFound) {
		t.Errorf("expected ErrTierNotFound, got %v", err)
	}
}

func TestList_All(t *testing.T) {
	repo := newTestRepo(t)

	mustCreate(t, repo, testTier("t-1", "Gold"))
	mustCreate(t, repo, testTier("t-2", "Silver"))

	tiers, err := repo.List(context.Background(), domain.TierFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(tiers) != 2 {
		t.Errorf("got %d tiers, want 2", len(tiers))
	}
}

func TestList_FilterByProvisioned(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mustCreate(t, repo, testTier("t-1", "Gold"))

	provisionedTier := testTier("t-2", "Silver")
	mustCreate(t, repo, provisionedTier)
	provisionedTier.ExternalClubID = "club-1"
	if err := repo.Update(ctx, provisionedTier); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	provisioned := true
	tiers, err := repo.List(ctx, domain.TierFilter{Provisioned: &provisioned})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(tiers) != 1 {
		t.Fatalf("got %d tiers, want 1", len(tiers))
	}
	if tiers[0].ID != "t-2" {
		t.Errorf("ID = %q, want %q", tiers[0].ID, "t-2")
	}
}

func TestList_Pagination(t *testing.T) {
	repo := newTestRepo(t)

	for i := range 5 {
		mustCreate(t, repo, testTier(fmt.Sprintf("t-%d", i), "T"))
	}

	tiers, err := repo.List(context.Background(), domain.TierFilter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(tiers) != 2 {
		t.Errorf("got %d tiers, want 2", len(tiers))
	}
}
