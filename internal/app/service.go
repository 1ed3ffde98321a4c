package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/vintbound/clubsync/internal/domain"
)

// TierService orchestrates local tier lifecycle: creation, provisioning
// against the external platform, and the monthly status fan-out.
type TierService struct {
	repo        domain.TierRepository
	provisioner *Provisioner
	dispatcher  domain.NotificationDispatcher
}

// NewTierService creates a service with the given adapters.
func NewTierService(repo domain.TierRepository, provisioner *Provisioner, dispatcher domain.NotificationDispatcher) *TierService {
	return &TierService{
		repo:        repo,
		provisioner: provisioner,
		dispatcher:  dispatcher,
	}
}

// TierDraft carries the administrator's input for a new tier.
type TierDraft struct {
	Name            string
	DurationMonths  int
	MinPurchase     decimal.Decimal
	Promotions      []domain.PromotionSpec
	LoyaltyEnabled  bool
	LoyaltyEarnRate decimal.Decimal
}

// Create persists a new unprovisioned tier.
func (s *TierService) Create(ctx context.Context, draft TierDraft) (domain.Tier, error) {
	tier := domain.NewTier(newID(), draft.Name, draft.DurationMonths, draft.MinPurchase)
	tier.Promotions = draft.Promotions
	tier.Loyalty = domain.LoyaltySpec{Enabled: draft.LoyaltyEnabled, EarnRate: draft.LoyaltyEarnRate}

	if err := s.repo.Create(ctx, tier); err != nil {
		return domain.Tier{}, fmt.Errorf("creating tier: %w", err)
	}
	return tier, nil
}

// GetByID returns a tier by its unique identifier.
func (s *TierService) GetByID(ctx context.Context, id string) (domain.Tier, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns tiers matching the given filter.
func (s *TierService) List(ctx context.Context, filter domain.TierFilter) ([]domain.Tier, error) {
	return s.repo.List(ctx, filter)
}

// Provision runs the provisioning saga for the tier and persists the
// resulting external ids. A re-run on an already provisioned tier updates
// the existing club rather than creating a duplicate.
func (s *TierService) Provision(ctx context.Context, id string) (domain.Tier, error) {
	tier, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Tier{}, err
	}

	tier, set, err := s.provisioner.ProvisionTier(ctx, tier)
	if err != nil {
		return domain.Tier{}, err
	}

	if err := s.repo.Update(ctx, tier); err != nil {
		// The external resources exist but the local tier lost their ids;
		// a later re-provision resolves the club by its tier reference.
		return domain.Tier{}, fmt.Errorf("persisting provisioned tier: %w", err)
	}

	slog.InfoContext(ctx, "tier provisioned",
		"tier_id", tier.ID,
		"club_id", set.ClubID,
		"promotions", len(set.PromotionIDs),
		"promotion_set_id", set.PromotionSetID,
		"loyalty_tier_id", set.LoyaltyTierID,
	)
	return tier, nil
}

// StatusTarget identifies one enrolled customer for the monthly fan-out.
type StatusTarget struct {
	CustomerRef string
	TierRef     string
}

// SendMonthlyStatus dispatches a monthly-status notification for each
// target. Individual dispatch failures are logged and skipped; the count
// of successful dispatches is returned.
func (s *TierService) SendMonthlyStatus(ctx context.Context, clientRef string, targets []StatusTarget) int {
	sent := 0
	for _, t := range targets {
		if err := s.dispatcher.NotifyMonthlyStatus(ctx, clientRef, t.CustomerRef, t.TierRef); err != nil {
			slog.ErrorContext(ctx, "monthly status dispatch failed",
				"client_ref", clientRef,
				"customer_ref", t.CustomerRef,
				"error", err,
			)
			continue
		}
		sent++
	}
	return sent
}
