package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vintbound/clubsync/internal/domain"
)

// Provisioner coordinates the tier provisioning saga against the external
// platform. The platform offers no atomic multi-resource commit, so every
// created resource is recorded and rolled back on a mandatory-step failure.
type Provisioner struct {
	gateway domain.CRMGateway
}

// NewProvisioner creates a provisioner using the given gateway.
func NewProvisioner(gateway domain.CRMGateway) *Provisioner {
	return &Provisioner{gateway: gateway}
}

// ProvisionTier drives the ordered creation of club → promotion(s)
// [+ promotion set if multiple] → optional loyalty tier. The club, the
// first promotion, the promotion set and the loyalty tier are mandatory;
// remaining promotions are best-effort. On a mandatory failure it
// compensates everything created so far and returns a ProvisioningError
// naming the failing stage. On success the returned tier carries the
// external ids for the caller to persist.
func (p *Provisioner) ProvisionTier(ctx context.Context, tier domain.Tier) (domain.Tier, domain.ProvisionedResourceSet, error) {
	var set domain.ProvisionedResourceSet

	clubID, created, err := p.resolveClub(ctx, tier)
	if err != nil {
		return tier, set, p.abort(ctx, &set, domain.StageClub, err)
	}
	if created {
		set.Record(domain.ResourceClub, clubID, func(ctx context.Context) error {
			return p.gateway.DeleteClub(ctx, clubID)
		})
	} else {
		// A pre-existing club is updated in place and never deleted
		// during compensation.
		set.ClubID = clubID
	}
	tier.ExternalClubID = clubID

	if len(tier.Promotions) > 0 {
		if err := p.provisionPromotions(ctx, &tier, &set); err != nil {
			return tier, set, err
		}
	}

	if tier.Loyalty.Enabled {
		loyaltyID, err := p.gateway.CreateLoyaltyTier(ctx, domain.LoyaltyTierAttributes{
			ClubID:   clubID,
			Name:     tier.Name,
			EarnRate: tier.Loyalty.EarnRate,
		})
		if err != nil {
			return tier, set, p.abort(ctx, &set, domain.StageLoyaltyTier, err)
		}
		set.Record(domain.ResourceLoyaltyTier, loyaltyID, func(ctx context.Context) error {
			return p.gateway.DeleteLoyaltyTier(ctx, loyaltyID)
		})
		tier.LoyaltyTierID = loyaltyID
	}

	return tier, set, nil
}

// resolveClub is the single point through which club identity is
// established: update when the tier already carries an external club id,
// create otherwise. An update failure propagates as-is; falling back to
// create would mint a duplicate club for the tier.
func (p *Provisioner) resolveClub(ctx context.Context, tier domain.Tier) (id string, createdNew bool, err error) {
	attrs := domain.ClubAttributes{
		Name:           tier.Name,
		DurationMonths: tier.DurationMonths,
		MinPurchase:    tier.MinPurchase,
		TierRef:        tier.ID,
	}

	if tier.ExternalClubID != "" {
		id, err := p.gateway.UpdateClub(ctx, tier.ExternalClubID, attrs)
		if err != nil {
			return "", false, fmt.Errorf("updating club %s: %w", tier.ExternalClubID, err)
		}
		return id, false, nil
	}

	id, err = p.gateway.CreateClub(ctx, attrs)
	if err != nil {
		return "", false, fmt.Errorf("creating club: %w", err)
	}
	return id, true, nil
}

// provisionPromotions creates the tier's discount rules. The first
// promotion must succeed; with two or more specs a promotion set is created
// (mandatory) so the platform applies all discounts simultaneously, the
// first promotion is re-pointed at the set, and each remaining promotion is
// created with the set reference from the start. A remaining promotion's
// failure is logged and skipped.
func (p *Provisioner) provisionPromotions(ctx context.Context, tier *domain.Tier, set *domain.ProvisionedResourceSet) error {
	clubID := set.ClubID
	first := tier.Promotions[0]

	firstID, err := p.gateway.CreatePromotion(ctx, promotionAttrs(clubID, "", first))
	if err != nil {
		return p.abort(ctx, set, domain.StagePromotion, fmt.Errorf("creating promotion %q: %w", first.Name, err))
	}
	set.Record(domain.ResourcePromotion, firstID, func(ctx context.Context) error {
		return p.gateway.DeletePromotion(ctx, firstID)
	})
	tier.Promotions[0].ExternalID = firstID

	if len(tier.Promotions) == 1 {
		return nil
	}

	setID, err := p.gateway.CreatePromotionSet(ctx, domain.PromotionSetAttributes{
		ClubID: clubID,
		Name:   tier.Name + " promotions",
	})
	if err != nil {
		return p.abort(ctx, set, domain.StagePromotionSet, fmt.Errorf("creating promotion set: %w", err))
	}
	set.Record(domain.ResourcePromotionSet, setID, func(ctx context.Context) error {
		return p.gateway.DeletePromotionSet(ctx, setID)
	})
	tier.PromotionSetID = setID

	// The first promotion predates the set and must be re-pointed at it.
	if _, err := p.gateway.UpdatePromotion(ctx, firstID, promotionAttrs(clubID, setID, first)); err != nil {
		return p.abort(ctx, set, domain.StagePromotionSet, fmt.Errorf("attaching promotion %s to set: %w", firstID, err))
	}

	for i, spec := range tier.Promotions[1:] {
		id, err := p.gateway.CreatePromotion(ctx, promotionAttrs(clubID, setID, spec))
		if err != nil {
			// The tier keeps the discounts that did provision; nothing
			// rolls back for a secondary promotion.
			slog.WarnContext(ctx, "skipping secondary promotion",
				"tier_id", tier.ID,
				"promotion", spec.Name,
				"error", err,
			)
			continue
		}
		set.Record(domain.ResourcePromotion, id, func(ctx context.Context) error {
			return p.gateway.DeletePromotion(ctx, id)
		})
		tier.Promotions[i+1].ExternalID = id
	}

	return nil
}

// abort compensates everything recorded so far and wraps the cause in the
// single terminal error the caller sees.
func (p *Provisioner) abort(ctx context.Context, set *domain.ProvisionedResourceSet, stage string, cause error) error {
	Compensate(ctx, set)
	return &domain.ProvisioningError{Stage: stage, Err: cause}
}

func promotionAttrs(clubID, setID string, spec domain.PromotionSpec) domain.PromotionAttributes {
	return domain.PromotionAttributes{
		ClubID:       clubID,
		SetID:        setID,
		Name:         spec.Name,
		DiscountType: spec.DiscountType,
		Amount:       spec.Amount,
		AppliesTo:    spec.AppliesTo,
		MinCart:      spec.MinCart,
	}
}
