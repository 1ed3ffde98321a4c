package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shopspring/decimal"

	"github.com/vintbound/clubsync/internal/app"
	"github.com/vintbound/clubsync/internal/domain"
)

const timeFormat = "2006-01-02T15:04:05Z"

// PromotionResponse is the API representation of one discount rule.
type PromotionResponse struct {
	Name         string `json:"name" doc:"Display name"`
	DiscountType string `json:"discount_type" doc:"percent, fixed_amount or free_shipping"`
	Amount       string `json:"amount" doc:"Discount amount (percent or currency, decimal string)"`
	AppliesTo    string `json:"applies_to" doc:"storewide or a collection reference"`
	MinCart      string `json:"min_cart,omitempty" doc:"Minimum cart amount, empty for none"`
	ExternalID   string `json:"external_id,omitempty" doc:"Platform promotion id once provisioned"`
}

// TierResponse is the API representation of a membership tier.
type TierResponse struct {
	ID              string              `json:"id" doc:"Unique identifier"`
	Name            string              `json:"name" doc:"Display name"`
	DurationMonths  int                 `json:"duration_months" doc:"Membership duration"`
	MinPurchase     string              `json:"min_purchase" doc:"Minimum purchase amount (decimal string)"`
	Promotions      []PromotionResponse `json:"promotions" doc:"Discount rules owned by the tier"`
	LoyaltyEnabled  bool                `json:"loyalty_enabled" doc:"Whether a loyalty tier is provisioned"`
	LoyaltyEarnRate string              `json:"loyalty_earn_rate,omitempty" doc:"Points per currency unit"`
	ExternalClubID  string              `json:"external_club_id,omitempty" doc:"Platform club id once provisioned"`
	PromotionSetID  string              `json:"promotion_set_id,omitempty" doc:"Platform promotion set id"`
	LoyaltyTierID   string              `json:"loyalty_tier_id,omitempty" doc:"Platform loyalty tier id"`
	CreatedAt       string              `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt       string              `json:"updated_at" doc:"Last update timestamp (ISO 8601)"`
}

func toTierResponse(t domain.Tier) TierResponse {
	promos := make([]PromotionResponse, len(t.Promotions))
	for i, p := range t.Promotions {
		promos[i] = PromotionResponse{
			Name:         p.Name,
			DiscountType: string(p.DiscountType),
			Amount:       p.Amount.String(),
			AppliesTo:    p.AppliesTo,
			ExternalID:   p.ExternalID,
		}
		if p.MinCart.GreaterThan(decimal.Zero) {
			promos[i].MinCart = p.MinCart.String()
		}
	}

	resp := TierResponse{
		ID:             t.ID,
		Name:           t.Name,
		DurationMonths: t.DurationMonths,
		MinPurchase:    t.MinPurchase.String(),
		Promotions:     promos,
		LoyaltyEnabled: t.Loyalty.Enabled,
		ExternalClubID: t.ExternalClubID,
		PromotionSetID: t.PromotionSetID,
		LoyaltyTierID:  t.LoyaltyTierID,
		CreatedAt:      t.CreatedAt.Format(timeFormat),
		UpdatedAt:      t.UpdatedAt.Format(timeFormat),
	}
	if t.Loyalty.Enabled {
		resp.LoyaltyEarnRate = t.Loyalty.EarnRate.String()
	}
	return resp
}

// QueueItemResponse is the API representation of a sync queue item.
type QueueItemResponse struct {
	ID            string `json:"id" doc:"Unique identifier"`
	Action        string `json:"action" doc:"cancel_membership or upgrade_membership"`
	ClientRef     string `json:"client_ref" doc:"Winery client reference"`
	TierRef       string `json:"tier_ref" doc:"Target tier reference"`
	ClubRef       string `json:"club_ref,omitempty" doc:"Platform club reference"`
	MembershipRef string `json:"membership_ref,omitempty" doc:"Platform membership reference"`
	CustomerRef   string `json:"customer_ref" doc:"Customer reference"`
	OldTierRef    string `json:"old_tier_ref,omitempty" doc:"Previous tier reference (upgrades)"`
	OldClubRef    string `json:"old_club_ref,omitempty" doc:"Previous club reference (upgrades)"`
	Status        string `json:"status" doc:"Processing state"`
	Attempts      int    `json:"attempts" doc:"Processing attempts so far"`
	Reason        string `json:"reason,omitempty" doc:"Dead-letter reason"`
	NextAttemptAt string `json:"next_attempt_at,omitempty" doc:"Earliest next retry (ISO 8601)"`
	CreatedAt     string `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt     string `json:"updated_at" doc:"Last update timestamp (ISO 8601)"`
}

func toQueueItemResponse(item domain.SyncQueueItem) QueueItemResponse {
	resp := QueueItemResponse{
		ID:            item.ID,
		Action:        string(item.Action),
		ClientRef:     item.ClientRef,
		TierRef:       item.TierRef,
		ClubRef:       item.ClubRef,
		MembershipRef: item.MembershipRef,
		CustomerRef:   item.CustomerRef,
		OldTierRef:    item.OldTierRef,
		OldClubRef:    item.OldClubRef,
		Status:        string(item.Status),
		Attempts:      item.Attempts,
		Reason:        item.Reason,
		CreatedAt:     item.CreatedAt.Format(timeFormat),
		UpdatedAt:     item.UpdatedAt.Format(timeFormat),
	}
	if !item.NextAttemptAt.IsZero() {
		resp.NextAttemptAt = item.NextAttemptAt.Format(timeFormat)
	}
	return resp
}

// --- Create Tier ---

type PromotionBody struct {
	Name         string `json:"name" minLength:"1" maxLength:"255" doc:"Display name"`
	DiscountType string `json:"discount_type" enum:"percent,fixed_amount,free_shipping" doc:"Discount kind"`
	Amount       string `json:"amount" doc:"Discount amount (decimal string)"`
	AppliesTo    string `json:"applies_to,omitempty" default:"storewide" doc:"storewide or a collection reference"`
	MinCart      string `json:"min_cart,omitempty" doc:"Minimum cart amount (decimal string)"`
}

type CreateTierInput struct {
	Body struct {
		Name            string          `json:"name" minLength:"1" maxLength:"255" doc:"Display name"`
		DurationMonths  int             `json:"duration_months" minimum:"1" maximum:"120" doc:"Membership duration"`
		MinPurchase     string          `json:"min_purchase" doc:"Minimum purchase amount (decimal string)"`
		Promotions      []PromotionBody `json:"promotions,omitempty" doc:"Discount rules, first one is mandatory for provisioning"`
		LoyaltyEnabled  bool            `json:"loyalty_enabled,omitempty" doc:"Provision a loyalty tier"`
		LoyaltyEarnRate string          `json:"loyalty_earn_rate,omitempty" doc:"Points per currency unit (decimal string)"`
	}
}

type CreateTierOutput struct {
	Body TierResponse
}

// --- Get / List / Provision Tier ---

type GetTierInput struct {
	ID string `path:"id" doc:"Tier ID"`
}

type GetTierOutput struct {
	Body TierResponse
}

type ListTiersInput struct {
	Provisioned string `query:"provisioned" required:"false" enum:",true,false" doc:"Filter by provisioned state"`
	Limit       int    `query:"limit" required:"false" default:"50" doc:"Max results"`
	Offset      int    `query:"offset" required:"false" default:"0" doc:"Pagination offset"`
}

type ListTiersOutput struct {
	Body []TierResponse
}

type ProvisionTierInput struct {
	ID string `path:"id" doc:"Tier ID"`
}

type ProvisionTierOutput struct {
	Body TierResponse
}

// --- Monthly status ---

type MonthlyStatusInput struct {
	Body struct {
		ClientRef string `json:"client_ref" minLength:"1" doc:"Winery client reference"`
		Targets   []struct {
			CustomerRef string `json:"customer_ref" minLength:"1" doc:"Customer reference"`
			TierRef     string `json:"tier_ref" minLength:"1" doc:"Tier reference"`
		} `json:"targets" doc:"Enrolled customers to notify"`
	}
}

type MonthlyStatusOutput struct {
	Body struct {
		Sent int `json:"sent" doc:"Notifications dispatched"`
	}
}

// --- Sync queue ---

type EnqueueInput struct {
	Body struct {
		Action        string `json:"action" enum:"cancel_membership,upgrade_membership" doc:"Membership change to apply"`
		ClientRef     string `json:"client_ref" minLength:"1" doc:"Winery client reference"`
		TierRef       string `json:"tier_ref" minLength:"1" doc:"Target tier reference"`
		ClubRef       string `json:"club_ref,omitempty" doc:"Platform club reference"`
		MembershipRef string `json:"membership_ref,omitempty" doc:"Platform membership reference"`
		CustomerRef   string `json:"customer_ref" minLength:"1" doc:"Customer reference"`
		OldTierRef    string `json:"old_tier_ref,omitempty" doc:"Previous tier reference, required for upgrades"`
		OldClubRef    string `json:"old_club_ref,omitempty" doc:"Previous club reference"`
	}
}

type EnqueueOutput struct {
	Body QueueItemResponse
}

type GetQueueItemInput struct {
	ID string `path:"id" doc:"Queue item ID"`
}

type GetQueueItemOutput struct {
	Body QueueItemResponse
}

type ListQueueItemsInput struct {
	Status string `query:"status" enum:"queued,processing,succeeded,retry_pending,dead_letter" doc:"Processing state"`
	Limit  int    `query:"limit" required:"false" default:"50" doc:"Max results"`
}

type ListQueueItemsOutput struct {
	Body []QueueItemResponse
}

type ProcessBatchInput struct {
	Body struct {
		Limit int `json:"limit,omitempty" default:"10" minimum:"1" maximum:"100" doc:"Max items to process"`
	}
}

type ProcessBatchOutput struct {
	Body struct {
		Processed int `json:"processed" doc:"Items processed in this batch"`
	}
}

type ProcessItemInput struct {
	ID string `path:"id" doc:"Queue item ID"`
}

type ProcessItemOutput struct {
	Body QueueItemResponse
}

type RequeueInput struct {
	ID string `path:"id" doc:"Queue item ID"`
}

type RequeueOutput struct {
	Body QueueItemResponse
}

// Register adds all API routes to the Huma API.
func Register(api huma.API, tiers *app.TierService, sync *app.SyncProcessor) {
	huma.Register(api, huma.Operation{
		OperationID: "create-tier",
		Method:      http.MethodPost,
		Path:        "/api/v1/tiers",
		Summary:     "Create a new membership tier",
		Tags:        []string{"Tiers"},
	}, func(ctx context.Context, input *CreateTierInput) (*CreateTierOutput, error) {
		draft, err := toTierDraft(input)
		if err != nil {
			return nil, err
		}
		tier, err := tiers.Create(ctx, draft)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CreateTierOutput{Body: toTierResponse(tier)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tier",
		Method:      http.MethodGet,
		Path:        "/api/v1/tiers/{id}",
		Summary:     "Get a tier by ID",
		Tags:        []string{"Tiers"},
	}, func(ctx context.Context, input *GetTierInput) (*GetTierOutput, error) {
		tier, err := tiers.GetByID(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetTierOutput{Body: toTierResponse(tier)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tiers",
		Method:      http.MethodGet,
		Path:        "/api/v1/tiers",
		Summary:     "List tiers",
		Tags:        []string{"Tiers"},
	}, func(ctx context.Context, input *ListTiersInput) (*ListTiersOutput, error) {
		filter := domain.TierFilter{
			Limit:  input.Limit,
			Offset: input.Offset,
		}
		if input.Provisioned != "" {
			p := input.Provisioned == "true"
			filter.Provisioned = &p
		}

		result, err := tiers.List(ctx, filter)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]TierResponse, len(result))
		for i, t := range result {
			resp[i] = toTierResponse(t)
		}
		return &ListTiersOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "provision-tier",
		Method:      http.MethodPost,
		Path:        "/api/v1/tiers/{id}/provision",
		Summary:     "Provision a tier on the external platform",
		Tags:        []string{"Tiers"},
	}, func(ctx context.Context, input *ProvisionTierInput) (*ProvisionTierOutput, error) {
		tier, err := tiers.Provision(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ProvisionTierOutput{Body: toTierResponse(tier)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "send-monthly-status",
		Method:      http.MethodPost,
		Path:        "/api/v1/notifications/monthly-status",
		Summary:     "Dispatch monthly status notifications",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, input *MonthlyStatusInput) (*MonthlyStatusOutput, error) {
		targets := make([]app.StatusTarget, len(input.Body.Targets))
		for i, t := range input.Body.Targets {
			targets[i] = app.StatusTarget{CustomerRef: t.CustomerRef, TierRef: t.TierRef}
		}

		out := &MonthlyStatusOutput{}
		out.Body.Sent = tiers.SendMonthlyStatus(ctx, input.Body.ClientRef, targets)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "enqueue-sync-item",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync-queue",
		Summary:     "Enqueue a membership change",
		Tags:        []string{"SyncQueue"},
	}, func(ctx context.Context, input *EnqueueInput) (*EnqueueOutput, error) {
		item, err := sync.EnqueueRequest(ctx, app.SyncDraft{
			Action:        domain.Action(input.Body.Action),
			ClientRef:     input.Body.ClientRef,
			TierRef:       input.Body.TierRef,
			ClubRef:       input.Body.ClubRef,
			MembershipRef: input.Body.MembershipRef,
			CustomerRef:   input.Body.CustomerRef,
			OldTierRef:    input.Body.OldTierRef,
			OldClubRef:    input.Body.OldClubRef,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &EnqueueOutput{Body: toQueueItemResponse(item)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-sync-item",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync-queue/{id}",
		Summary:     "Get a queue item by ID",
		Tags:        []string{"SyncQueue"},
	}, func(ctx context.Context, input *GetQueueItemInput) (*GetQueueItemOutput, error) {
		item, err := sync.GetByID(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetQueueItemOutput{Body: toQueueItemResponse(item)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-sync-items",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync-queue",
		Summary:     "List queue items by status",
		Tags:        []string{"SyncQueue"},
	}, func(ctx context.Context, input *ListQueueItemsInput) (*ListQueueItemsOutput, error) {
		items, err := sync.ListByStatus(ctx, domain.Status(input.Status), input.Limit)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]QueueItemResponse, len(items))
		for i, item := range items {
			resp[i] = toQueueItemResponse(item)
		}
		return &ListQueueItemsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "process-sync-batch",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync-queue/process",
		Summary:     "Process due queue items",
		Description: "External triggers call this on their own schedule. Due retry_pending items are requeued first.",
		Tags:        []string{"SyncQueue"},
	}, func(ctx context.Context, input *ProcessBatchInput) (*ProcessBatchOutput, error) {
		processed, err := sync.ProcessBatch(ctx, input.Body.Limit)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &ProcessBatchOutput{}
		out.Body.Processed = processed
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "process-sync-item",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync-queue/{id}/process",
		Summary:     "Process a single queued item",
		Tags:        []string{"SyncQueue"},
	}, func(ctx context.Context, input *ProcessItemInput) (*ProcessItemOutput, error) {
		item, err := sync.ProcessItem(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ProcessItemOutput{Body: toQueueItemResponse(item)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "requeue-sync-item",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync-queue/{id}/requeue",
		Summary:     "Requeue a dead-lettered item",
		Tags:        []string{"SyncQueue"},
	}, func(ctx context.Context, input *RequeueInput) (*RequeueOutput, error) {
		item, err := sync.Requeue(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &RequeueOutput{Body: toQueueItemResponse(item)}, nil
	})
}

// toTierDraft parses the decimal strings of the create payload.
func toTierDraft(input *CreateTierInput) (app.TierDraft, error) {
	minPurchase, err := decimal.NewFromString(input.Body.MinPurchase)
	if err != nil {
		return app.TierDraft{}, huma.Error422UnprocessableEntity("min_purchase is not a valid decimal")
	}

	draft := app.TierDraft{
		Name:           input.Body.Name,
		DurationMonths: input.Body.DurationMonths,
		MinPurchase:    minPurchase,
		LoyaltyEnabled: input.Body.LoyaltyEnabled,
	}

	if input.Body.LoyaltyEarnRate != "" {
		rate, err := decimal.NewFromString(input.Body.LoyaltyEarnRate)
		if err != nil {
			return app.TierDraft{}, huma.Error422UnprocessableEntity("loyalty_earn_rate is not a valid decimal")
		}
		draft.LoyaltyEarnRate = rate
	}

	for _, p := range input.Body.Promotions {
		amount, err := decimal.NewFromString(p.Amount)
		if err != nil {
			return app.TierDraft{}, huma.Error422UnprocessableEntity("promotion amount is not a valid decimal")
		}
		spec := domain.PromotionSpec{
			Name:         p.Name,
			DiscountType: domain.DiscountType(p.DiscountType),
			Amount:       amount,
			AppliesTo:    p.AppliesTo,
		}
		if p.MinCart != "" {
			minCart, err := decimal.NewFromString(p.MinCart)
			if err != nil {
				return app.TierDraft{}, huma.Error422UnprocessableEntity("promotion min_cart is not a valid decimal")
			}
			spec.MinCart = minCart
		}
		draft.Promotions = append(draft.Promotions, spec)
	}

	return draft, nil
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrTierNotFound) {
		return huma.Error404NotFound("tier not found")
	}
	if errors.Is(err, domain.ErrItemNotFound) {
		return huma.Error404NotFound("queue item not found")
	}
	if errors.Is(err, domain.ErrMissingOldTier) {
		return huma.Error422UnprocessableEntity(domain.ErrMissingOldTier.Error())
	}

	var provErr *domain.ProvisioningError
	if errors.As(err, &provErr) {
		return huma.Error502BadGateway(provErr.Error())
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
