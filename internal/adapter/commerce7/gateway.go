// Package commerce7 implements the CRM gateway against a Commerce7-style
// wine-club platform API.
package commerce7

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/vintbound/clubsync/internal/domain"
)

// Compile-time check: Gateway implements domain.CRMGateway.
var _ domain.CRMGateway = (*Gateway)(nil)

// Config holds the platform connection settings. No business code reads
// the environment directly; everything arrives through this struct.
type Config struct {
	BaseURL   string        `envconfig:"BASE_URL" default:"https://api.commerce7.com/v1"`
	Tenant    string        `envconfig:"TENANT" required:"true"`
	AppID     string        `envconfig:"APP_ID" required:"true"`
	AppSecret string        `envconfig:"APP_SECRET" required:"true"`
	Timeout   time.Duration `envconfig:"TIMEOUT" default:"15s"`
}

// ConfigFromEnv builds Config from CLUBSYNC_CRM_* environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("CLUBSYNC_CRM", &cfg); err != nil {
		return Config{}, fmt.Errorf("reading crm config: %w", err)
	}
	return cfg, nil
}

// Gateway is the Commerce7 implementation of domain.CRMGateway.
type Gateway struct {
	cfg    Config
	client *http.Client
}

// New creates a gateway for the configured tenant.
func New(cfg Config) *Gateway {
	return &Gateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- Wire types ---

type clubPayload struct {
	Title          string `json:"title"`
	DurationMonths int    `json:"durationMonths"`
	MinPurchase    string `json:"minPurchaseAmount"`
	AppData        struct {
		TierRef string `json:"tierRef"`
	} `json:"appData"`
}

type promotionPayload struct {
	Title          string `json:"title"`
	ClubID         string `json:"clubId"`
	PromotionSetID string `json:"promotionSetId,omitempty"`
	DiscountType   string `json:"discountType"`
	Amount         string `json:"amount"`
	AppliesTo      string `json:"appliesTo"`
	MinCartAmount  string `json:"minCartAmount,omitempty"`
}

type promotionSetPayload struct {
	Title  string `json:"title"`
	ClubID string `json:"clubId"`
}

type loyaltyTierPayload struct {
	Title    string `json:"title"`
	ClubID   string `json:"clubId"`
	EarnRate string `json:"earnRate"`
}

type membershipPayload struct {
	ClubID     string `json:"clubId,omitempty"`
	TierRef    string `json:"tierRef"`
	CustomerID string `json:"customerId"`
}

type idResponse struct {
	ID string `json:"id"`
}

type clubListResponse struct {
	Clubs []idResponse `json:"clubs"`
}

type membershipListResponse struct {
	ClubMemberships []idResponse `json:"clubMemberships"`
}

// --- Clubs ---

func (g *Gateway) CreateClub(ctx context.Context, attrs domain.ClubAttributes) (string, error) {
	id, err := g.create(ctx, "/club", clubBody(attrs))
	if err == nil {
		return id, nil
	}

	// A timeout leaves the outcome ambiguous: the club may exist server
	// side. Look it up by tier reference before reporting failure, so a
	// saga retry cannot double-create.
	if isTimeout(err) {
		if found, lookupErr := g.findClubByTierRef(ctx, attrs.TierRef); lookupErr == nil && found != "" {
			return found, nil
		}
	}
	return "", err
}

func (g *Gateway) UpdateClub(ctx context.Context, id string, attrs domain.ClubAttributes) (string, error) {
	if err := g.do(ctx, http.MethodPut, "/club/"+id, clubBody(attrs), nil); err != nil {
		return "", err
	}
	return id, nil
}

func (g *Gateway) DeleteClub(ctx context.Context, id string) error {
	return g.do(ctx, http.MethodDelete, "/club/"+id, nil, nil)
}

func (g *Gateway) findClubByTierRef(ctx context.Context, tierRef string) (string, error) {
	var out clubListResponse
	query := "/club?appDataValue=" + url.QueryEscape(tierRef)
	if err := g.do(ctx, http.MethodGet, query, nil, &out); err != nil {
		return "", err
	}
	if len(out.Clubs) == 0 {
		return "", nil
	}
	return out.Clubs[0].ID, nil
}

// --- Promotions ---

func (g *Gateway) CreatePromotion(ctx context.Context, attrs domain.PromotionAttributes) (string, error) {
	return g.create(ctx, "/promotion", promotionBody(attrs))
}

func (g *Gateway) UpdatePromotion(ctx context.Context, id string, attrs domain.PromotionAttributes) (string, error) {
	if err := g.do(ctx, http.MethodPut, "/promotion/"+id, promotionBody(attrs), nil); err != nil {
		return "", err
	}
	return id, nil
}

func (g *Gateway) DeletePromotion(ctx context.Context, id string) error {
	return g.do(ctx, http.MethodDelete, "/promotion/"+id, nil, nil)
}

func (g *Gateway) CreatePromotionSet(ctx context.Context, attrs domain.PromotionSetAttributes) (string, error) {
	return g.create(ctx, "/promotion-set", promotionSetPayload{
		Title:  attrs.Name,
		ClubID: attrs.ClubID,
	})
}

func (g *Gateway) DeletePromotionSet(ctx context.Context, id string) error {
	return g.do(ctx, http.MethodDelete, "/promotion-set/"+id, nil, nil)
}

// --- Loyalty ---

func (g *Gateway) CreateLoyaltyTier(ctx context.Context, attrs domain.LoyaltyTierAttributes) (string, error) {
	return g.create(ctx, "/loyalty/tier", loyaltyTierPayload{
		Title:    attrs.Name,
		ClubID:   attrs.ClubID,
		EarnRate: attrs.EarnRate.String(),
	})
}

func (g *Gateway) DeleteLoyaltyTier(ctx context.Context, id string) error {
	return g.do(ctx, http.MethodDelete, "/loyalty/tier/"+id, nil, nil)
}

// --- Memberships ---

// CancelMembership targets the stored membership id when present and
// falls back to a lookup by customer and club. The platform's cancel is a
// soft cancellation.
func (g *Gateway) CancelMembership(ctx context.Context, params domain.MembershipParams) error {
	membershipID := params.MembershipRef
	if membershipID == "" {
		found, err := g.findMembership(ctx, params)
		if err != nil {
			return err
		}
		membershipID = found
	}

	return g.do(ctx, http.MethodPost, "/club-membership/"+membershipID+"/cancel", nil, nil)
}

func (g *Gateway) AddMembership(ctx context.Context, params domain.MembershipParams) error {
	return g.do(ctx, http.MethodPost, "/club-membership", membershipPayload{
		ClubID:     params.ClubRef,
		TierRef:    params.TierRef,
		CustomerID: params.CustomerRef,
	}, nil)
}

func (g *Gateway) findMembership(ctx context.Context, params domain.MembershipParams) (string, error) {
	q := url.Values{}
	q.Set("customerId", params.CustomerRef)
	if params.ClubRef != "" {
		q.Set("clubId", params.ClubRef)
	}

	var out membershipListResponse
	if err := g.do(ctx, http.MethodGet, "/club-membership?"+q.Encode(), nil, &out); err != nil {
		return "", err
	}
	if len(out.ClubMemberships) == 0 {
		return "", domain.Fatal(fmt.Errorf("no membership found for customer %s", params.CustomerRef))
	}
	return out.ClubMemberships[0].ID, nil
}

// --- Transport ---

// create POSTs a payload and returns the minted resource id.
func (g *Gateway) create(ctx context.Context, path string, payload any) (string, error) {
	var out idResponse
	if err := g.do(ctx, http.MethodPost, path, payload, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", domain.Fatal(fmt.Errorf("POST %s: response carried no id", path))
	}
	return out.ID, nil
}

// do performs one API call and classifies the outcome. Transport errors,
// timeouts, 408/429 and 5xx responses are retryable; any other non-2xx
// response is fatal.
func (g *Gateway) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return domain.Fatal(fmt.Errorf("encoding request: %w", err))
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, body)
	if err != nil {
		return domain.Fatal(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Tenant", g.cfg.Tenant)
	req.SetBasicAuth(g.cfg.AppID, g.cfg.AppSecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return domain.Retryable(fmt.Errorf("%s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		err := fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, respBody)
		if retryableStatus(resp.StatusCode) {
			return domain.Retryable(err)
		}
		return domain.Fatal(err)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return domain.Retryable(fmt.Errorf("%s %s: decoding response: %w", method, path, err))
		}
	}
	return nil
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= 500
}

// isTimeout reports whether the call failed without a definitive server
// response.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func clubBody(attrs domain.ClubAttributes) clubPayload {
	p := clubPayload{
		Title:          attrs.Name,
		DurationMonths: attrs.DurationMonths,
		MinPurchase:    attrs.MinPurchase.String(),
	}
	p.AppData.TierRef = attrs.TierRef
	return p
}

func promotionBody(attrs domain.PromotionAttributes) promotionPayload {
	p := promotionPayload{
		Title:          attrs.Name,
		ClubID:         attrs.ClubID,
		PromotionSetID: attrs.SetID,
		DiscountType:   string(attrs.DiscountType),
		Amount:         attrs.Amount.String(),
		AppliesTo:      attrs.AppliesTo,
	}
	if attrs.MinCart.GreaterThan(decimal.Zero) {
		p.MinCartAmount = attrs.MinCart.String()
	}
	return p
}
