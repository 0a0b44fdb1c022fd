package spapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// MaxPricingBatch is the hard per-call identifier cap enforced by the
// competitive pricing endpoint.
const MaxPricingBatch = 20

// GetCompetitivePricing fetches competitive pricing for up to MaxPricingBatch
// ASINs in one marketplace. The response carries every offer the API knows
// about; offer selection is the fetcher's job, not the client's.
func (c *Client) GetCompetitivePricing(ctx context.Context, asins []string, marketplaceID string) ([]PricingResult, error) {
	if len(asins) == 0 {
		return nil, nil
	}
	if len(asins) > MaxPricingBatch {
		return nil, fmt.Errorf("spapi: pricing batch of %d exceeds cap %d", len(asins), MaxPricingBatch)
	}

	query := url.Values{}
	query.Set("MarketplaceId", marketplaceID)
	query.Set("Asins", strings.Join(asins, ","))
	query.Set("ItemType", "Asin")
	query.Set("ItemCondition", "New")
	query.Set("OfferType", "Consumer")

	respBody, err := c.doRequest(ctx, http.MethodGet, "/products/pricing/v0/competitivePrice", query, nil)
	if err != nil {
		return nil, fmt.Errorf("spapi: competitive pricing %s: %w", marketplaceID, err)
	}

	var payload struct {
		Payload []apiPricingItem `json:"payload"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, fmt.Errorf("spapi: decode pricing response: %w", err)
	}

	results := make([]PricingResult, 0, len(payload.Payload))
	for _, item := range payload.Payload {
		results = append(results, item.toPricingResult())
	}
	return results, nil
}
