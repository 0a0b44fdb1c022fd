package spapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// GetFeesEstimate fetches the marketplace fee estimate for selling one unit
// of an ASIN at the given listing price.
func (c *Client) GetFeesEstimate(ctx context.Context, asin string, price float64, currency, marketplaceID string) (FeesEstimate, error) {
	body := map[string]any{
		"FeesEstimateRequest": map[string]any{
			"MarketplaceId":     marketplaceID,
			"IsAmazonFulfilled": true,
			"PriceToEstimateFees": map[string]any{
				"ListingPrice": map[string]any{
					"Amount":       price,
					"CurrencyCode": currency,
				},
			},
			"Identifier": asin,
		},
	}

	path := fmt.Sprintf("/products/fees/v0/items/%s/feesEstimate", asin)
	respBody, err := c.doRequest(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return FeesEstimate{}, fmt.Errorf("spapi: fees estimate %s: %w", asin, err)
	}

	var payload struct {
		Payload struct {
			FeesEstimateResult struct {
				Status       string `json:"Status"`
				FeesEstimate struct {
					TotalFeesEstimate apiMoney     `json:"TotalFeesEstimate"`
					FeeDetailList     []apiFeeLine `json:"FeeDetailList"`
				} `json:"FeesEstimate"`
			} `json:"FeesEstimateResult"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return FeesEstimate{}, fmt.Errorf("spapi: decode fees response: %w", err)
	}

	result := payload.Payload.FeesEstimateResult
	est := FeesEstimate{
		Status: result.Status,
		Total:  result.FeesEstimate.TotalFeesEstimate.Amount,
		Lines:  make([]FeeLine, 0, len(result.FeesEstimate.FeeDetailList)),
	}
	for _, line := range result.FeesEstimate.FeeDetailList {
		est.Lines = append(est.Lines, FeeLine{
			Type:   line.FeeType,
			Amount: line.FeeAmount.Amount,
		})
	}
	return est, nil
}
