package spapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// GetCatalogItem fetches display metadata (title, image, sales rank) for one
// ASIN in one marketplace.
func (c *Client) GetCatalogItem(ctx context.Context, asin, marketplaceID string) (CatalogItem, error) {
	query := url.Values{}
	query.Set("marketplaceIds", marketplaceID)
	query.Set("includedData", "summaries,images,salesRanks")

	path := fmt.Sprintf("/catalog/2022-04-01/items/%s", asin)
	respBody, err := c.doRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return CatalogItem{}, fmt.Errorf("spapi: catalog item %s: %w", asin, err)
	}

	var item apiCatalogItem
	if err := json.Unmarshal(respBody, &item); err != nil {
		return CatalogItem{}, fmt.Errorf("spapi: decode catalog response: %w", err)
	}
	return item.toCatalogItem(), nil
}
