// Package keepa is a minimal client for the Keepa product API, used as the
// secondary catalog source when the primary lookup fails.
package keepa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sellerscope/arbscan/internal/domain"
)

// keepa domain values for the marketplaces the scanner supports.
var domainIDs = map[string]int{
	"UK": 2,
	"DE": 3,
	"FR": 4,
	"IT": 8,
	"ES": 9,
}

// Client is the Keepa REST client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new Keepa client. An empty apiKey disables the client;
// GetProduct then fails fast with domain.ErrUnauthorized.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Product is the subset of Keepa product data the enricher consumes.
type Product struct {
	Title     string
	ImageURL  string
	SalesRank int
}

// GetProduct fetches product metadata for one ASIN in one marketplace.
func (c *Client) GetProduct(ctx context.Context, asin, marketplaceCode string) (Product, error) {
	if c.apiKey == "" {
		return Product{}, fmt.Errorf("keepa: no api key: %w", domain.ErrUnauthorized)
	}

	domainID, ok := domainIDs[marketplaceCode]
	if !ok {
		return Product{}, fmt.Errorf("keepa: unsupported marketplace %q", marketplaceCode)
	}

	query := url.Values{}
	query.Set("key", c.apiKey)
	query.Set("domain", fmt.Sprintf("%d", domainID))
	query.Set("asin", asin)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/product?"+query.Encode(), nil)
	if err != nil {
		return Product{}, fmt.Errorf("keepa: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Product{}, fmt.Errorf("keepa: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Product{}, fmt.Errorf("keepa: read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return Product{}, fmt.Errorf("%w: keepa tokens exhausted", domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return Product{}, fmt.Errorf("keepa: HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var payload struct {
		Products []struct {
			Title      string           `json:"title"`
			ImagesCSV  string           `json:"imagesCSV"`
			SalesRanks map[string][]int `json:"salesRanks"`
		} `json:"products"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return Product{}, fmt.Errorf("keepa: decode response: %w", err)
	}
	if len(payload.Products) == 0 {
		return Product{}, fmt.Errorf("keepa: product %s: %w", asin, domain.ErrNotFound)
	}

	p := payload.Products[0]
	out := Product{Title: p.Title}
	if p.ImagesCSV != "" {
		out.ImageURL = "https://images-na.ssl-images-amazon.com/images/I/" + firstCSVField(p.ImagesCSV)
	}
	// salesRanks maps category ID to a [timestamp, rank, ...] series; the
	// last value of any series is the current rank.
	for _, series := range p.SalesRanks {
		if len(series) >= 2 {
			out.SalesRank = series[len(series)-1]
			break
		}
	}
	return out, nil
}

func firstCSVField(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			return s[:i]
		}
	}
	return s
}
