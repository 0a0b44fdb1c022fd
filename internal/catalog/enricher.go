// Package catalog fetches best-effort display metadata for ASINs.
package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/sellerscope/arbscan/internal/domain"
	"github.com/sellerscope/arbscan/internal/platform/keepa"
	"github.com/sellerscope/arbscan/internal/platform/spapi"
)

// Primary is the first-choice catalog source.
type Primary interface {
	GetCatalogItem(ctx context.Context, asin, marketplaceID string) (spapi.CatalogItem, error)
}

// Fallback is queried only when the primary source fails.
type Fallback interface {
	GetProduct(ctx context.Context, asin, marketplaceCode string) (keepa.Product, error)
}

// Throttle gates external calls on a per-key minimum interval.
type Throttle interface {
	Wait(ctx context.Context, key string, minInterval time.Duration) error
}

// Enricher resolves display metadata. Enrichment is cosmetic: every failure
// is swallowed and the caller-supplied defaults stand (ASIN as title, empty
// image, zero rank).
type Enricher struct {
	primary  Primary
	fallback Fallback // may be nil
	throttle Throttle
	interval time.Duration
	logger   *slog.Logger
}

// NewEnricher creates an Enricher. fallback may be nil to disable the
// secondary provider.
func NewEnricher(primary Primary, fallback Fallback, throttle Throttle, interval time.Duration, logger *slog.Logger) *Enricher {
	return &Enricher{
		primary:  primary,
		fallback: fallback,
		throttle: throttle,
		interval: interval,
		logger:   logger.With(slog.String("component", "catalog")),
	}
}

// Enrich returns display metadata for asin, never an error.
func (e *Enricher) Enrich(ctx context.Context, asin string, mkt domain.Marketplace) domain.ItemMetadata {
	meta := domain.ItemMetadata{Title: asin}

	if err := e.throttle.Wait(ctx, "catalog", e.interval); err != nil {
		return meta
	}

	item, err := e.primary.GetCatalogItem(ctx, asin, mkt.MarketplaceID)
	if err == nil {
		applyCatalogItem(&meta, item)
		meta.EstMonthlySales = EstimateMonthlySales(meta.SalesRank)
		return meta
	}
	e.logger.Debug("primary catalog lookup failed",
		slog.String("asin", asin),
		slog.String("error", err.Error()),
	)

	if e.fallback == nil {
		return meta
	}

	product, err := e.fallback.GetProduct(ctx, asin, mkt.Code)
	if err != nil {
		e.logger.Debug("fallback catalog lookup failed",
			slog.String("asin", asin),
			slog.String("error", err.Error()),
		)
		return meta
	}
	if product.Title != "" {
		meta.Title = product.Title
	}
	if product.ImageURL != "" {
		meta.ImageURL = product.ImageURL
	}
	if product.SalesRank > 0 {
		meta.SalesRank = product.SalesRank
	}
	meta.EstMonthlySales = EstimateMonthlySales(meta.SalesRank)
	return meta
}

func applyCatalogItem(meta *domain.ItemMetadata, item spapi.CatalogItem) {
	if item.Title != "" {
		meta.Title = item.Title
	}
	if item.ImageURL != "" {
		meta.ImageURL = item.ImageURL
	}
	if item.SalesRank > 0 {
		meta.SalesRank = item.SalesRank
	}
}

// EstimateMonthlySales maps a sales rank to a rough monthly sales figure.
// The tiers are a coarse heuristic for display only; zero rank means no
// estimate.
func EstimateMonthlySales(rank int) int {
	switch {
	case rank <= 0:
		return 0
	case rank <= 100:
		return 3000
	case rank <= 1_000:
		return 1000
	case rank <= 10_000:
		return 300
	case rank <= 50_000:
		return 100
	case rank <= 100_000:
		return 30
	default:
		return 5
	}
}
