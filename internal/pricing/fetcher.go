// Package pricing selects the best available new-condition competitive price
// per ASIN and marketplace.
package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sellerscope/arbscan/internal/domain"
	"github.com/sellerscope/arbscan/internal/platform/spapi"
)

// Source retrieves raw competitive pricing from the external API.
type Source interface {
	GetCompetitivePricing(ctx context.Context, asins []string, marketplaceID string) ([]spapi.PricingResult, error)
}

// Throttle gates external calls on a per-key minimum interval.
type Throttle interface {
	Wait(ctx context.Context, key string, minInterval time.Duration) error
}

// Fetcher maps batches of ASINs to selected price quotes for one marketplace
// per call. Every call is gated by the limiter under the key
// "pricing:<marketplace code>", so marketplaces throttle independently.
type Fetcher struct {
	source   Source
	throttle Throttle
	interval time.Duration
	logger   *slog.Logger
}

// NewFetcher creates a Fetcher. interval is the minimum spacing between
// pricing calls that share a marketplace.
func NewFetcher(source Source, throttle Throttle, interval time.Duration, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		source:   source,
		throttle: throttle,
		interval: interval,
		logger:   logger.With(slog.String("component", "pricing")),
	}
}

// FetchBatch returns the selected quote per ASIN for one marketplace,
// omitting ASINs with no usable quote. The batch must respect the external
// per-call cap; callers batch accordingly.
func (f *Fetcher) FetchBatch(ctx context.Context, asins []string, mkt domain.Marketplace) (map[string]domain.PriceQuote, error) {
	if len(asins) == 0 {
		return map[string]domain.PriceQuote{}, nil
	}

	if err := f.throttle.Wait(ctx, "pricing:"+mkt.Code, f.interval); err != nil {
		return nil, err
	}

	results, err := f.source.GetCompetitivePricing(ctx, asins, mkt.MarketplaceID)
	if err != nil {
		return nil, fmt.Errorf("pricing: fetch %s batch of %d: %w", mkt.Code, len(asins), err)
	}

	quotes := make(map[string]domain.PriceQuote, len(results))
	for _, res := range results {
		offer, ok := selectOffer(res.Offers)
		if !ok {
			f.logger.Debug("no usable offer",
				slog.String("asin", res.ASIN),
				slog.String("marketplace", mkt.Code),
			)
			continue
		}
		quotes[res.ASIN] = domain.PriceQuote{
			ASIN:        res.ASIN,
			Marketplace: mkt.Code,
			Price:       offer.Price.Amount,
			Currency:    offer.Price.Currency,
			OfferCount:  res.OfferCount,
			SalesRank:   res.SalesRank,
		}
	}
	return quotes, nil
}

// selectOffer picks one representative offer: new or unspecified condition
// only, then buy-box winner, then featured offer, then the first remaining.
// Returns false when nothing resolves to a usable price.
func selectOffer(offers []spapi.Offer) (spapi.Offer, bool) {
	eligible := make([]spapi.Offer, 0, len(offers))
	for _, o := range offers {
		if !newOrUnspecified(o.Condition) {
			continue
		}
		if !o.Price.Usable() {
			continue
		}
		eligible = append(eligible, o)
	}
	if len(eligible) == 0 {
		return spapi.Offer{}, false
	}

	for _, o := range eligible {
		if o.BuyBoxWinner {
			return o, true
		}
	}
	for _, o := range eligible {
		if o.FeaturedOffer {
			return o, true
		}
	}
	return eligible[0], true
}

// newOrUnspecified keeps new-condition and condition-less offers;
// used-condition offers are excluded from selection.
func newOrUnspecified(condition string) bool {
	if condition == "" {
		return true
	}
	return strings.EqualFold(condition, "new")
}
