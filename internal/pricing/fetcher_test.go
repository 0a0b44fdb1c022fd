package pricing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellerscope/arbscan/internal/domain"
	"github.com/sellerscope/arbscan/internal/platform/spapi"
)

type fakePricingSource struct {
	results []spapi.PricingResult
	err     error
	gotASIN []string
	gotMkt  string
}

func (f *fakePricingSource) GetCompetitivePricing(ctx context.Context, asins []string, marketplaceID string) ([]spapi.PricingResult, error) {
	f.gotASIN = asins
	f.gotMkt = marketplaceID
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type noopThrottle struct{}

func (noopThrottle) Wait(ctx context.Context, key string, minInterval time.Duration) error {
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func deMarket() domain.Marketplace {
	return domain.Marketplace{Code: "DE", MarketplaceID: "A1PA6795UKMFR9", Currency: "EUR", ConversionRate: 0.86}
}

func listingOffer(amount float64, buyBox, featured bool) spapi.Offer {
	return spapi.Offer{
		Condition:     "New",
		BuyBoxWinner:  buyBox,
		FeaturedOffer: featured,
		Price:         spapi.PriceSource{Kind: spapi.PriceListing, Amount: amount, Currency: "EUR"},
	}
}

func TestFetchBatchSelectsBuyBoxWinner(t *testing.T) {
	src := &fakePricingSource{results: []spapi.PricingResult{{
		ASIN:       "B000TEST01",
		OfferCount: 3,
		Offers: []spapi.Offer{
			listingOffer(12.00, false, true),
			listingOffer(11.00, true, false),
			listingOffer(10.00, false, false),
		},
	}}}
	f := NewFetcher(src, noopThrottle{}, 0, testLogger())

	quotes, err := f.FetchBatch(context.Background(), []string{"B000TEST01"}, deMarket())
	require.NoError(t, err)
	require.Contains(t, quotes, "B000TEST01")

	q := quotes["B000TEST01"]
	assert.InDelta(t, 11.00, q.Price, 1e-9)
	assert.Equal(t, "EUR", q.Currency)
	assert.Equal(t, 3, q.OfferCount)
	assert.Equal(t, "DE", q.Marketplace)
	assert.Equal(t, "A1PA6795UKMFR9", src.gotMkt)
}

func TestFetchBatchFallsBackToFeaturedThenFirst(t *testing.T) {
	src := &fakePricingSource{results: []spapi.PricingResult{{
		ASIN: "B000TEST01",
		Offers: []spapi.Offer{
			listingOffer(12.00, false, false),
			listingOffer(11.00, false, true),
		},
	}}}
	f := NewFetcher(src, noopThrottle{}, 0, testLogger())

	quotes, err := f.FetchBatch(context.Background(), []string{"B000TEST01"}, deMarket())
	require.NoError(t, err)
	assert.InDelta(t, 11.00, quotes["B000TEST01"].Price, 1e-9)

	// No featured either: the first eligible offer is used.
	src.results[0].Offers[1].FeaturedOffer = false
	quotes, err = f.FetchBatch(context.Background(), []string{"B000TEST01"}, deMarket())
	require.NoError(t, err)
	assert.InDelta(t, 12.00, quotes["B000TEST01"].Price, 1e-9)
}

func TestFetchBatchExcludesUsedOffers(t *testing.T) {
	used := listingOffer(5.00, true, false)
	used.Condition = "Used"

	src := &fakePricingSource{results: []spapi.PricingResult{{
		ASIN:   "B000TEST01",
		Offers: []spapi.Offer{used, listingOffer(9.00, false, false)},
	}}}
	f := NewFetcher(src, noopThrottle{}, 0, testLogger())

	quotes, err := f.FetchBatch(context.Background(), []string{"B000TEST01"}, deMarket())
	require.NoError(t, err)
	assert.InDelta(t, 9.00, quotes["B000TEST01"].Price, 1e-9)
}

func TestFetchBatchAcceptsUnspecifiedCondition(t *testing.T) {
	offer := listingOffer(7.50, false, false)
	offer.Condition = ""

	src := &fakePricingSource{results: []spapi.PricingResult{{
		ASIN:   "B000TEST01",
		Offers: []spapi.Offer{offer},
	}}}
	f := NewFetcher(src, noopThrottle{}, 0, testLogger())

	quotes, err := f.FetchBatch(context.Background(), []string{"B000TEST01"}, deMarket())
	require.NoError(t, err)
	assert.InDelta(t, 7.50, quotes["B000TEST01"].Price, 1e-9)
}

func TestFetchBatchOmitsASINWithoutUsableQuote(t *testing.T) {
	src := &fakePricingSource{results: []spapi.PricingResult{
		{
			ASIN:   "B000NOPE01",
			Offers: []spapi.Offer{{Condition: "New", Price: spapi.PriceSource{Kind: spapi.PriceNone}}},
		},
		{
			ASIN:   "B000GOOD01",
			Offers: []spapi.Offer{listingOffer(4.00, true, false)},
		},
	}}
	f := NewFetcher(src, noopThrottle{}, 0, testLogger())

	quotes, err := f.FetchBatch(context.Background(), []string{"B000NOPE01", "B000GOOD01"}, deMarket())
	require.NoError(t, err)
	assert.NotContains(t, quotes, "B000NOPE01")
	assert.Contains(t, quotes, "B000GOOD01")
}

func TestFetchBatchSourceError(t *testing.T) {
	src := &fakePricingSource{err: errors.New("boom")}
	f := NewFetcher(src, noopThrottle{}, 0, testLogger())

	_, err := f.FetchBatch(context.Background(), []string{"B000TEST01"}, deMarket())
	assert.Error(t, err)
}

func TestFetchBatchEmptyInput(t *testing.T) {
	src := &fakePricingSource{}
	f := NewFetcher(src, noopThrottle{}, 0, testLogger())

	quotes, err := f.FetchBatch(context.Background(), nil, deMarket())
	require.NoError(t, err)
	assert.Empty(t, quotes)
	assert.Nil(t, src.gotASIN)
}
