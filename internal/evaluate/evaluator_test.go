package evaluate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellerscope/arbscan/internal/domain"
)

func mkt(code, currency string, rate float64, home bool) domain.Marketplace {
	return domain.Marketplace{
		Code:           code,
		MarketplaceID:  "ID-" + code,
		Currency:       currency,
		ConversionRate: rate,
		Home:           home,
	}
}

func TestEvaluateSingleSource(t *testing.T) {
	// Home sale at 20.00 GBP, source buy at 10.00 EUR converted at 0.86,
	// 3.00 GBP total fees, 20% VAT on the sale.
	ev := New(0.20)

	home := domain.PriceQuote{ASIN: "B000TEST01", Marketplace: "UK", Price: 20.00, Currency: "GBP"}
	sources := []SourceQuote{
		{
			Marketplace: mkt("DE", "EUR", 0.86, false),
			Quote:       domain.PriceQuote{ASIN: "B000TEST01", Marketplace: "DE", Price: 10.00, Currency: "EUR", OfferCount: 4},
		},
	}
	fees := domain.FeeBreakdown{Total: 3.00}

	results, bestIdx, ok := ev.Evaluate(home, sources, fees)
	require.True(t, ok)
	require.Len(t, results, 1)
	assert.Equal(t, 0, bestIdx)

	got := results[0]
	assert.Equal(t, "DE", got.Marketplace)
	assert.Equal(t, "EUR", got.SourceCurrency)
	assert.Equal(t, 4, got.OfferCount)
	assert.InDelta(t, 8.60, got.SourcePriceGBP, 0.001)
	// vatOnSale = 20 / 1.2 * 0.2 = 3.3333; netRevenue = 16.6667
	// profit = 16.6667 - (8.60 + 3.00) = 5.0667
	assert.InDelta(t, 5.0667, got.Profit, 0.001)
	assert.InDelta(t, 58.9147, got.ROI, 0.01)
	assert.InDelta(t, 30.40, got.ProfitMargin, 0.01)
}

func TestEvaluateBestByProfit(t *testing.T) {
	ev := New(0.20)
	home := domain.PriceQuote{Price: 30.00, Currency: "GBP"}
	fees := domain.FeeBreakdown{Total: 4.00}

	sources := []SourceQuote{
		{Marketplace: mkt("DE", "EUR", 0.86, false), Quote: domain.PriceQuote{Price: 18.00, Currency: "EUR"}},
		{Marketplace: mkt("FR", "EUR", 0.86, false), Quote: domain.PriceQuote{Price: 12.00, Currency: "EUR"}},
		{Marketplace: mkt("IT", "EUR", 0.86, false), Quote: domain.PriceQuote{Price: 15.00, Currency: "EUR"}},
	}

	results, bestIdx, ok := ev.Evaluate(home, sources, fees)
	require.True(t, ok)
	require.Len(t, results, 3)
	// Cheapest source wins on profit.
	assert.Equal(t, 1, bestIdx)
	assert.Equal(t, "FR", results[bestIdx].Marketplace)
	assert.Greater(t, results[1].Profit, results[2].Profit)
	assert.Greater(t, results[2].Profit, results[0].Profit)
}

func TestEvaluateProfitTieBrokenByROI(t *testing.T) {
	ev := New(0.0)
	home := domain.PriceQuote{Price: 20.00, Currency: "GBP"}
	fees := domain.FeeBreakdown{Total: 0}

	// Identical converted prices yield identical profit and ROI; the
	// earlier source must win.
	sources := []SourceQuote{
		{Marketplace: mkt("DE", "EUR", 0.86, false), Quote: domain.PriceQuote{Price: 10.00, Currency: "EUR"}},
		{Marketplace: mkt("FR", "EUR", 0.86, false), Quote: domain.PriceQuote{Price: 10.00, Currency: "EUR"}},
	}

	results, bestIdx, ok := ev.Evaluate(home, sources, fees)
	require.True(t, ok)
	assert.InDelta(t, results[0].Profit, results[1].Profit, 1e-9)
	assert.Equal(t, 0, bestIdx)
}

func TestEvaluateLossStillReported(t *testing.T) {
	ev := New(0.20)
	home := domain.PriceQuote{Price: 10.00, Currency: "GBP"}
	fees := domain.FeeBreakdown{Total: 5.00}

	sources := []SourceQuote{
		{Marketplace: mkt("ES", "EUR", 0.86, false), Quote: domain.PriceQuote{Price: 12.00, Currency: "EUR"}},
	}

	results, _, ok := ev.Evaluate(home, sources, fees)
	require.True(t, ok)
	assert.Negative(t, results[0].Profit)
	assert.Equal(t, domain.CategoryLoss, domain.Categorize(results[0].Profit))
}

func TestEvaluateNoSources(t *testing.T) {
	ev := New(0.20)
	_, _, ok := ev.Evaluate(domain.PriceQuote{Price: 20}, nil, domain.FeeBreakdown{})
	assert.False(t, ok)
}

func TestCategorize(t *testing.T) {
	assert.Equal(t, domain.CategoryProfitable, domain.Categorize(0.01))
	assert.Equal(t, domain.CategoryBreakEven, domain.Categorize(0))
	assert.Equal(t, domain.CategoryLoss, domain.Categorize(-0.01))
}
