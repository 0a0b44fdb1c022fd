// Package evaluate computes per-marketplace profit figures and selects the
// best source marketplace. It is pure: no I/O, no clocks.
package evaluate

import (
	"github.com/sellerscope/arbscan/internal/domain"
)

// SourceQuote pairs a source-marketplace quote with its marketplace
// definition (needed for the static currency conversion).
type SourceQuote struct {
	Marketplace domain.Marketplace
	Quote       domain.PriceQuote
}

// Evaluator combines a home quote, source quotes, and a fee breakdown into
// profit results.
type Evaluator struct {
	vatRate float64
}

// New creates an Evaluator with the given VAT rate on home-market sales.
func New(vatRate float64) *Evaluator {
	return &Evaluator{vatRate: vatRate}
}

// Evaluate produces one profit result per source quote, in the order given,
// and the index of the best result. The best result is the one with the
// highest profit; exact profit ties are broken by higher ROI, then by the
// earlier position in the source list (the configured marketplace
// enumeration order). This makes selection deterministic rather than
// first-seen. ok is false when sources is empty.
//
// Formulas, all in home currency:
//
//	vatOnSale  = homePrice / (1 + vatRate) * vatRate
//	netRevenue = homePrice - vatOnSale
//	profit     = netRevenue - (sourcePriceHome + totalFees)
//	roi        = profit / sourcePriceHome * 100
//	margin     = profit / netRevenue * 100
func (e *Evaluator) Evaluate(home domain.PriceQuote, sources []SourceQuote, fees domain.FeeBreakdown) (results []domain.SourceProfit, bestIdx int, ok bool) {
	if len(sources) == 0 {
		return nil, 0, false
	}

	vatOnSale := home.Price / (1 + e.vatRate) * e.vatRate
	netRevenue := home.Price - vatOnSale

	results = make([]domain.SourceProfit, 0, len(sources))
	for _, src := range sources {
		priceHome := src.Marketplace.ToHomeCurrency(src.Quote.Price)
		profit := netRevenue - (priceHome + fees.Total)

		sp := domain.SourceProfit{
			Marketplace:    src.Marketplace.Code,
			SourcePrice:    src.Quote.Price,
			SourceCurrency: src.Quote.Currency,
			SourcePriceGBP: priceHome,
			OfferCount:     src.Quote.OfferCount,
			Profit:         profit,
		}
		if priceHome > 0 {
			sp.ROI = profit / priceHome * 100
		}
		if netRevenue > 0 {
			sp.ProfitMargin = profit / netRevenue * 100
		}
		results = append(results, sp)
	}

	bestIdx = 0
	for i := 1; i < len(results); i++ {
		if better(results[i], results[bestIdx]) {
			bestIdx = i
		}
	}
	return results, bestIdx, true
}

// better reports whether a beats b: higher profit, then higher ROI on an
// exact profit tie. Equal on both keeps the earlier entry.
func better(a, b domain.SourceProfit) bool {
	if a.Profit != b.Profit {
		return a.Profit > b.Profit
	}
	return a.ROI > b.ROI
}
