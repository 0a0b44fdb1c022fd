package domain

import "time"

// ProfitCategory classifies an opportunity by the sign of its best profit.
type ProfitCategory string

const (
	CategoryProfitable ProfitCategory = "profitable"
	CategoryBreakEven  ProfitCategory = "breakeven"
	CategoryLoss       ProfitCategory = "loss"
)

// Categorize maps a profit figure to its category. Pure function of the
// sign: >0 profitable, ==0 breakeven, <0 loss.
func Categorize(profit float64) ProfitCategory {
	switch {
	case profit > 0:
		return CategoryProfitable
	case profit == 0:
		return CategoryBreakEven
	default:
		return CategoryLoss
	}
}

// SourceProfit is the profit computation for buying in one source
// marketplace and selling in the home marketplace.
type SourceProfit struct {
	Marketplace    string  `json:"marketplace"`
	SourcePrice    float64 `json:"source_price"`
	SourceCurrency string  `json:"source_currency"`
	SourcePriceGBP float64 `json:"source_price_gbp"`
	OfferCount     int     `json:"offer_count"`
	Profit         float64 `json:"profit"`
	ROI            float64 `json:"roi"`
	ProfitMargin   float64 `json:"profit_margin"`
}

// ItemMetadata is best-effort display metadata for an ASIN. Absent fields
// keep their defaults: the ASIN itself as title, empty image, zero rank.
type ItemMetadata struct {
	Title           string `json:"title"`
	ImageURL        string `json:"image_url"`
	SalesRank       int    `json:"sales_rank"`
	EstMonthlySales int    `json:"est_monthly_sales"`
}

// Opportunity is one fully evaluated cross-marketplace arbitrage candidate.
type Opportunity struct {
	ID         string              `json:"id"`
	RunID      string              `json:"run_id"`
	ASIN       string              `json:"asin"`
	Item       ItemMetadata        `json:"item"`
	HomePrice  float64             `json:"home_price"`
	Fees       FeeBreakdown        `json:"fees"`
	Sources    []SourceProfit      `json:"sources"`
	Best       SourceProfit        `json:"best"`
	Category   ProfitCategory      `json:"category"`
	Changes    []PriceHistoryEntry `json:"price_changes,omitempty"`
	DetectedAt time.Time           `json:"detected_at"`
}

// Profitable reports whether the best source yields a strictly positive
// profit.
func (o Opportunity) Profitable() bool {
	return o.Category == CategoryProfitable
}
