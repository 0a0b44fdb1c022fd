package domain

// PriceQuote is the selected competitive price for one ASIN in one
// marketplace. Quotes are produced fresh per scan and never persisted as-is;
// only derived facts (PriceHistoryEntry, Opportunity) are stored.
type PriceQuote struct {
	ASIN        string
	Marketplace string // Marketplace.Code
	Price       float64
	Currency    string
	OfferCount  int
	SalesRank   int // 0 when the pricing response carried no rank hint
}

// FeeBreakdown is the structured marketplace fee estimate for selling one
// unit at a given listing price.
//
// Total always equals ReferralFee + FulfillmentFee + OtherFees +
// DigitalServicesFee. When the fee source does not report a digital services
// line, it is derived as a fixed percentage of the reported fees.
type FeeBreakdown struct {
	ASIN               string
	Marketplace        string
	ReferralFee        float64
	FulfillmentFee     float64
	OtherFees          float64
	DigitalServicesFee float64
	Total              float64
}
