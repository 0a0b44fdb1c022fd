package spapi

// PriceSourceKind tags which price field a quote was resolved from. Offers
// are decoded into this sum type once at the boundary so downstream code
// never re-inspects optional nested fields.
type PriceSourceKind int

const (
	// PriceNone means no price field resolved to a usable amount+currency.
	PriceNone PriceSourceKind = iota
	// PriceListing means the price came from the offer's listing price.
	PriceListing
	// PriceLanded means the listing price was absent and the landed price
	// (price + shipping) was used instead.
	PriceLanded
)

// PriceSource is the resolved price of one offer.
type PriceSource struct {
	Kind     PriceSourceKind
	Amount   float64
	Currency string
}

// Usable reports whether the source carries a positive amount and a
// currency.
func (p PriceSource) Usable() bool {
	return p.Kind != PriceNone && p.Amount > 0 && p.Currency != ""
}

// Offer is one decoded competitive offer for an ASIN.
type Offer struct {
	Condition     string // "New", "Used", or "" when unspecified
	BuyBoxWinner  bool
	FeaturedOffer bool
	Price         PriceSource
}

// PricingResult groups the decoded offers for one ASIN in one marketplace.
type PricingResult struct {
	ASIN       string
	Offers     []Offer
	OfferCount int
	SalesRank  int
}

// --------------------------------------------------------------------------
// Wire DTOs
// --------------------------------------------------------------------------

type apiMoney struct {
	Amount       float64 `json:"Amount"`
	CurrencyCode string  `json:"CurrencyCode"`
}

type apiOffer struct {
	Condition      string    `json:"condition"`
	IsBuyBoxWinner bool      `json:"IsBuyBoxWinner"`
	IsFeatured     bool      `json:"IsFeaturedMerchant"`
	ListingPrice   *apiMoney `json:"ListingPrice"`
	LandedPrice    *apiMoney `json:"LandedPrice"`
}

// resolvePrice collapses the optional listing/landed price fields into a
// tagged PriceSource. Listing price wins when present and usable.
func (o apiOffer) resolvePrice() PriceSource {
	if p := o.ListingPrice; p != nil && p.Amount > 0 && p.CurrencyCode != "" {
		return PriceSource{Kind: PriceListing, Amount: p.Amount, Currency: p.CurrencyCode}
	}
	if p := o.LandedPrice; p != nil && p.Amount > 0 && p.CurrencyCode != "" {
		return PriceSource{Kind: PriceLanded, Amount: p.Amount, Currency: p.CurrencyCode}
	}
	return PriceSource{Kind: PriceNone}
}

type apiPricingItem struct {
	ASIN       string     `json:"ASIN"`
	Offers     []apiOffer `json:"Offers"`
	OfferCount int        `json:"OfferCount"`
	SalesRank  int        `json:"SalesRank"`
}

func (it apiPricingItem) toPricingResult() PricingResult {
	res := PricingResult{
		ASIN:       it.ASIN,
		OfferCount: it.OfferCount,
		SalesRank:  it.SalesRank,
		Offers:     make([]Offer, 0, len(it.Offers)),
	}
	for _, o := range it.Offers {
		res.Offers = append(res.Offers, Offer{
			Condition:     o.Condition,
			BuyBoxWinner:  o.IsBuyBoxWinner,
			FeaturedOffer: o.IsFeatured,
			Price:         o.resolvePrice(),
		})
	}
	return res
}

type apiFeeLine struct {
	FeeType   string   `json:"FeeType"`
	FeeAmount apiMoney `json:"FeeAmount"`
}

// FeeLine is one classified fee line item from a fee estimate.
type FeeLine struct {
	Type   string
	Amount float64
}

// FeesEstimate is the decoded fee estimate for one ASIN at one listing
// price.
type FeesEstimate struct {
	Status string
	Lines  []FeeLine
	Total  float64
}

type apiCatalogItem struct {
	Summaries []struct {
		ItemName string `json:"itemName"`
	} `json:"summaries"`
	Images []struct {
		Images []struct {
			Link string `json:"link"`
		} `json:"images"`
	} `json:"images"`
	SalesRanks []struct {
		Ranks []struct {
			Rank int `json:"rank"`
		} `json:"classificationRanks"`
	} `json:"salesRanks"`
}

// CatalogItem is the decoded display metadata for an ASIN. Empty fields mean
// the response did not carry them.
type CatalogItem struct {
	Title     string
	ImageURL  string
	SalesRank int
}

func (it apiCatalogItem) toCatalogItem() CatalogItem {
	var out CatalogItem
	if len(it.Summaries) > 0 {
		out.Title = it.Summaries[0].ItemName
	}
	if len(it.Images) > 0 && len(it.Images[0].Images) > 0 {
		out.ImageURL = it.Images[0].Images[0].Link
	}
	if len(it.SalesRanks) > 0 && len(it.SalesRanks[0].Ranks) > 0 {
		out.SalesRank = it.SalesRanks[0].Ranks[0].Rank
	}
	return out
}
