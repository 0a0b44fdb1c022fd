package domain

// Marketplace describes one Amazon region the scanner can price against.
// Exactly one marketplace in a configured set is the home marketplace (where
// the item would be sold); the rest are source candidates (where it might be
// bought cheaper).
type Marketplace struct {
	Code           string  // short region code, e.g. "UK", "DE"
	Name           string  // display name
	MarketplaceID  string  // Amazon marketplace identifier, e.g. "A1F83G8C2ARO7P"
	Currency       string  // ISO currency code
	ConversionRate float64 // multiplier into the home currency; 1.0 for home
	Home           bool
}

// ToHomeCurrency converts an amount quoted in this marketplace's currency
// into the home currency using the static configured rate. The rate is a
// configuration constant, never a live lookup.
func (m Marketplace) ToHomeCurrency(amount float64) float64 {
	if m.Home || m.ConversionRate == 0 {
		return amount
	}
	return amount * m.ConversionRate
}
