package domain

import "time"

// PriceChangeEpsilon is the threshold below which an absolute price change is
// treated as unchanged for display purposes (in home-currency units).
const PriceChangeEpsilon = 0.01

// PriceHistoryEntry records one price observation for an (ASIN, marketplace)
// pair and its delta against the previous observation. Entries are appended
// to a full history log; the latest entry per pair is additionally upserted
// into a snapshot projection.
type PriceHistoryEntry struct {
	ID               int64     `json:"-"`
	UserID           string    `json:"-"`
	ASIN             string    `json:"asin"`
	Marketplace      string    `json:"marketplace"`
	PreviousPrice    float64   `json:"previous_price,omitempty"`
	NewPrice         float64   `json:"new_price"`
	Currency         string    `json:"currency"`
	ChangeAmount     float64   `json:"change_amount"`
	ChangePercentage float64   `json:"change_percentage"`
	IsFirstCheck     bool      `json:"is_first_check"`
	Unchanged        bool      `json:"unchanged"`
	CheckedAt        time.Time `json:"checked_at"`
}
