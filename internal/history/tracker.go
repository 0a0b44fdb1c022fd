// Package history tracks observed prices across repeated scans.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sellerscope/arbscan/internal/domain"
)

// Tracker records price observations and computes deltas against the most
// recent prior observation for the same (user, ASIN, marketplace) pair.
// Every observation is appended to the history log; the latest-entry
// projection is upserted idempotently and mirrored to the cache, which in
// turn answers the next observation's previous-price read.
type Tracker struct {
	store  domain.PriceHistoryStore
	cache  domain.LatestPriceCache // may be nil
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker creates a Tracker. cache may be nil to skip the Redis mirror.
func NewTracker(store domain.PriceHistoryStore, cache domain.LatestPriceCache, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		cache:  cache,
		logger: logger.With(slog.String("component", "history")),
		now:    time.Now,
	}
}

// RecordAndDiff records a new observation and returns the resulting entry.
// The first observation for a pair carries IsFirstCheck and no delta fields.
// Changes smaller than domain.PriceChangeEpsilon in absolute value are
// flagged unchanged for display purposes.
//
// The computed entry is returned even when persistence fails; the error
// reports the persistence problem so the caller can log it without dropping
// the scan item.
func (t *Tracker) RecordAndDiff(ctx context.Context, userID, asin, marketplace string, newPrice float64, currency string) (domain.PriceHistoryEntry, error) {
	entry := domain.PriceHistoryEntry{
		UserID:      userID,
		ASIN:        asin,
		Marketplace: marketplace,
		NewPrice:    newPrice,
		Currency:    currency,
		CheckedAt:   t.now().UTC(),
	}

	prevPrice, err := t.previousPrice(ctx, userID, asin, marketplace)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		entry.IsFirstCheck = true
	case err != nil:
		return entry, fmt.Errorf("history: read latest %s/%s: %w", asin, marketplace, err)
	default:
		entry.PreviousPrice = prevPrice
		entry.ChangeAmount = newPrice - prevPrice
		if prevPrice != 0 {
			entry.ChangePercentage = entry.ChangeAmount / prevPrice * 100
		}
		entry.Unchanged = math.Abs(entry.ChangeAmount) < domain.PriceChangeEpsilon
	}

	if err := t.store.Append(ctx, entry); err != nil {
		return entry, fmt.Errorf("history: append %s/%s: %w", asin, marketplace, err)
	}
	if err := t.store.UpsertLatest(ctx, entry); err != nil {
		return entry, fmt.Errorf("history: upsert latest %s/%s: %w", asin, marketplace, err)
	}

	if t.cache != nil {
		if err := t.cache.Set(ctx, userID, asin, marketplace, newPrice, entry.CheckedAt); err != nil {
			// Cache mirror is advisory; the store remains authoritative.
			t.logger.Warn("latest price cache update failed",
				slog.String("asin", asin),
				slog.String("marketplace", marketplace),
				slog.String("error", err.Error()),
			)
		}
	}

	return entry, nil
}

// previousPrice returns the last observed price for the pair. The cache
// mirror answers first; a miss or cache failure falls back to the store,
// which stays authoritative.
func (t *Tracker) previousPrice(ctx context.Context, userID, asin, marketplace string) (float64, error) {
	if t.cache != nil {
		price, _, err := t.cache.Get(ctx, userID, asin, marketplace)
		switch {
		case err == nil:
			return price, nil
		case !errors.Is(err, domain.ErrNotFound):
			t.logger.Debug("latest price cache read failed",
				slog.String("asin", asin),
				slog.String("marketplace", marketplace),
				slog.String("error", err.Error()),
			)
		}
	}

	prev, err := t.store.GetLatest(ctx, userID, asin, marketplace)
	if err != nil {
		return 0, err
	}
	return prev.NewPrice, nil
}
