package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sellerscope/arbscan/internal/domain"
)

// LatestPriceCache implements domain.LatestPriceCache using Redis hashes.
// Each observation is stored at key "latest:{userID}:{asin}:{marketplace}"
// with fields "price" and "ts" (Unix nanosecond timestamp). Entries expire
// after latestTTL so stale prices age out between scan sessions.
type LatestPriceCache struct {
	rdb *redis.Client
}

const latestTTL = 7 * 24 * time.Hour

// NewLatestPriceCache creates a LatestPriceCache backed by the given Client.
func NewLatestPriceCache(c *Client) *LatestPriceCache {
	return &LatestPriceCache{rdb: c.Underlying()}
}

func latestKey(userID, asin, marketplace string) string {
	return "latest:" + userID + ":" + asin + ":" + marketplace
}

// Set stores the latest observed price for a (user, ASIN, marketplace) pair.
func (lc *LatestPriceCache) Set(ctx context.Context, userID, asin, marketplace string, price float64, ts time.Time) error {
	key := latestKey(userID, asin, marketplace)
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	pipe := lc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, latestTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set latest price %s: %w", key, err)
	}
	return nil
}

// Get retrieves the latest observed price for a pair. It returns
// domain.ErrNotFound when no observation is cached.
func (lc *LatestPriceCache) Get(ctx context.Context, userID, asin, marketplace string) (float64, time.Time, error) {
	key := latestKey(userID, asin, marketplace)
	vals, err := lc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get latest price %s: %w", key, err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}

	priceStr, ok := vals["price"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price %s: %w", key, err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", key, err)
	}

	return price, time.Unix(0, tsNano), nil
}

// Compile-time interface check.
var _ domain.LatestPriceCache = (*LatestPriceCache)(nil)
