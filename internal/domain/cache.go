package domain

import (
	"context"
	"time"
)

// LatestPriceCache mirrors the latest observed price per (user, ASIN,
// marketplace) for fast "what changed this scan" reads.
type LatestPriceCache interface {
	Set(ctx context.Context, userID, asin, marketplace string, price float64, ts time.Time) error
	Get(ctx context.Context, userID, asin, marketplace string) (float64, time.Time, error)
}

// SignalBus provides pub/sub fan-out of serialized scan events to interested
// watchers (dashboard websocket clients).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
