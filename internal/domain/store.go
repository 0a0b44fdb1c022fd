package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
}

// ScanRunStore persists scan run records and their counters.
type ScanRunStore interface {
	Create(ctx context.Context, run ScanRun) error
	UpdateProgress(ctx context.Context, run ScanRun) error
	Finish(ctx context.Context, run ScanRun) error
	GetByID(ctx context.Context, id string) (ScanRun, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]ScanRun, error)
}

// OpportunityStore persists evaluated opportunities.
type OpportunityStore interface {
	Insert(ctx context.Context, opp Opportunity) error
	ListByRun(ctx context.Context, runID string) ([]Opportunity, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]Opportunity, error)
}

// PriceHistoryStore persists the append-only price log and its latest-entry
// projection. GetLatest reads the projection; ListByASIN reads the log.
type PriceHistoryStore interface {
	Append(ctx context.Context, entry PriceHistoryEntry) error
	UpsertLatest(ctx context.Context, entry PriceHistoryEntry) error
	GetLatest(ctx context.Context, userID, asin, marketplace string) (PriceHistoryEntry, error)
	ListByASIN(ctx context.Context, userID, asin string, opts ListOpts) ([]PriceHistoryEntry, error)
}

// BlacklistStore manages the set of ASINs a user has excluded from scanning.
type BlacklistStore interface {
	Get(ctx context.Context, userID string) (map[string]bool, error)
	Add(ctx context.Context, userID, asin string) error
	Remove(ctx context.Context, userID, asin string) error
}
