package domain

import "time"

// ScanStatus is the lifecycle state of a scan run.
type ScanStatus string

const (
	ScanInitializing       ScanStatus = "initializing"
	ScanFiltering          ScanStatus = "filtering"
	ScanFetchingHomePrices ScanStatus = "fetching_home_prices"
	ScanEvaluatingItems    ScanStatus = "evaluating_items"
	ScanCompleted          ScanStatus = "completed"
	ScanFailed             ScanStatus = "failed"
	// ScanPartial marks a run whose caller disconnected mid-stream while
	// server-side processing ran to completion.
	ScanPartial ScanStatus = "partial"
)

// Terminal reports whether the status admits no further transitions.
func (s ScanStatus) Terminal() bool {
	return s == ScanCompleted || s == ScanFailed || s == ScanPartial
}

// ScanRun carries the aggregate counters for one end-to-end scan.
type ScanRun struct {
	ID                 string
	UserID             string
	Status             ScanStatus
	CurrentStep        string
	Progress           int // 0..100
	TotalItems         int
	ProcessedCount     int
	OpportunitiesFound int
	ExcludedCount      int
	ErrorCount         int
	ErrorMessage       string
	StartedAt          time.Time
	CompletedAt        *time.Time
}
