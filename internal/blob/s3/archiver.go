package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sellerscope/arbscan/internal/domain"
)

// Report is the archived snapshot of one finished scan: the run counters plus
// every evaluated opportunity.
type Report struct {
	RunID              string               `json:"run_id"`
	UserID             string               `json:"user_id"`
	Status             string               `json:"status"`
	TotalItems         int                  `json:"total_items"`
	ProcessedCount     int                  `json:"processed_count"`
	OpportunitiesFound int                  `json:"opportunities_found"`
	ExcludedCount      int                  `json:"excluded_count"`
	ErrorCount         int                  `json:"error_count"`
	StartedAt          time.Time            `json:"started_at"`
	CompletedAt        *time.Time           `json:"completed_at,omitempty"`
	Opportunities      []domain.Opportunity `json:"opportunities"`
}

// Archiver uploads finished scan reports to object storage, one JSON document
// per run, partitioned by scan date.
type Archiver struct {
	writer *Writer
}

// NewArchiver creates an Archiver uploading through the given writer.
func NewArchiver(writer *Writer) *Archiver {
	return &Archiver{writer: writer}
}

// ReportKey builds the object key for a run's report.
//
//	scans/2026-08-31/0b5e.../report.json
func ReportKey(runID string, startedAt time.Time) string {
	return fmt.Sprintf("scans/%s/%s.json", startedAt.UTC().Format("2006-01-02"), runID)
}

// ArchiveReport serializes the run and its opportunities and uploads the
// report. Archival is after-the-fact bookkeeping; the Postgres stores remain
// the system of record.
func (a *Archiver) ArchiveReport(ctx context.Context, run domain.ScanRun, opps []domain.Opportunity) (string, error) {
	report := Report{
		RunID:              run.ID,
		UserID:             run.UserID,
		Status:             string(run.Status),
		TotalItems:         run.TotalItems,
		ProcessedCount:     run.ProcessedCount,
		OpportunitiesFound: run.OpportunitiesFound,
		ExcludedCount:      run.ExcludedCount,
		ErrorCount:         run.ErrorCount,
		StartedAt:          run.StartedAt,
		CompletedAt:        run.CompletedAt,
		Opportunities:      opps,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(report); err != nil {
		return "", fmt.Errorf("s3blob: marshal report %s: %w", run.ID, err)
	}

	key := ReportKey(run.ID, run.StartedAt)
	if err := a.writer.Put(ctx, key, &buf, "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: upload report %s: %w", run.ID, err)
	}
	return key, nil
}
