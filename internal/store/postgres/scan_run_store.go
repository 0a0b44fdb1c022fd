package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sellerscope/arbscan/internal/domain"
)

// ScanRunStore implements domain.ScanRunStore using PostgreSQL.
type ScanRunStore struct {
	pool *pgxpool.Pool
}

// NewScanRunStore creates a new ScanRunStore backed by the given pool.
func NewScanRunStore(pool *pgxpool.Pool) *ScanRunStore {
	return &ScanRunStore{pool: pool}
}

// Create inserts a new scan run record.
func (s *ScanRunStore) Create(ctx context.Context, run domain.ScanRun) error {
	const query = `
		INSERT INTO scan_runs (
			id, user_id, status, current_step, progress,
			total_items, processed_count, opportunities_found,
			excluded_count, error_count, error_message,
			started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.pool.Exec(ctx, query,
		run.ID, run.UserID, string(run.Status), run.CurrentStep, run.Progress,
		run.TotalItems, run.ProcessedCount, run.OpportunitiesFound,
		run.ExcludedCount, run.ErrorCount, run.ErrorMessage,
		run.StartedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create scan run %s: %w", run.ID, err)
	}
	return nil
}

// UpdateProgress persists the in-flight counters of a running scan.
func (s *ScanRunStore) UpdateProgress(ctx context.Context, run domain.ScanRun) error {
	const query = `
		UPDATE scan_runs SET
			status = $2, current_step = $3, progress = $4,
			total_items = $5, processed_count = $6,
			opportunities_found = $7, excluded_count = $8, error_count = $9
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		run.ID, string(run.Status), run.CurrentStep, run.Progress,
		run.TotalItems, run.ProcessedCount,
		run.OpportunitiesFound, run.ExcludedCount, run.ErrorCount,
	)
	if err != nil {
		return fmt.Errorf("postgres: update scan run %s: %w", run.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Finish records the terminal state of a scan run.
func (s *ScanRunStore) Finish(ctx context.Context, run domain.ScanRun) error {
	const query = `
		UPDATE scan_runs SET
			status = $2, current_step = $3, progress = $4,
			total_items = $5, processed_count = $6,
			opportunities_found = $7, excluded_count = $8,
			error_count = $9, error_message = $10, completed_at = $11
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		run.ID, string(run.Status), run.CurrentStep, run.Progress,
		run.TotalItems, run.ProcessedCount,
		run.OpportunitiesFound, run.ExcludedCount,
		run.ErrorCount, run.ErrorMessage, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: finish scan run %s: %w", run.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const scanRunSelectCols = `id, user_id, status, current_step, progress,
	total_items, processed_count, opportunities_found,
	excluded_count, error_count, error_message, started_at, completed_at`

func scanRunFromRow(scanner interface{ Scan(dest ...any) error }) (domain.ScanRun, error) {
	var run domain.ScanRun
	var status string

	err := scanner.Scan(
		&run.ID, &run.UserID, &status, &run.CurrentStep, &run.Progress,
		&run.TotalItems, &run.ProcessedCount, &run.OpportunitiesFound,
		&run.ExcludedCount, &run.ErrorCount, &run.ErrorMessage,
		&run.StartedAt, &run.CompletedAt,
	)
	if err != nil {
		return domain.ScanRun{}, err
	}
	run.Status = domain.ScanStatus(status)
	return run, nil
}

// GetByID fetches one scan run.
func (s *ScanRunStore) GetByID(ctx context.Context, id string) (domain.ScanRun, error) {
	query := `SELECT ` + scanRunSelectCols + ` FROM scan_runs WHERE id = $1`

	run, err := scanRunFromRow(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ScanRun{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ScanRun{}, fmt.Errorf("postgres: get scan run %s: %w", id, err)
	}
	return run, nil
}

// ListByUser returns the user's runs newest first.
func (s *ScanRunStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.ScanRun, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + scanRunSelectCols + `
		FROM scan_runs WHERE user_id = $1
		ORDER BY started_at DESC LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, query, userID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list scan runs for %s: %w", userID, err)
	}
	defer rows.Close()

	var runs []domain.ScanRun
	for rows.Next() {
		run, err := scanRunFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
