package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sellerscope/arbscan/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
// Structured sub-documents (fees, per-source results, price changes) are
// stored as JSONB so the schema tracks the stream payload.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

// Insert persists one evaluated opportunity.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.Opportunity) error {
	fees, err := json.Marshal(opp.Fees)
	if err != nil {
		return fmt.Errorf("postgres: marshal fees for %s: %w", opp.ASIN, err)
	}
	sources, err := json.Marshal(opp.Sources)
	if err != nil {
		return fmt.Errorf("postgres: marshal sources for %s: %w", opp.ASIN, err)
	}
	best, err := json.Marshal(opp.Best)
	if err != nil {
		return fmt.Errorf("postgres: marshal best for %s: %w", opp.ASIN, err)
	}
	var changes []byte
	if len(opp.Changes) > 0 {
		changes, err = json.Marshal(opp.Changes)
		if err != nil {
			return fmt.Errorf("postgres: marshal price changes for %s: %w", opp.ASIN, err)
		}
	}

	const query = `
		INSERT INTO opportunities (
			id, run_id, asin, title, image_url, sales_rank,
			est_monthly_sales, home_price, fees, sources, best,
			category, price_changes, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = s.pool.Exec(ctx, query,
		opp.ID, opp.RunID, opp.ASIN,
		opp.Item.Title, opp.Item.ImageURL, opp.Item.SalesRank,
		opp.Item.EstMonthlySales, opp.HomePrice,
		fees, sources, best,
		string(opp.Category), changes, opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ASIN, err)
	}
	return nil
}

const opportunitySelectCols = `id, run_id, asin, title, image_url, sales_rank,
	est_monthly_sales, home_price, fees, sources, best,
	category, price_changes, detected_at`

func opportunityFromRow(scanner interface{ Scan(dest ...any) error }) (domain.Opportunity, error) {
	var (
		opp      domain.Opportunity
		category string
		fees     []byte
		sources  []byte
		best     []byte
		changes  []byte
	)

	err := scanner.Scan(
		&opp.ID, &opp.RunID, &opp.ASIN,
		&opp.Item.Title, &opp.Item.ImageURL, &opp.Item.SalesRank,
		&opp.Item.EstMonthlySales, &opp.HomePrice,
		&fees, &sources, &best,
		&category, &changes, &opp.DetectedAt,
	)
	if err != nil {
		return domain.Opportunity{}, err
	}

	opp.Category = domain.ProfitCategory(category)
	if err := json.Unmarshal(fees, &opp.Fees); err != nil {
		return domain.Opportunity{}, fmt.Errorf("unmarshal fees: %w", err)
	}
	if err := json.Unmarshal(sources, &opp.Sources); err != nil {
		return domain.Opportunity{}, fmt.Errorf("unmarshal sources: %w", err)
	}
	if err := json.Unmarshal(best, &opp.Best); err != nil {
		return domain.Opportunity{}, fmt.Errorf("unmarshal best: %w", err)
	}
	if len(changes) > 0 {
		if err := json.Unmarshal(changes, &opp.Changes); err != nil {
			return domain.Opportunity{}, fmt.Errorf("unmarshal price changes: %w", err)
		}
	}
	return opp, nil
}

// ListByRun returns all opportunities of one run in detection order.
func (s *OpportunityStore) ListByRun(ctx context.Context, runID string) ([]domain.Opportunity, error) {
	query := `SELECT ` + opportunitySelectCols + `
		FROM opportunities WHERE run_id = $1 ORDER BY detected_at`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities for run %s: %w", runID, err)
	}
	defer rows.Close()

	var opps []domain.Opportunity
	for rows.Next() {
		opp, err := opportunityFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: opportunity row: %w", err)
		}
		opps = append(opps, opp)
	}
	return opps, rows.Err()
}

// ListRecent returns the user's most recent opportunities across runs,
// newest first.
func (s *OpportunityStore) ListRecent(ctx context.Context, userID string, limit int) ([]domain.Opportunity, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT o.id, o.run_id, o.asin, o.title, o.image_url, o.sales_rank,
			o.est_monthly_sales, o.home_price, o.fees, o.sources, o.best,
			o.category, o.price_changes, o.detected_at
		FROM opportunities o
		JOIN scan_runs r ON r.id = o.run_id
		WHERE r.user_id = $1
		ORDER BY o.detected_at DESC LIMIT $2`

	rows, err := s.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities for %s: %w", userID, err)
	}
	defer rows.Close()

	var opps []domain.Opportunity
	for rows.Next() {
		opp, err := opportunityFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: opportunity row: %w", err)
		}
		opps = append(opps, opp)
	}
	return opps, rows.Err()
}
