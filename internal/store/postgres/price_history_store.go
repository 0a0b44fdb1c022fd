package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sellerscope/arbscan/internal/domain"
)

// PriceHistoryStore implements domain.PriceHistoryStore using PostgreSQL.
// Observations go to an append-only log; the latest observation per
// (user, ASIN, marketplace) is additionally upserted into a projection table
// so delta reads never scan the log.
type PriceHistoryStore struct {
	pool *pgxpool.Pool
}

// NewPriceHistoryStore creates a new PriceHistoryStore backed by the given
// pool.
func NewPriceHistoryStore(pool *pgxpool.Pool) *PriceHistoryStore {
	return &PriceHistoryStore{pool: pool}
}

// Append inserts one observation into the history log.
func (s *PriceHistoryStore) Append(ctx context.Context, entry domain.PriceHistoryEntry) error {
	const query = `
		INSERT INTO price_history (
			user_id, asin, marketplace, previous_price, new_price,
			currency, change_amount, change_percentage,
			is_first_check, unchanged, checked_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.pool.Exec(ctx, query,
		entry.UserID, entry.ASIN, entry.Marketplace,
		entry.PreviousPrice, entry.NewPrice,
		entry.Currency, entry.ChangeAmount, entry.ChangePercentage,
		entry.IsFirstCheck, entry.Unchanged, entry.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append price history %s/%s: %w", entry.ASIN, entry.Marketplace, err)
	}
	return nil
}

// UpsertLatest writes the latest-observation projection.
func (s *PriceHistoryStore) UpsertLatest(ctx context.Context, entry domain.PriceHistoryEntry) error {
	const query = `
		INSERT INTO price_history_latest (
			user_id, asin, marketplace, new_price, currency, checked_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, asin, marketplace) DO UPDATE SET
			new_price = EXCLUDED.new_price,
			currency = EXCLUDED.currency,
			checked_at = EXCLUDED.checked_at`

	_, err := s.pool.Exec(ctx, query,
		entry.UserID, entry.ASIN, entry.Marketplace,
		entry.NewPrice, entry.Currency, entry.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert latest price %s/%s: %w", entry.ASIN, entry.Marketplace, err)
	}
	return nil
}

// GetLatest reads the latest-observation projection for one pair.
func (s *PriceHistoryStore) GetLatest(ctx context.Context, userID, asin, marketplace string) (domain.PriceHistoryEntry, error) {
	const query = `
		SELECT user_id, asin, marketplace, new_price, currency, checked_at
		FROM price_history_latest
		WHERE user_id = $1 AND asin = $2 AND marketplace = $3`

	var entry domain.PriceHistoryEntry
	err := s.pool.QueryRow(ctx, query, userID, asin, marketplace).Scan(
		&entry.UserID, &entry.ASIN, &entry.Marketplace,
		&entry.NewPrice, &entry.Currency, &entry.CheckedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PriceHistoryEntry{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PriceHistoryEntry{}, fmt.Errorf("postgres: get latest price %s/%s: %w", asin, marketplace, err)
	}
	return entry, nil
}

// ListByASIN returns the log entries for one user's ASIN across all
// marketplaces, newest first.
func (s *PriceHistoryStore) ListByASIN(ctx context.Context, userID, asin string, opts domain.ListOpts) ([]domain.PriceHistoryEntry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, user_id, asin, marketplace, previous_price, new_price,
			currency, change_amount, change_percentage,
			is_first_check, unchanged, checked_at
		FROM price_history
		WHERE user_id = $1 AND asin = $2`
	args := []any{userID, asin}
	if opts.Since != nil {
		query += ` AND checked_at >= $3`
		args = append(args, *opts.Since)
	}
	query += fmt.Sprintf(` ORDER BY checked_at DESC LIMIT %d OFFSET %d`, limit, opts.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list price history %s: %w", asin, err)
	}
	defer rows.Close()

	var entries []domain.PriceHistoryEntry
	for rows.Next() {
		var entry domain.PriceHistoryEntry
		err := rows.Scan(
			&entry.ID, &entry.UserID, &entry.ASIN, &entry.Marketplace,
			&entry.PreviousPrice, &entry.NewPrice,
			&entry.Currency, &entry.ChangeAmount, &entry.ChangePercentage,
			&entry.IsFirstCheck, &entry.Unchanged, &entry.CheckedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: price history row: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
