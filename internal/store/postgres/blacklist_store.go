package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// BlacklistStore implements domain.BlacklistStore using PostgreSQL.
type BlacklistStore struct {
	pool *pgxpool.Pool
}

// NewBlacklistStore creates a new BlacklistStore backed by the given pool.
func NewBlacklistStore(pool *pgxpool.Pool) *BlacklistStore {
	return &BlacklistStore{pool: pool}
}

// Get returns the user's excluded ASINs as a set.
func (s *BlacklistStore) Get(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT asin FROM blacklists WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: get blacklist for %s: %w", userID, err)
	}
	defer rows.Close()

	set := make(map[string]bool)
	for rows.Next() {
		var asin string
		if err := rows.Scan(&asin); err != nil {
			return nil, fmt.Errorf("postgres: blacklist row: %w", err)
		}
		set[asin] = true
	}
	return set, rows.Err()
}

// Add inserts an ASIN into the user's blacklist. Re-adding is a no-op.
func (s *BlacklistStore) Add(ctx context.Context, userID, asin string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO blacklists (user_id, asin) VALUES ($1, $2)
		 ON CONFLICT (user_id, asin) DO NOTHING`, userID, asin)
	if err != nil {
		return fmt.Errorf("postgres: add blacklist %s/%s: %w", userID, asin, err)
	}
	return nil
}

// Remove deletes an ASIN from the user's blacklist.
func (s *BlacklistStore) Remove(ctx context.Context, userID, asin string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM blacklists WHERE user_id = $1 AND asin = $2`, userID, asin)
	if err != nil {
		return fmt.Errorf("postgres: remove blacklist %s/%s: %w", userID, asin, err)
	}
	return nil
}
