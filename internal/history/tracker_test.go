package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellerscope/arbscan/internal/domain"
)

type fakeHistoryStore struct {
	latest         map[string]domain.PriceHistoryEntry
	appended       []domain.PriceHistoryEntry
	appendErr      error
	getLatestCalls int
}

func newFakeHistoryStore() *fakeHistoryStore {
	return &fakeHistoryStore{latest: make(map[string]domain.PriceHistoryEntry)}
}

func key(userID, asin, marketplace string) string {
	return userID + "|" + asin + "|" + marketplace
}

func (f *fakeHistoryStore) Append(ctx context.Context, entry domain.PriceHistoryEntry) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, entry)
	return nil
}

func (f *fakeHistoryStore) UpsertLatest(ctx context.Context, entry domain.PriceHistoryEntry) error {
	f.latest[key(entry.UserID, entry.ASIN, entry.Marketplace)] = entry
	return nil
}

func (f *fakeHistoryStore) GetLatest(ctx context.Context, userID, asin, marketplace string) (domain.PriceHistoryEntry, error) {
	f.getLatestCalls++
	entry, ok := f.latest[key(userID, asin, marketplace)]
	if !ok {
		return domain.PriceHistoryEntry{}, domain.ErrNotFound
	}
	return entry, nil
}

func (f *fakeHistoryStore) ListByASIN(ctx context.Context, userID, asin string, opts domain.ListOpts) ([]domain.PriceHistoryEntry, error) {
	return nil, nil
}

type fakeLatestCache struct {
	prices map[string]float64
	getErr error
	sets   int
}

func newFakeLatestCache() *fakeLatestCache {
	return &fakeLatestCache{prices: make(map[string]float64)}
}

func (f *fakeLatestCache) Set(ctx context.Context, userID, asin, marketplace string, price float64, ts time.Time) error {
	f.sets++
	f.prices[key(userID, asin, marketplace)] = price
	return nil
}

func (f *fakeLatestCache) Get(ctx context.Context, userID, asin, marketplace string) (float64, time.Time, error) {
	if f.getErr != nil {
		return 0, time.Time{}, f.getErr
	}
	price, ok := f.prices[key(userID, asin, marketplace)]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return price, time.Time{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTracker(store domain.PriceHistoryStore) *Tracker {
	tr := NewTracker(store, nil, testLogger())
	tr.now = func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) }
	return tr
}

func TestRecordAndDiffFirstCheck(t *testing.T) {
	store := newFakeHistoryStore()
	tr := newTestTracker(store)

	entry, err := tr.RecordAndDiff(context.Background(), "u1", "B000TEST01", "UK", 19.99, "GBP")
	require.NoError(t, err)

	assert.True(t, entry.IsFirstCheck)
	assert.Zero(t, entry.PreviousPrice)
	assert.Zero(t, entry.ChangeAmount)
	assert.False(t, entry.Unchanged)
	assert.InDelta(t, 19.99, entry.NewPrice, 1e-9)
	require.Len(t, store.appended, 1)
}

func TestRecordAndDiffComputesDelta(t *testing.T) {
	store := newFakeHistoryStore()
	tr := newTestTracker(store)

	_, err := tr.RecordAndDiff(context.Background(), "u1", "B000TEST01", "UK", 20.00, "GBP")
	require.NoError(t, err)

	entry, err := tr.RecordAndDiff(context.Background(), "u1", "B000TEST01", "UK", 18.00, "GBP")
	require.NoError(t, err)

	assert.False(t, entry.IsFirstCheck)
	assert.InDelta(t, 20.00, entry.PreviousPrice, 1e-9)
	assert.InDelta(t, -2.00, entry.ChangeAmount, 1e-9)
	assert.InDelta(t, -10.0, entry.ChangePercentage, 1e-9)
	assert.False(t, entry.Unchanged)
}

func TestRecordAndDiffUnchangedWithinEpsilon(t *testing.T) {
	store := newFakeHistoryStore()
	tr := newTestTracker(store)

	_, err := tr.RecordAndDiff(context.Background(), "u1", "B000TEST01", "UK", 20.00, "GBP")
	require.NoError(t, err)

	entry, err := tr.RecordAndDiff(context.Background(), "u1", "B000TEST01", "UK", 20.005, "GBP")
	require.NoError(t, err)
	assert.True(t, entry.Unchanged)

	entry, err = tr.RecordAndDiff(context.Background(), "u1", "B000TEST01", "UK", 20.05, "GBP")
	require.NoError(t, err)
	assert.False(t, entry.Unchanged)
}

func TestRecordAndDiffMarketplacesIndependent(t *testing.T) {
	store := newFakeHistoryStore()
	tr := newTestTracker(store)

	_, err := tr.RecordAndDiff(context.Background(), "u1", "B000TEST01", "UK", 20.00, "GBP")
	require.NoError(t, err)

	entry, err := tr.RecordAndDiff(context.Background(), "u1", "B000TEST01", "DE", 10.00, "EUR")
	require.NoError(t, err)
	assert.True(t, entry.IsFirstCheck)
}

func TestRecordAndDiffReadsCacheBeforeStore(t *testing.T) {
	store := newFakeHistoryStore()
	cache := newFakeLatestCache()
	tr := NewTracker(store, cache, testLogger())
	tr.now = func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) }

	_, err := tr.RecordAndDiff(context.Background(), "u1", "B000TEST01", "UK", 20.00, "GBP")
	require.NoError(t, err)
	storeReads := store.getLatestCalls
	assert.Equal(t, 1, cache.sets)

	entry, err := tr.RecordAndDiff(context.Background(), "u1", "B000TEST01", "UK", 18.00, "GBP")
	require.NoError(t, err)

	// The mirror answered the read; the store was not consulted again.
	assert.Equal(t, storeReads, store.getLatestCalls)
	assert.InDelta(t, 20.00, entry.PreviousPrice, 1e-9)
	assert.InDelta(t, -2.00, entry.ChangeAmount, 1e-9)
}

func TestRecordAndDiffCacheMissFallsBackToStore(t *testing.T) {
	store := newFakeHistoryStore()
	store.latest[key("u1", "B000TEST01", "UK")] = domain.PriceHistoryEntry{NewPrice: 25.00}
	cache := newFakeLatestCache()
	tr := NewTracker(store, cache, testLogger())
	tr.now = func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) }

	entry, err := tr.RecordAndDiff(context.Background(), "u1", "B000TEST01", "UK", 20.00, "GBP")
	require.NoError(t, err)

	assert.False(t, entry.IsFirstCheck)
	assert.InDelta(t, 25.00, entry.PreviousPrice, 1e-9)
	assert.Equal(t, 1, store.getLatestCalls)
}

func TestRecordAndDiffCacheFailureFallsBackToStore(t *testing.T) {
	store := newFakeHistoryStore()
	store.latest[key("u1", "B000TEST01", "UK")] = domain.PriceHistoryEntry{NewPrice: 25.00}
	cache := newFakeLatestCache()
	cache.getErr = errors.New("redis down")
	tr := NewTracker(store, cache, testLogger())
	tr.now = func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) }

	entry, err := tr.RecordAndDiff(context.Background(), "u1", "B000TEST01", "UK", 20.00, "GBP")
	require.NoError(t, err)
	assert.InDelta(t, 25.00, entry.PreviousPrice, 1e-9)
}

func TestRecordAndDiffReturnsEntryOnPersistError(t *testing.T) {
	store := newFakeHistoryStore()
	store.appendErr = errors.New("db down")
	tr := newTestTracker(store)

	entry, err := tr.RecordAndDiff(context.Background(), "u1", "B000TEST01", "UK", 19.99, "GBP")
	require.Error(t, err)
	assert.True(t, entry.IsFirstCheck)
	assert.InDelta(t, 19.99, entry.NewPrice, 1e-9)
}
