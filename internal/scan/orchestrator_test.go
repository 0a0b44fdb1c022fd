package scan

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
	"github.com/sellerscope/arbscan/internal/evaluate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRunStore struct {
	created   []domain.ScanRun
	updated   []domain.ScanRun
	finished  []domain.ScanRun
	createErr error
}

func (f *fakeRunStore) Create(ctx context.Context, run domain.ScanRun) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, run)
	return nil
}

func (f *fakeRunStore) UpdateProgress(ctx context.Context, run domain.ScanRun) error {
	f.updated = append(f.updated, run)
	return nil
}

func (f *fakeRunStore) Finish(ctx context.Context, run domain.ScanRun) error {
	f.finished = append(f.finished, run)
	return nil
}

func (f *fakeRunStore) GetByID(ctx context.Context, id string) (domain.ScanRun, error) {
	return domain.ScanRun{}, domain.ErrNotFound
}

func (f *fakeRunStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.ScanRun, error) {
	return nil, nil
}

type fakeOppStore struct {
	inserted  []domain.Opportunity
	insertErr error
}

func (f *fakeOppStore) Insert(ctx context.Context, opp domain.Opportunity) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, opp)
	return nil
}

func (f *fakeOppStore) ListByRun(ctx context.Context, runID string) ([]domain.Opportunity, error) {
	return nil, nil
}

func (f *fakeOppStore) ListRecent(ctx context.Context, userID string, limit int) ([]domain.Opportunity, error) {
	return nil, nil
}

type fakeBlacklist struct {
	set map[string]bool
	err error
}

func (f *fakeBlacklist) Get(ctx context.Context, userID string) (map[string]bool, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.set, nil
}

func (f *fakeBlacklist) Add(ctx context.Context, userID, asin string) error {
	f.set[asin] = true
	return nil
}

func (f *fakeBlacklist) Remove(ctx context.Context, userID, asin string) error {
	delete(f.set, asin)
	return nil
}

// fakePricing serves canned quotes keyed by marketplace code then ASIN.
// onFetch, when set, runs before each call and can flip the stop flag
// mid-run.
type fakePricing struct {
	quotes  map[string]map[string]domain.PriceQuote
	errs    map[string]error
	onFetch func(mktCode string)
}

func (f *fakePricing) FetchBatch(ctx context.Context, asins []string, mkt domain.Marketplace) (map[string]domain.PriceQuote, error) {
	if f.onFetch != nil {
		f.onFetch(mkt.Code)
	}
	if err := f.errs[mkt.Code]; err != nil {
		return nil, err
	}
	out := make(map[string]domain.PriceQuote)
	for _, asin := range asins {
		if q, ok := f.quotes[mkt.Code][asin]; ok {
			out[asin] = q
		}
	}
	return out, nil
}

type fakeFees struct {
	breakdown domain.FeeBreakdown
	err       error
}

func (f *fakeFees) Estimate(ctx context.Context, asin string, price float64, currency string, mkt domain.Marketplace) (domain.FeeBreakdown, error) {
	if f.err != nil {
		return domain.FeeBreakdown{}, f.err
	}
	return f.breakdown, nil
}

type fakeCatalog struct {
	meta domain.ItemMetadata
}

func (f *fakeCatalog) Enrich(ctx context.Context, asin string, mkt domain.Marketplace) domain.ItemMetadata {
	if f.meta.Title == "" {
		return domain.ItemMetadata{Title: asin}
	}
	return f.meta
}

type fakeHistory struct{}

func (fakeHistory) RecordAndDiff(ctx context.Context, userID, asin, marketplace string, price float64, currency string) (domain.PriceHistoryEntry, error) {
	return domain.PriceHistoryEntry{
		UserID:       userID,
		ASIN:         asin,
		Marketplace:  marketplace,
		NewPrice:     price,
		Currency:     currency,
		IsFirstCheck: true,
	}, nil
}

// captureSink records every frame in emission order.
type captureSink struct {
	events []domain.Event
	gone   bool
}

func (s *captureSink) Progress(p domain.ProgressPayload) {
	s.events = append(s.events, domain.Event{Type: domain.EventProgress, Data: p})
}

func (s *captureSink) Opportunity(o domain.Opportunity) {
	s.events = append(s.events, domain.Event{Type: domain.EventOpportunity, Data: o})
}

func (s *captureSink) Complete(c domain.CompletePayload) {
	s.events = append(s.events, domain.Event{Type: domain.EventComplete, Data: c})
}

func (s *captureSink) Error(e domain.ErrorPayload) {
	s.events = append(s.events, domain.Event{Type: domain.EventError, Data: e})
}

func (s *captureSink) Gone() bool { return s.gone }

func (s *captureSink) types() []domain.EventType {
	out := make([]domain.EventType, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	runs      *fakeRunStore
	opps      *fakeOppStore
	blacklist *fakeBlacklist
	pricing   *fakePricing
	fees      *fakeFees
	registry  *Registry
	orch      *Orchestrator
}

func ukHome() domain.Marketplace {
	return domain.Marketplace{Code: "UK", MarketplaceID: "A1F83G8C2ARO7P", Currency: "GBP", ConversionRate: 1.0, Home: true}
}

func deSource() domain.Marketplace {
	return domain.Marketplace{Code: "DE", MarketplaceID: "A1PA6795UKMFR9", Currency: "EUR", ConversionRate: 0.86}
}

func newFixture() *fixture {
	f := &fixture{
		runs:      &fakeRunStore{},
		opps:      &fakeOppStore{},
		blacklist: &fakeBlacklist{set: map[string]bool{}},
		pricing: &fakePricing{
			quotes: map[string]map[string]domain.PriceQuote{
				"UK": {
					"B000TEST01": {ASIN: "B000TEST01", Marketplace: "UK", Price: 20.00, Currency: "GBP"},
					"B000TEST02": {ASIN: "B000TEST02", Marketplace: "UK", Price: 25.00, Currency: "GBP"},
				},
				"DE": {
					"B000TEST01": {ASIN: "B000TEST01", Marketplace: "DE", Price: 10.00, Currency: "EUR"},
					"B000TEST02": {ASIN: "B000TEST02", Marketplace: "DE", Price: 12.00, Currency: "EUR"},
				},
			},
			errs: map[string]error{},
		},
		fees:     &fakeFees{breakdown: domain.FeeBreakdown{Total: 3.00}},
		registry: NewRegistry(),
	}

	f.orch = NewOrchestrator(Params{
		Home:      ukHome(),
		Sources:   []domain.Marketplace{deSource()},
		BatchSize: 20,
		Pricing:   f.pricing,
		Fees:      f.fees,
		Catalog:   &fakeCatalog{},
		History:   fakeHistory{},
		Evaluator: evaluate.New(0.20),
		Runs:      f.runs,
		Opps:      f.opps,
		Blacklist: f.blacklist,
		Registry:  f.registry,
		Logger:    testLogger(),
	})
	f.orch.newID = func() string { return "fixed-id" }
	f.orch.now = func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) }
	return f
}

func TestRunCompletes(t *testing.T) {
	f := newFixture()
	sink := &captureSink{}

	run, err := f.orch.Run(context.Background(), "u1", []string{"B000TEST01", "B000TEST02"}, sink)
	require.NoError(t, err)

	assert.Equal(t, domain.ScanCompleted, run.Status)
	assert.Equal(t, 2, run.ProcessedCount)
	assert.Equal(t, 2, run.OpportunitiesFound)
	assert.Zero(t, run.ErrorCount)
	assert.Equal(t, 100, run.Progress)
	require.NotNil(t, run.CompletedAt)

	assert.Len(t, f.opps.inserted, 2)
	require.Len(t, f.runs.finished, 1)
	assert.Equal(t, domain.ScanCompleted, f.runs.finished[0].Status)

	// Frame order: progress frames bracket each opportunity, complete last.
	types := sink.types()
	require.NotEmpty(t, types)
	assert.Equal(t, domain.EventProgress, types[0])
	assert.Equal(t, domain.EventComplete, types[len(types)-1])
	assert.Contains(t, types, domain.EventOpportunity)
}

func TestRunRejectsInvalidInput(t *testing.T) {
	f := newFixture()
	sink := &captureSink{}

	_, err := f.orch.Run(context.Background(), "u1", []string{"bad", ""}, sink)
	assert.ErrorIs(t, err, domain.ErrValidation)

	require.Len(t, sink.events, 1)
	assert.Equal(t, domain.EventError, sink.events[0].Type)
	assert.Empty(t, f.runs.created)
}

func TestRunCreateFailureIsFatal(t *testing.T) {
	f := newFixture()
	f.runs.createErr = errors.New("db down")
	sink := &captureSink{}

	_, err := f.orch.Run(context.Background(), "u1", []string{"B000TEST01"}, sink)
	assert.ErrorIs(t, err, domain.ErrRunSetup)
}

func TestRunBlacklistExcludesItems(t *testing.T) {
	f := newFixture()
	f.blacklist.set = map[string]bool{"B000TEST01": true}
	sink := &captureSink{}

	run, err := f.orch.Run(context.Background(), "u1", []string{"B000TEST01", "B000TEST02", "junk"}, sink)
	require.NoError(t, err)

	// One invalid input plus one blacklisted ASIN.
	assert.Equal(t, 2, run.ExcludedCount)
	assert.Equal(t, 1, run.TotalItems)
	assert.Equal(t, 1, run.ProcessedCount)
	require.Len(t, f.opps.inserted, 1)
	assert.Equal(t, "B000TEST02", f.opps.inserted[0].ASIN)
}

func TestRunAllItemsExcluded(t *testing.T) {
	f := newFixture()
	f.blacklist.set = map[string]bool{"B000TEST01": true}
	sink := &captureSink{}

	run, err := f.orch.Run(context.Background(), "u1", []string{"B000TEST01"}, sink)
	require.NoError(t, err)

	assert.Equal(t, domain.ScanCompleted, run.Status)
	assert.Zero(t, run.ProcessedCount)
	assert.Equal(t, domain.EventComplete, sink.events[len(sink.events)-1].Type)
}

func TestRunBlacklistReadFailureScansEverything(t *testing.T) {
	f := newFixture()
	f.blacklist.err = errors.New("db down")
	sink := &captureSink{}

	run, err := f.orch.Run(context.Background(), "u1", []string{"B000TEST01"}, sink)
	require.NoError(t, err)
	assert.Equal(t, domain.ScanCompleted, run.Status)
	assert.Equal(t, 1, run.ProcessedCount)
}

func TestRunAllHomeBatchesFailed(t *testing.T) {
	f := newFixture()
	f.pricing.errs["UK"] = errors.New("upstream down")
	sink := &captureSink{}

	run, err := f.orch.Run(context.Background(), "u1", []string{"B000TEST01"}, sink)
	assert.ErrorIs(t, err, domain.ErrRunSetup)
	assert.Equal(t, domain.ScanFailed, run.Status)

	require.Len(t, f.runs.finished, 1)
	assert.Equal(t, domain.ScanFailed, f.runs.finished[0].Status)
	assert.Equal(t, domain.EventError, sink.events[len(sink.events)-1].Type)
}

func TestRunSkipsItemWithoutHomeQuote(t *testing.T) {
	f := newFixture()
	delete(f.pricing.quotes["UK"], "B000TEST01")
	sink := &captureSink{}

	run, err := f.orch.Run(context.Background(), "u1", []string{"B000TEST01", "B000TEST02"}, sink)
	require.NoError(t, err)

	assert.Equal(t, 2, run.ProcessedCount)
	assert.Equal(t, 1, run.OpportunitiesFound)
	assert.Zero(t, run.ErrorCount)
}

func TestRunCountsItemErrors(t *testing.T) {
	f := newFixture()
	f.fees.err = errors.New("fees unavailable")
	sink := &captureSink{}

	run, err := f.orch.Run(context.Background(), "u1", []string{"B000TEST01", "B000TEST02"}, sink)
	require.NoError(t, err)

	assert.Equal(t, domain.ScanCompleted, run.Status)
	assert.Equal(t, 2, run.ErrorCount)
	assert.Zero(t, run.OpportunitiesFound)
}

func TestRunStoppedMidway(t *testing.T) {
	f := newFixture()
	// Stop during the first item's source fan-out; the second item then
	// observes the flag before processing.
	f.pricing.onFetch = func(mktCode string) {
		if mktCode == "DE" {
			f.registry.Stop("fixed-id")
		}
	}
	sink := &captureSink{}

	run, err := f.orch.Run(context.Background(), "u1", []string{"B000TEST01", "B000TEST02"}, sink)
	require.NoError(t, err)

	assert.Equal(t, domain.ScanPartial, run.Status)
	assert.Equal(t, 1, run.ProcessedCount)
	assert.Less(t, run.Progress, 100)
}

func TestRunCallerDisconnected(t *testing.T) {
	f := newFixture()
	sink := &captureSink{gone: true}

	run, err := f.orch.Run(context.Background(), "u1", []string{"B000TEST01"}, sink)
	require.NoError(t, err)

	// Everything still processed and persisted; only the status records
	// that nobody saw the stream.
	assert.Equal(t, domain.ScanPartial, run.Status)
	assert.Equal(t, 1, run.ProcessedCount)
	assert.Len(t, f.opps.inserted, 1)
}

func TestRunAfterScanHook(t *testing.T) {
	f := newFixture()
	var gotRun domain.ScanRun
	var gotOpps []domain.Opportunity
	f.orch.p.AfterScan = func(run domain.ScanRun, opps []domain.Opportunity) {
		gotRun = run
		gotOpps = opps
	}
	sink := &captureSink{}

	_, err := f.orch.Run(context.Background(), "u1", []string{"B000TEST01"}, sink)
	require.NoError(t, err)

	assert.Equal(t, domain.ScanCompleted, gotRun.Status)
	require.Len(t, gotOpps, 1)
	assert.Equal(t, "B000TEST01", gotOpps[0].ASIN)
}

func TestRunFailedRunInvokesAfterScan(t *testing.T) {
	f := newFixture()
	f.pricing.errs["UK"] = errors.New("upstream down")

	var gotRun domain.ScanRun
	hookCalled := false
	f.orch.p.AfterScan = func(run domain.ScanRun, opps []domain.Opportunity) {
		hookCalled = true
		gotRun = run
		assert.Empty(t, opps)
	}
	sink := &captureSink{}

	_, err := f.orch.Run(context.Background(), "u1", []string{"B000TEST01"}, sink)
	assert.ErrorIs(t, err, domain.ErrRunSetup)

	// Failure notifications depend on the hook firing for failed runs too.
	require.True(t, hookCalled)
	assert.Equal(t, domain.ScanFailed, gotRun.Status)
	require.NotNil(t, gotRun.CompletedAt)
}

func TestRegistryStopUnknownRun(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Stop("nope"))
	assert.False(t, r.Active("nope"))
}
