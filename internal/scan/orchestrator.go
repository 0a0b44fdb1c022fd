// Package scan drives the end-to-end arbitrage scan: filter, fetch, fan out,
// evaluate, persist, stream.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sellerscope/arbscan/internal/domain"
	"github.com/sellerscope/arbscan/internal/evaluate"
)

// PricingFetcher returns selected quotes per ASIN for one marketplace.
type PricingFetcher interface {
	FetchBatch(ctx context.Context, asins []string, mkt domain.Marketplace) (map[string]domain.PriceQuote, error)
}

// FeeEstimator produces a structured fee breakdown for selling one unit.
type FeeEstimator interface {
	Estimate(ctx context.Context, asin string, price float64, currency string, mkt domain.Marketplace) (domain.FeeBreakdown, error)
}

// Enricher resolves best-effort display metadata.
type Enricher interface {
	Enrich(ctx context.Context, asin string, mkt domain.Marketplace) domain.ItemMetadata
}

// HistoryRecorder records a price observation and returns the computed delta
// against the prior observation.
type HistoryRecorder interface {
	RecordAndDiff(ctx context.Context, userID, asin, marketplace string, price float64, currency string) (domain.PriceHistoryEntry, error)
}

// DisconnectAware is implemented by sinks that can report a gone consumer.
// When the consumer disconnects mid-run the scan keeps processing so results
// are persisted, and the run finishes with partial status.
type DisconnectAware interface {
	Gone() bool
}

// Params configures an Orchestrator.
type Params struct {
	Home      domain.Marketplace
	Sources   []domain.Marketplace
	BatchSize int
	Stagger   time.Duration

	Pricing   PricingFetcher
	Fees      FeeEstimator
	Catalog   Enricher
	History   HistoryRecorder
	Evaluator *evaluate.Evaluator

	Runs      domain.ScanRunStore
	Opps      domain.OpportunityStore
	Blacklist domain.BlacklistStore
	Registry  *Registry

	// AfterScan runs on the caller's goroutine once the run record is
	// finished, with the full opportunity set. Used to hand off archival
	// and notification jobs. May be nil.
	AfterScan func(run domain.ScanRun, opps []domain.Opportunity)

	Logger *slog.Logger
}

// Orchestrator executes scan runs. One Run call is one scan; concurrent runs
// are independent.
type Orchestrator struct {
	p      Params
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(p Params) *Orchestrator {
	return &Orchestrator{
		p:      p,
		logger: p.Logger.With(slog.String("component", "scan")),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// Run executes one scan for userID over the raw ASIN inputs, streaming events
// to sink as it goes. The returned run reflects the final persisted state.
// An error is returned only when the run could not be set up at all; per-item
// failures are counted and the scan continues.
func (o *Orchestrator) Run(ctx context.Context, userID string, inputs []string, sink domain.EventSink) (domain.ScanRun, error) {
	valid, dropped := domain.NormalizeASINs(inputs)
	if len(valid) == 0 {
		err := fmt.Errorf("scan: no valid ASINs in %d inputs: %w", len(inputs), domain.ErrValidation)
		sink.Error(domain.ErrorPayload{Message: err.Error()})
		return domain.ScanRun{}, err
	}

	run := domain.ScanRun{
		ID:            o.newID(),
		UserID:        userID,
		Status:        domain.ScanInitializing,
		CurrentStep:   "initializing",
		TotalItems:    len(valid),
		ExcludedCount: dropped,
		StartedAt:     o.now().UTC(),
	}
	if err := o.p.Runs.Create(ctx, run); err != nil {
		err = fmt.Errorf("scan: create run record: %w: %v", domain.ErrRunSetup, err)
		sink.Error(domain.ErrorPayload{Message: err.Error()})
		return run, err
	}

	stopFlag, release := o.p.Registry.register(run.ID)
	defer release()

	logger := o.logger.With(slog.String("run_id", run.ID), slog.String("user_id", userID))
	logger.Info("scan started",
		slog.Int("inputs", len(inputs)),
		slog.Int("valid", len(valid)),
		slog.Int("dropped", dropped),
	)

	// Filtering: remove blacklisted ASINs. A blacklist read failure is
	// treated as an empty blacklist, not a fatal error.
	run.Status = domain.ScanFiltering
	run.CurrentStep = "filtering"
	o.progress(ctx, sink, &run)

	blacklist, err := o.p.Blacklist.Get(ctx, userID)
	if err != nil {
		logger.Warn("blacklist read failed, scanning all items", slog.String("error", err.Error()))
		blacklist = map[string]bool{}
	}
	items := valid[:0:0]
	for _, asin := range valid {
		if blacklist[asin] {
			run.ExcludedCount++
			continue
		}
		items = append(items, asin)
	}
	run.TotalItems = len(items)
	if len(items) == 0 {
		run.Status = domain.ScanCompleted
		return o.finish(ctx, sink, run, nil, "all items excluded")
	}

	// Home prices, batched under the external per-call cap. The run only
	// fails when every batch fails; a single bad batch just loses its
	// items.
	run.Status = domain.ScanFetchingHomePrices
	run.CurrentStep = "fetching_home_prices"
	o.progress(ctx, sink, &run)

	homeQuotes, failedBatches, totalBatches := o.fetchHomeQuotes(ctx, items, logger)
	run.ErrorCount += failedBatches
	if failedBatches == totalBatches {
		run.Status = domain.ScanFailed
		run.ErrorMessage = "all home pricing batches failed"
		err := fmt.Errorf("scan: %s: %w", run.ErrorMessage, domain.ErrRunSetup)
		sink.Error(domain.ErrorPayload{RunID: run.ID, Message: run.ErrorMessage})
		run, _ = o.fail(ctx, run)
		return run, err
	}

	// Per-item evaluation with concurrent source fan-out.
	run.Status = domain.ScanEvaluatingItems
	run.CurrentStep = "evaluating_items"
	o.progress(ctx, sink, &run)

	var (
		opportunities []domain.Opportunity
		stopped       bool
	)
	for _, asin := range items {
		if stopFlag.Load() {
			stopped = true
			logger.Info("scan stopped by request", slog.Int("processed", run.ProcessedCount))
			break
		}
		if ctx.Err() != nil {
			stopped = true
			break
		}

		run.ProcessedCount++

		home, ok := homeQuotes[asin]
		if !ok {
			logger.Debug("no home quote, skipping", slog.String("asin", asin))
			o.progress(ctx, sink, &run)
			continue
		}

		opp, err := o.evaluateItem(ctx, userID, run.ID, asin, home, logger)
		if err != nil {
			run.ErrorCount++
			logger.Warn("item evaluation failed",
				slog.String("asin", asin),
				slog.String("error", err.Error()),
			)
			o.progress(ctx, sink, &run)
			continue
		}
		if opp == nil {
			o.progress(ctx, sink, &run)
			continue
		}

		run.OpportunitiesFound++
		opportunities = append(opportunities, *opp)
		if err := o.p.Opps.Insert(ctx, *opp); err != nil {
			run.ErrorCount++
			logger.Error("opportunity insert failed",
				slog.String("asin", asin),
				slog.String("error", err.Error()),
			)
		}
		sink.Opportunity(*opp)
		o.progress(ctx, sink, &run)
	}

	switch {
	case stopped:
		run.Status = domain.ScanPartial
		return o.finish(ctx, sink, run, opportunities, "scan stopped")
	case sinkGone(sink):
		run.Status = domain.ScanPartial
		return o.finish(ctx, sink, run, opportunities, "caller disconnected")
	default:
		run.Status = domain.ScanCompleted
		return o.finish(ctx, sink, run, opportunities, "scan complete")
	}
}

// fetchHomeQuotes prices all items in the home marketplace.
func (o *Orchestrator) fetchHomeQuotes(ctx context.Context, items []string, logger *slog.Logger) (quotes map[string]domain.PriceQuote, failed, total int) {
	quotes = make(map[string]domain.PriceQuote, len(items))
	for start := 0; start < len(items); start += o.p.BatchSize {
		end := min(start+o.p.BatchSize, len(items))
		total++
		batch, err := o.p.Pricing.FetchBatch(ctx, items[start:end], o.p.Home)
		if err != nil {
			failed++
			logger.Warn("home pricing batch failed",
				slog.Int("batch_start", start),
				slog.Int("batch_size", end-start),
				slog.String("error", err.Error()),
			)
			continue
		}
		for asin, q := range batch {
			quotes[asin] = q
		}
	}
	return quotes, failed, total
}

// evaluateItem prices one ASIN across the source marketplaces, estimates
// fees, evaluates profit, records price history and assembles the
// opportunity. Returns (nil, nil) when no source has a usable quote.
func (o *Orchestrator) evaluateItem(ctx context.Context, userID, runID, asin string, home domain.PriceQuote, logger *slog.Logger) (*domain.Opportunity, error) {
	sourceQuotes := o.fanOutSources(ctx, asin, logger)
	if len(sourceQuotes) == 0 {
		logger.Debug("no source quotes", slog.String("asin", asin))
		return nil, nil
	}

	fees, err := o.p.Fees.Estimate(ctx, asin, home.Price, home.Currency, o.p.Home)
	if err != nil {
		return nil, err
	}

	results, bestIdx, ok := o.p.Evaluator.Evaluate(home, sourceQuotes, fees)
	if !ok {
		return nil, nil
	}

	changes := o.recordHistory(ctx, userID, asin, home, sourceQuotes, logger)
	meta := o.p.Catalog.Enrich(ctx, asin, o.p.Home)
	if meta.SalesRank == 0 && home.SalesRank > 0 {
		meta.SalesRank = home.SalesRank
	}

	best := results[bestIdx]
	opp := &domain.Opportunity{
		ID:         o.newID(),
		RunID:      runID,
		ASIN:       asin,
		Item:       meta,
		HomePrice:  home.Price,
		Fees:       fees,
		Sources:    results,
		Best:       best,
		Category:   domain.Categorize(best.Profit),
		Changes:    changes,
		DetectedAt: o.now().UTC(),
	}
	return opp, nil
}

// fanOutSources prices one ASIN in every source marketplace concurrently.
// Each source's first call is staggered so the burst does not pile onto the
// limiter at once. A failing source loses only its own quote.
func (o *Orchestrator) fanOutSources(ctx context.Context, asin string, logger *slog.Logger) []evaluate.SourceQuote {
	var (
		mu     sync.Mutex
		quotes = make([]evaluate.SourceQuote, 0, len(o.p.Sources))
	)
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range o.p.Sources {
		delay := time.Duration(i) * o.p.Stagger
		g.Go(func() error {
			if delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-gctx.Done():
					timer.Stop()
					return nil
				case <-timer.C:
				}
			}
			batch, err := o.p.Pricing.FetchBatch(gctx, []string{asin}, src)
			if err != nil {
				logger.Debug("source pricing failed",
					slog.String("asin", asin),
					slog.String("marketplace", src.Code),
					slog.String("error", err.Error()),
				)
				return nil
			}
			q, ok := batch[asin]
			if !ok {
				return nil
			}
			mu.Lock()
			quotes = append(quotes, evaluate.SourceQuote{Marketplace: src, Quote: q})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	// Restore the configured marketplace order: the evaluator's tie-break
	// depends on position, and goroutine completion order is arbitrary.
	ordered := make([]evaluate.SourceQuote, 0, len(quotes))
	for _, src := range o.p.Sources {
		for _, q := range quotes {
			if q.Marketplace.Code == src.Code {
				ordered = append(ordered, q)
				break
			}
		}
	}
	return ordered
}

// recordHistory records the home and source observations. Persistence
// failures are logged and the entry is still reported from the computed
// values.
func (o *Orchestrator) recordHistory(ctx context.Context, userID, asin string, home domain.PriceQuote, sources []evaluate.SourceQuote, logger *slog.Logger) []domain.PriceHistoryEntry {
	changes := make([]domain.PriceHistoryEntry, 0, len(sources)+1)

	entry, err := o.p.History.RecordAndDiff(ctx, userID, asin, home.Marketplace, home.Price, home.Currency)
	if err != nil {
		logger.Warn("history record failed",
			slog.String("asin", asin),
			slog.String("marketplace", home.Marketplace),
			slog.String("error", err.Error()),
		)
	}
	changes = append(changes, entry)

	for _, src := range sources {
		entry, err := o.p.History.RecordAndDiff(ctx, userID, asin, src.Quote.Marketplace, src.Quote.Price, src.Quote.Currency)
		if err != nil {
			logger.Warn("history record failed",
				slog.String("asin", asin),
				slog.String("marketplace", src.Quote.Marketplace),
				slog.String("error", err.Error()),
			)
		}
		changes = append(changes, entry)
	}
	return changes
}

// progress emits a progress frame and persists the counters. Persist failures
// are logged only.
func (o *Orchestrator) progress(ctx context.Context, sink domain.EventSink, run *domain.ScanRun) {
	if run.TotalItems > 0 {
		run.Progress = run.ProcessedCount * 100 / run.TotalItems
	}
	sink.Progress(domain.ProgressPayload{
		RunID:              run.ID,
		Step:               run.CurrentStep,
		Percent:            run.Progress,
		ProcessedCount:     run.ProcessedCount,
		TotalItems:         run.TotalItems,
		OpportunitiesFound: run.OpportunitiesFound,
		ExcludedCount:      run.ExcludedCount,
	})
	if err := o.p.Runs.UpdateProgress(ctx, *run); err != nil {
		o.logger.Warn("progress update failed",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
	}
}

// finish persists the terminal run state, emits the complete frame and hands
// the results to the after-scan hook.
func (o *Orchestrator) finish(ctx context.Context, sink domain.EventSink, run domain.ScanRun, opps []domain.Opportunity, message string) (domain.ScanRun, error) {
	run.Progress = 100
	if run.Status == domain.ScanPartial && run.TotalItems > 0 {
		run.Progress = run.ProcessedCount * 100 / run.TotalItems
	}
	now := o.now().UTC()
	run.CompletedAt = &now
	if err := o.p.Runs.Finish(ctx, run); err != nil {
		o.logger.Error("finish run record failed",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
	}

	sink.Complete(domain.CompletePayload{
		RunID:              run.ID,
		ProcessedCount:     run.ProcessedCount,
		OpportunitiesFound: run.OpportunitiesFound,
		ErrorCount:         run.ErrorCount,
		Message:            message,
	})

	o.logger.Info("scan finished",
		slog.String("run_id", run.ID),
		slog.String("status", string(run.Status)),
		slog.Int("processed", run.ProcessedCount),
		slog.Int("opportunities", run.OpportunitiesFound),
		slog.Int("errors", run.ErrorCount),
		slog.Duration("elapsed", now.Sub(run.StartedAt)),
	)

	if o.p.AfterScan != nil {
		o.p.AfterScan(run, opps)
	}
	return run, nil
}

// fail persists a failed run's terminal state and hands it to the after-scan
// hook so failure notifications still fire. The error frame has already been
// emitted; no complete frame follows.
func (o *Orchestrator) fail(ctx context.Context, run domain.ScanRun) (domain.ScanRun, error) {
	now := o.now().UTC()
	run.CompletedAt = &now
	if err := o.p.Runs.Finish(ctx, run); err != nil {
		o.logger.Error("finish run record failed",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
	}

	o.logger.Info("scan finished",
		slog.String("run_id", run.ID),
		slog.String("status", string(run.Status)),
		slog.Int("errors", run.ErrorCount),
		slog.String("message", run.ErrorMessage),
		slog.Duration("elapsed", now.Sub(run.StartedAt)),
	)

	if o.p.AfterScan != nil {
		o.p.AfterScan(run, nil)
	}
	return run, nil
}

func sinkGone(sink domain.EventSink) bool {
	da, ok := sink.(DisconnectAware)
	return ok && da.Gone()
}
