// Package app provides top-level application lifecycle management for the
// arbitrage scanner. It wires dependencies (stores, caches, blob storage,
// platform clients, notifications), assembles the scan pipeline, and runs
// the HTTP server, WebSocket hub, and job queue until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sellerscope/arbscan/internal/catalog"
	"github.com/sellerscope/arbscan/internal/config"
	"github.com/sellerscope/arbscan/internal/domain"
	"github.com/sellerscope/arbscan/internal/evaluate"
	"github.com/sellerscope/arbscan/internal/fees"
	"github.com/sellerscope/arbscan/internal/history"
	"github.com/sellerscope/arbscan/internal/notify"
	"github.com/sellerscope/arbscan/internal/platform/keepa"
	"github.com/sellerscope/arbscan/internal/platform/spapi"
	"github.com/sellerscope/arbscan/internal/pricing"
	"github.com/sellerscope/arbscan/internal/ratelimit"
	"github.com/sellerscope/arbscan/internal/retry"
	"github.com/sellerscope/arbscan/internal/scan"
	"github.com/sellerscope/arbscan/internal/server"
	"github.com/sellerscope/arbscan/internal/server/handler"
	"github.com/sellerscope/arbscan/internal/server/ws"
	"github.com/sellerscope/arbscan/internal/stream"
)

// queueBuffer bounds the number of pending post-scan jobs.
const queueBuffer = 64

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 15 * time.Second

// App is the root application object. It owns the configuration, logger,
// and a list of cleanup functions that are called in reverse order on
// shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, assembles the
// scan pipeline, starts the server goroutines, and blocks until the context
// is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
		slog.String("home_marketplace", a.cfg.Scan.HomeMarketplace),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	home, sources, err := marketplaces(a.cfg)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	// Platform clients and the shared limiter.
	spapiClient := spapi.NewClient(a.cfg.SPAPI.Host, a.cfg.SPAPI.AccessToken)
	var keepaFallback catalog.Fallback
	if a.cfg.Keepa.APIKey != "" {
		keepaFallback = keepa.NewClient(a.cfg.Keepa.Host, a.cfg.Keepa.APIKey)
	}
	limiter := ratelimit.New()
	policy := retry.Policy{
		MaxAttempts: a.cfg.Scan.RetryMaxAttempts,
		Backoff:     a.cfg.Scan.RetryBackoff.Duration,
	}

	// Pipeline components.
	fetcher := pricing.NewFetcher(spapiClient, limiter, a.cfg.Scan.PricingInterval.Duration, a.logger)
	calculator := fees.NewCalculator(spapiClient, limiter, a.cfg.Scan.FeesInterval.Duration, policy, a.cfg.Scan.DigitalServicesFeePct, a.logger)
	enricher := catalog.NewEnricher(spapiClient, keepaFallback, limiter, a.cfg.Scan.CatalogInterval.Duration, a.logger)
	evaluator := evaluate.New(a.cfg.Scan.VATRate)
	tracker := history.NewTracker(deps.HistoryStore, deps.LatestPrices, a.logger)

	queue := scan.NewQueue(queueBuffer, a.logger)
	registry := scan.NewRegistry()

	orchestrator := scan.NewOrchestrator(scan.Params{
		Home:      home,
		Sources:   sources,
		BatchSize: a.cfg.Scan.BatchSize,
		Stagger:   a.cfg.Scan.SourceStagger.Duration,
		Pricing:   fetcher,
		Fees:      calculator,
		Catalog:   enricher,
		History:   tracker,
		Evaluator: evaluator,
		Runs:      deps.RunStore,
		Opps:      deps.OppStore,
		Blacklist: deps.BlacklistStore,
		Registry:  registry,
		AfterScan: a.afterScan(queue, deps),
		Logger:    a.logger,
	})

	// Event fan-out to dashboard watchers.
	busSink := stream.NewBusSink(ctx, deps.SignalBus, a.logger)
	hub := ws.NewHub(deps.SignalBus, a.logger)

	var reports handler.ReportSource
	if deps.ReportReader != nil {
		reports = deps.ReportReader
	}
	handlers := server.Handlers{
		Health:        handler.NewHealthHandler(deps.Redis, queue, a.logger),
		Scans:         handler.NewScanHandler(orchestrator, deps.RunStore, deps.OppStore, registry, busSink, reports, a.logger),
		Opportunities: handler.NewOpportunityHandler(deps.OppStore, a.logger),
		History:       handler.NewHistoryHandler(deps.HistoryStore, a.logger),
		Blacklist:     handler.NewBlacklistHandler(deps.BlacklistStore, a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := hub.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := queue.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

// afterScan builds the hook that hands off archival and notification jobs
// once a run finishes. Queue overflow is logged, never fatal.
func (a *App) afterScan(queue *scan.Queue, deps *Dependencies) func(run domain.ScanRun, opps []domain.Opportunity) {
	return func(run domain.ScanRun, opps []domain.Opportunity) {
		if deps.Archiver != nil {
			job := scan.Job{
				Name: "archive:" + run.ID,
				Run: func(ctx context.Context) error {
					key, err := deps.Archiver.ArchiveReport(ctx, run, opps)
					if err != nil {
						return err
					}
					a.logger.Info("scan report archived",
						slog.String("run_id", run.ID),
						slog.String("key", key),
					)
					return nil
				},
			}
			if err := queue.Enqueue(job); err != nil {
				a.logger.Warn("archive job dropped", slog.String("error", err.Error()))
			}
		}

		job := scan.Job{
			Name: "notify:" + run.ID,
			Run: func(ctx context.Context) error {
				event := notify.EventScanCompleted
				if run.Status == domain.ScanFailed {
					event = notify.EventScanFailed
				}
				title, message := notify.FormatScanResult(run)
				if err := deps.Notifier.Notify(ctx, event, title, message); err != nil {
					a.logger.Warn("scan result notification failed", slog.String("error", err.Error()))
				}

				for _, opp := range opps {
					if !opp.Profitable() {
						continue
					}
					title, message := notify.FormatOpportunity(opp)
					if err := deps.Notifier.Notify(ctx, notify.EventOpportunityFound, title, message); err != nil {
						a.logger.Warn("opportunity notification failed",
							slog.String("asin", opp.ASIN),
							slog.String("error", err.Error()),
						)
					}
				}
				return nil
			},
		}
		if err := queue.Enqueue(job); err != nil {
			a.logger.Warn("notify job dropped", slog.String("error", err.Error()))
		}
	}
}

// marketplaces resolves the configured home and source marketplaces into
// domain values, preserving the configured source order.
func marketplaces(cfg *config.Config) (home domain.Marketplace, sources []domain.Marketplace, err error) {
	toDomain := func(mc config.MarketplaceConfig, isHome bool) domain.Marketplace {
		return domain.Marketplace{
			Code:           mc.Code,
			Name:           mc.Name,
			MarketplaceID:  mc.MarketplaceID,
			Currency:       mc.Currency,
			ConversionRate: mc.ConversionRate,
			Home:           isHome,
		}
	}

	hc, ok := cfg.MarketplaceByCode(cfg.Scan.HomeMarketplace)
	if !ok {
		return domain.Marketplace{}, nil, fmt.Errorf("unknown home marketplace %q", cfg.Scan.HomeMarketplace)
	}
	home = toDomain(hc, true)

	for _, code := range cfg.Scan.SourceMarketplaces {
		sc, ok := cfg.MarketplaceByCode(code)
		if !ok {
			return domain.Marketplace{}, nil, fmt.Errorf("unknown source marketplace %q", code)
		}
		sources = append(sources, toDomain(sc, false))
	}
	return home, sources, nil
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
