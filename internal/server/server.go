// Package server exposes the scan API over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sellerscope/arbscan/internal/server/handler"
	"github.com/sellerscope/arbscan/internal/server/middleware"
	"github.com/sellerscope/arbscan/internal/server/ws"
)

// Per-client request budget. Scans stream over a single long-lived request,
// so a low steady rate with a modest burst is plenty.
const (
	requestsPerSecond = 10
	requestBurst      = 20
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health        *handler.HealthHandler
	Scans         *handler.ScanHandler
	Opportunities *handler.OpportunityHandler
	History       *handler.HistoryHandler
	Blacklist     *handler.BlacklistHandler
}

// Server is the HTTP + WebSocket API server for the arbitrage scanner.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth) and attaches the WebSocket
// hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required on the route itself; auth middleware
	// applies uniformly, health probes supply the key like any caller).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Scan lifecycle.
	mux.HandleFunc("POST /api/scans", handlers.Scans.StartScan)
	mux.HandleFunc("GET /api/scans", handlers.Scans.ListScans)
	mux.HandleFunc("GET /api/scans/{id}", handlers.Scans.GetScan)
	mux.HandleFunc("POST /api/scans/{id}/stop", handlers.Scans.StopScan)
	mux.HandleFunc("GET /api/scans/{id}/opportunities", handlers.Scans.ListRunOpportunities)
	mux.HandleFunc("GET /api/scans/{id}/report", handlers.Scans.GetReport)

	// Opportunity and history reads.
	mux.HandleFunc("GET /api/opportunities/recent", handlers.Opportunities.ListRecent)
	mux.HandleFunc("GET /api/history/{asin}", handlers.History.ListByASIN)

	// Blacklist management.
	mux.HandleFunc("GET /api/blacklist", handlers.Blacklist.List)
	mux.HandleFunc("POST /api/blacklist/{asin}", handlers.Blacklist.Add)
	mux.HandleFunc("DELETE /api/blacklist/{asin}", handlers.Blacklist.Remove)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.RateLimit(requestsPerSecond, requestBurst)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     h,
		ReadTimeout: 15 * time.Second,
		// No write timeout: scan responses stream NDJSON for the full
		// duration of the run.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
