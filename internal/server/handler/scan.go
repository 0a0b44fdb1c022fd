package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sellerscope/arbscan/internal/blob/s3"
	"github.com/sellerscope/arbscan/internal/domain"
	"github.com/sellerscope/arbscan/internal/stream"
)

// ScanRunner executes one scan end to end, streaming events to the sink.
type ScanRunner interface {
	Run(ctx context.Context, userID string, asins []string, sink domain.EventSink) (domain.ScanRun, error)
}

// Stopper requests a graceful halt of an in-flight run.
type Stopper interface {
	Stop(runID string) bool
	Active(runID string) bool
}

// ReportSource retrieves archived scan reports by object key.
type ReportSource interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// ScanHandler serves the scan lifecycle endpoints.
type ScanHandler struct {
	runner    ScanRunner
	runs      domain.ScanRunStore
	opps      domain.OpportunityStore
	registry  Stopper
	extraSink domain.EventSink // bus sink for dashboard watchers; may be nil
	reports   ReportSource     // may be nil when archival is disabled
	logger    *slog.Logger
}

// NewScanHandler creates a ScanHandler.
func NewScanHandler(runner ScanRunner, runs domain.ScanRunStore, opps domain.OpportunityStore, registry Stopper, extraSink domain.EventSink, reports ReportSource, logger *slog.Logger) *ScanHandler {
	return &ScanHandler{
		runner:    runner,
		runs:      runs,
		opps:      opps,
		registry:  registry,
		extraSink: extraSink,
		reports:   reports,
		logger:    logger,
	}
}

// scanRequest is the POST /api/scans body.
type scanRequest struct {
	ASINs []string `json:"asins"`
}

// StartScan runs a scan and streams NDJSON event frames back on the same
// connection. The response stays open for the duration of the run. If the
// caller disconnects mid-stream, processing continues server-side and the
// run finishes with partial status.
// POST /api/scans
func (h *ScanHandler) StartScan(w http.ResponseWriter, r *http.Request) {
	log := logHandler(h.logger, "start_scan")

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.ASINs) == 0 {
		writeError(w, http.StatusBadRequest, "asins must not be empty")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	reporter := stream.NewReporter(w, log)
	go func() {
		<-r.Context().Done()
		reporter.MarkGone()
	}()
	sink := stream.NewFanout(reporter, h.extraSink)

	// Detach from the request context so a dropped connection does not
	// abort server-side processing; the reporter's gone flag records the
	// disconnect instead.
	ctx := context.WithoutCancel(r.Context())
	if _, err := h.runner.Run(ctx, userID(r), req.ASINs, sink); err != nil {
		// The error frame has already been streamed; nothing more to send.
		log.Warn("scan run failed", slog.String("error", err.Error()))
	}
}

// StopScan requests a graceful halt of a running scan.
// POST /api/scans/{id}/stop
func (h *ScanHandler) StopScan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if h.registry.Stop(id) {
		writeJSON(w, http.StatusOK, map[string]any{"run_id": id, "stopping": true})
		return
	}

	// Not in flight: distinguish finished runs from unknown IDs.
	if _, err := h.runs.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "scan run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to look up scan run")
		return
	}
	writeError(w, http.StatusConflict, "scan run already finished")
}

// GetScan returns one scan run's counters and status.
// GET /api/scans/{id}
func (h *ScanHandler) GetScan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	run, err := h.runs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "scan run not found")
			return
		}
		logHandler(h.logger, "get_scan").Error("get run failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load scan run")
		return
	}
	writeJSON(w, http.StatusOK, runResponse(run))
}

// ListScans returns the caller's scan runs, newest first.
// GET /api/scans
func (h *ScanHandler) ListScans(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runs.ListByUser(r.Context(), userID(r), parseListOpts(r))
	if err != nil {
		logHandler(h.logger, "list_scans").Error("list runs failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list scan runs")
		return
	}

	out := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		out = append(out, runResponse(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

// ListRunOpportunities returns all opportunities found by one run.
// GET /api/scans/{id}/opportunities
func (h *ScanHandler) ListRunOpportunities(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	opps, err := h.opps.ListByRun(r.Context(), id)
	if err != nil {
		logHandler(h.logger, "list_run_opportunities").Error("list failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": id, "opportunities": opps})
}

// GetReport streams the archived JSON report of a finished run.
// GET /api/scans/{id}/report
func (h *ScanHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		writeError(w, http.StatusNotFound, "report archival is not enabled")
		return
	}
	id := r.PathValue("id")

	run, err := h.runs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "scan run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load scan run")
		return
	}

	body, err := h.reports.Get(r.Context(), s3blob.ReportKey(run.ID, run.StartedAt))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "report not archived yet")
			return
		}
		logHandler(h.logger, "get_report").Error("report fetch failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to fetch report")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		logHandler(h.logger, "get_report").Warn("report stream interrupted", slog.String("error", err.Error()))
	}
}

// runResponse shapes a run for JSON output.
func runResponse(run domain.ScanRun) map[string]any {
	out := map[string]any{
		"id":                  run.ID,
		"user_id":             run.UserID,
		"status":              string(run.Status),
		"current_step":        run.CurrentStep,
		"progress":            run.Progress,
		"total_items":         run.TotalItems,
		"processed_count":     run.ProcessedCount,
		"opportunities_found": run.OpportunitiesFound,
		"excluded_count":      run.ExcludedCount,
		"error_count":         run.ErrorCount,
		"started_at":          run.StartedAt,
	}
	if run.ErrorMessage != "" {
		out["error_message"] = run.ErrorMessage
	}
	if run.CompletedAt != nil {
		out["completed_at"] = run.CompletedAt
	}
	return out
}
