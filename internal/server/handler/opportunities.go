package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sellerscope/arbscan/internal/domain"
)

// OpportunityHandler serves read access to evaluated opportunities.
type OpportunityHandler struct {
	opps   domain.OpportunityStore
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler.
func NewOpportunityHandler(opps domain.OpportunityStore, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{opps: opps, logger: logger}
}

// ListRecent returns the caller's most recent opportunities across runs.
// GET /api/opportunities/recent
func (h *OpportunityHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	opps, err := h.opps.ListRecent(r.Context(), userID(r), limit)
	if err != nil {
		logHandler(h.logger, "list_recent_opportunities").Error("list failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"opportunities": opps})
}
