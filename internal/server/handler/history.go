package handler

import (
	"log/slog"
	"net/http"

	"github.com/sellerscope/arbscan/internal/domain"
)

// HistoryHandler serves read access to the price history log.
type HistoryHandler struct {
	history domain.PriceHistoryStore
	logger  *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(history domain.PriceHistoryStore, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{history: history, logger: logger}
}

// ListByASIN returns the caller's recorded price observations for one ASIN
// across all marketplaces, newest first.
// GET /api/history/{asin}
func (h *HistoryHandler) ListByASIN(w http.ResponseWriter, r *http.Request) {
	asin := domain.NormalizeASIN(r.PathValue("asin"))
	if !domain.ValidASIN(asin) {
		writeError(w, http.StatusBadRequest, "invalid ASIN")
		return
	}

	entries, err := h.history.ListByASIN(r.Context(), userID(r), asin, parseListOpts(r))
	if err != nil {
		logHandler(h.logger, "list_history").Error("list failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list price history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"asin": asin, "history": entries})
}
