package handler

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/sellerscope/arbscan/internal/domain"
)

// BlacklistHandler manages the caller's set of excluded ASINs.
type BlacklistHandler struct {
	blacklist domain.BlacklistStore
	logger    *slog.Logger
}

// NewBlacklistHandler creates a BlacklistHandler.
func NewBlacklistHandler(blacklist domain.BlacklistStore, logger *slog.Logger) *BlacklistHandler {
	return &BlacklistHandler{blacklist: blacklist, logger: logger}
}

// List returns the caller's blacklisted ASINs, sorted.
// GET /api/blacklist
func (h *BlacklistHandler) List(w http.ResponseWriter, r *http.Request) {
	set, err := h.blacklist.Get(r.Context(), userID(r))
	if err != nil {
		logHandler(h.logger, "list_blacklist").Error("read failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read blacklist")
		return
	}

	asins := make([]string, 0, len(set))
	for asin := range set {
		asins = append(asins, asin)
	}
	sort.Strings(asins)
	writeJSON(w, http.StatusOK, map[string]any{"asins": asins})
}

// Add excludes an ASIN from the caller's future scans. Idempotent.
// POST /api/blacklist/{asin}
func (h *BlacklistHandler) Add(w http.ResponseWriter, r *http.Request) {
	asin := domain.NormalizeASIN(r.PathValue("asin"))
	if !domain.ValidASIN(asin) {
		writeError(w, http.StatusBadRequest, "invalid ASIN")
		return
	}

	if err := h.blacklist.Add(r.Context(), userID(r), asin); err != nil {
		logHandler(h.logger, "add_blacklist").Error("add failed",
			slog.String("asin", asin),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to update blacklist")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"asin": asin, "status": "blacklisted"})
}

// Remove re-admits an ASIN to the caller's scans. Removing an ASIN that is
// not blacklisted is a no-op.
// DELETE /api/blacklist/{asin}
func (h *BlacklistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	asin := domain.NormalizeASIN(r.PathValue("asin"))
	if !domain.ValidASIN(asin) {
		writeError(w, http.StatusBadRequest, "invalid ASIN")
		return
	}

	if err := h.blacklist.Remove(r.Context(), userID(r), asin); err != nil {
		logHandler(h.logger, "remove_blacklist").Error("remove failed",
			slog.String("asin", asin),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to update blacklist")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"asin": asin, "status": "removed"})
}
