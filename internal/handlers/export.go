package handlers

import (
	"net/http"

	"github.com/ballistic/scorecard-api/internal/export"
)

// ExportCSV handles GET /api/v1/leaderboard/export.csv.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	lb, _, err := h.snapshots.Load(r.Context())
	if err != nil {
		h.logger.Errorw("Failed to load snapshot", "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "Failed to load leaderboard")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="leaderboard.csv"`)
	if err := export.WriteCSV(w, lb); err != nil {
		// Headers already sent; log and give up on this response.
		h.logger.Errorw("Failed to stream CSV export", "error", err)
	}
}

// PushSheets handles POST /api/v1/leaderboard/push.
func (h *Handler) PushSheets(w http.ResponseWriter, r *http.Request) {
	if h.sheets == nil {
		h.errorResponse(w, http.StatusServiceUnavailable, "Google Sheets push not configured")
		return
	}

	ctx := r.Context()
	lb, version, err := h.snapshots.Load(ctx)
	if err != nil {
		h.logger.Errorw("Failed to load snapshot", "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "Failed to load leaderboard")
		return
	}

	if err := h.sheets.Push(ctx, lb); err != nil {
		h.logger.Errorw("Failed to push to Google Sheets", "error", err)
		h.errorResponse(w, http.StatusBadGateway, "Sheets push failed: "+err.Error())
		return
	}

	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":  "pushed",
		"version": version,
		"players": len(lb.Entries),
	})
}
