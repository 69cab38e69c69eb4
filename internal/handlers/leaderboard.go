package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ballistic/scorecard-api/internal/aggregate"
	"github.com/ballistic/scorecard-api/internal/models"
)

// leaderboardRow is one ranked entry with derived stats attached.
type leaderboardRow struct {
	Rank              int                 `json:"rank"`
	Username          string              `json:"username"`
	Aliases           []string            `json:"aliases"`
	GamesPlayed       int                 `json:"games_played"`
	TotalEliminations int                 `json:"total_eliminations"`
	TotalAssists      int                 `json:"total_assists"`
	TotalDeaths       int                 `json:"total_deaths"`
	TotalPlants       int                 `json:"total_plants"`
	TotalDefuses      int                 `json:"total_defuses"`
	Victories         int                 `json:"victories"`
	Defeats           int                 `json:"defeats"`
	Team              models.Team         `json:"team"`
	Derived           models.DerivedStats `json:"derived"`
}

func toRow(rank int, e models.PlayerAggregate) leaderboardRow {
	return leaderboardRow{
		Rank:              rank,
		Username:          e.Identity.CanonicalUsername,
		Aliases:           e.Identity.Aliases,
		GamesPlayed:       e.GamesPlayed,
		TotalEliminations: e.TotalEliminations,
		TotalAssists:      e.TotalAssists,
		TotalDeaths:       e.TotalDeaths,
		TotalPlants:       e.TotalPlants,
		TotalDefuses:      e.TotalDefuses,
		Victories:         e.Victories,
		Defeats:           e.Defeats,
		Team:              e.LastTeam,
		Derived:           aggregate.Derive(e),
	}
}

// GetLeaderboard handles GET /api/v1/leaderboard.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 25
	page := 1
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if p := r.URL.Query().Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}
	offset := (page - 1) * limit

	lb, version, err := h.snapshots.Load(ctx)
	if err != nil {
		h.logger.Errorw("Failed to load snapshot", "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "Failed to load leaderboard")
		return
	}

	rows := []leaderboardRow{}
	for i := offset; i < len(lb.Entries) && i < offset+limit; i++ {
		rows = append(rows, toRow(i+1, lb.Entries[i]))
	}

	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"version": version,
		"total":   len(lb.Entries),
		"page":    page,
		"limit":   limit,
		"entries": rows,
	})
}

// GetPlayer handles GET /api/v1/players/{name}. The name may be any noisy
// spelling; it is resolved against the snapshot with the same matching rule
// used during merges.
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name := chi.URLParam(r, "name")
	if name == "" {
		h.errorResponse(w, http.StatusBadRequest, "Missing player name")
		return
	}

	lb, _, err := h.snapshots.Load(ctx)
	if err != nil {
		h.logger.Errorw("Failed to load snapshot", "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "Failed to load leaderboard")
		return
	}

	idx := h.resolver.MatchEntry(&lb, []string{name})
	if idx < 0 {
		h.errorResponse(w, http.StatusNotFound, "Player not found")
		return
	}

	h.jsonResponse(w, http.StatusOK, toRow(idx+1, lb.Entries[idx]))
}
