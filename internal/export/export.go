// Package export renders leaderboard snapshots as tabular rows for
// delimited-text download and Google Sheets push.
package export

import (
	"strconv"

	"github.com/ballistic/scorecard-api/internal/aggregate"
	"github.com/ballistic/scorecard-api/internal/models"
)

// Header is the column order of exported rows.
var Header = []string{
	"username", "games_played",
	"total_eliminations", "total_assists", "total_deaths",
	"total_plants", "total_defuses",
	"avg_eliminations", "avg_assists", "avg_deaths", "avg_plants", "avg_defuses",
	"kd_ratio", "team", "victories", "defeats", "last_updated",
}

// Rows converts a snapshot into export rows, preserving its ordering.
func Rows(lb models.Leaderboard) [][]string {
	rows := make([][]string, 0, len(lb.Entries))
	for _, e := range lb.Entries {
		d := aggregate.Derive(e)
		lastUpdated := ""
		if !e.LastSeen.IsZero() {
			lastUpdated = e.LastSeen.UTC().Format("2006-01-02T15:04:05Z")
		}
		rows = append(rows, []string{
			e.Identity.CanonicalUsername,
			strconv.Itoa(e.GamesPlayed),
			strconv.Itoa(e.TotalEliminations),
			strconv.Itoa(e.TotalAssists),
			strconv.Itoa(e.TotalDeaths),
			strconv.Itoa(e.TotalPlants),
			strconv.Itoa(e.TotalDefuses),
			formatFloat(d.AvgEliminations),
			formatFloat(d.AvgAssists),
			formatFloat(d.AvgDeaths),
			formatFloat(d.AvgPlants),
			formatFloat(d.AvgDefuses),
			formatFloat(d.KDRatio),
			string(e.LastTeam),
			strconv.Itoa(e.Victories),
			strconv.Itoa(e.Defeats),
			lastUpdated,
		})
	}
	return rows
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
