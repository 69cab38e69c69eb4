package aggregate

import (
	"math"

	"github.com/ballistic/scorecard-api/internal/models"
)

// Derive computes per-game averages and the K/D ratio for an aggregate.
// Zero games yields all-zero averages, and zero deaths uses a divisor of 1
// by convention; neither case is a fault.
func Derive(a models.PlayerAggregate) models.DerivedStats {
	if a.GamesPlayed == 0 {
		return models.DerivedStats{
			KDRatio: round2(float64(a.TotalEliminations) / float64(max(a.TotalDeaths, 1))),
		}
	}
	games := float64(a.GamesPlayed)
	return models.DerivedStats{
		AvgEliminations: round2(float64(a.TotalEliminations) / games),
		AvgAssists:      round2(float64(a.TotalAssists) / games),
		AvgDeaths:       round2(float64(a.TotalDeaths) / games),
		AvgPlants:       round2(float64(a.TotalPlants) / games),
		AvgDefuses:      round2(float64(a.TotalDefuses) / games),
		KDRatio:         round2(float64(a.TotalEliminations) / float64(max(a.TotalDeaths, 1))),
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
