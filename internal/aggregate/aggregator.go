// Package aggregate folds resolved match records into cumulative player
// totals and merges fresh batches into an existing leaderboard snapshot.
package aggregate

import (
	"sort"

	"github.com/ballistic/scorecard-api/internal/identity"
	"github.com/ballistic/scorecard-api/internal/models"
)

// Aggregate folds records into one PlayerAggregate per resolved identity.
//
// Games are counted per distinct source image, not per record: a screenshot
// that yields two rows for the same player is one game. Stat totals still
// sum every contributing record. The fold is associative and commutative,
// so the output is independent of record order; the returned slice is
// sorted by canonical username.
func Aggregate(records []models.RawMatchRecord, res *identity.Resolution) []models.PlayerAggregate {
	byIdentity := make(map[int]*models.PlayerAggregate)

	for i, rec := range records {
		id := res.RecordIdentity[i]
		if id < 0 {
			continue
		}

		agg, ok := byIdentity[id]
		if !ok {
			agg = &models.PlayerAggregate{
				Identity:      res.Identities[id],
				Contributions: map[string]models.ImageContribution{},
				LastTeam:      models.TeamUnknown,
			}
			byIdentity[id] = agg
		}

		contrib := agg.Contributions[rec.SourceImageID]
		contrib.Eliminations += rec.Eliminations
		contrib.Assists += rec.Assists
		contrib.Deaths += rec.Deaths
		contrib.Plants += rec.Plants
		contrib.Defuses += rec.Defuses
		contrib.Result = rec.MatchResult
		contrib.ExtractedAt = rec.ExtractedAt
		agg.Contributions[rec.SourceImageID] = contrib
	}

	out := make([]models.PlayerAggregate, 0, len(byIdentity))
	for id, agg := range byIdentity {
		finalize(agg, id, records, res)
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Identity.CanonicalUsername < out[j].Identity.CanonicalUsername
	})
	return out
}

// finalize computes the aggregate's totals from its per-image contributions
// and derives last_team from the latest record by extracted_at.
func finalize(agg *models.PlayerAggregate, id int, records []models.RawMatchRecord, res *identity.Resolution) {
	images := make([]string, 0, len(agg.Contributions))
	for img := range agg.Contributions {
		images = append(images, img)
	}
	sort.Strings(images)

	for _, img := range images {
		c := agg.Contributions[img]
		agg.TotalEliminations += c.Eliminations
		agg.TotalAssists += c.Assists
		agg.TotalDeaths += c.Deaths
		agg.TotalPlants += c.Plants
		agg.TotalDefuses += c.Defuses
		switch c.Result {
		case models.ResultWin:
			agg.Victories++
		case models.ResultLoss:
			agg.Defeats++
		}
		if agg.FirstSeen.IsZero() || c.ExtractedAt.Before(agg.FirstSeen) {
			agg.FirstSeen = c.ExtractedAt
		}
		if c.ExtractedAt.After(agg.LastSeen) {
			agg.LastSeen = c.ExtractedAt
		}
	}
	agg.ProcessedImageIDs = images
	agg.GamesPlayed = len(images)

	// last_team comes from the most recent record. Equal timestamps are
	// broken by the greater source image id, then by team order, so the
	// result never depends on input permutation.
	var bestIdx = -1
	for i, rec := range records {
		if res.RecordIdentity[i] != id {
			continue
		}
		if bestIdx < 0 || laterRecord(rec, records[bestIdx]) {
			bestIdx = i
		}
	}
	if bestIdx >= 0 {
		agg.LastTeam = records[bestIdx].Team
	}
}

func laterRecord(a, b models.RawMatchRecord) bool {
	if !a.ExtractedAt.Equal(b.ExtractedAt) {
		return a.ExtractedAt.After(b.ExtractedAt)
	}
	if a.SourceImageID != b.SourceImageID {
		return a.SourceImageID > b.SourceImageID
	}
	return a.Team > b.Team
}
