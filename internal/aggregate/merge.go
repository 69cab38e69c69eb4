package aggregate

import (
	"fmt"
	"sort"

	"github.com/ballistic/scorecard-api/internal/identity"
	"github.com/ballistic/scorecard-api/internal/models"
)

// MergeValidationError aborts a merge before commit. The prior snapshot is
// left untouched when it is returned.
type MergeValidationError struct {
	Canonical string
	Reason    string
}

func (e *MergeValidationError) Error() string {
	if e.Canonical == "" {
		return "merge validation: " + e.Reason
	}
	return fmt.Sprintf("merge validation for %q: %s", e.Canonical, e.Reason)
}

// Combine merges a freshly aggregated batch into the prior snapshot and
// returns a new snapshot plus a report. The prior value is never mutated.
//
// Per incoming aggregate: contributions from source images the snapshot has
// already accounted for are subtracted back out first, so resubmitting a
// screenshot changes nothing. Whatever survives is added onto the matching
// prior entry, or becomes a new entry.
func Combine(prior models.Leaderboard, incoming []models.PlayerAggregate, warnings []models.SkippedRecord, resolver *identity.Resolver) (models.Leaderboard, models.MergeReport, error) {
	report := models.MergeReport{Warnings: warnings}

	if err := validateSnapshot(&prior); err != nil {
		return prior, report, err
	}

	next := cloneLeaderboard(prior)
	skippedImages := map[string]struct{}{}
	newImages := map[string]struct{}{}

	for _, in := range incoming {
		in := cloneAggregate(in)

		// Idempotency guard: discard already-processed images entirely.
		// Collect first; subtractImage compacts the slice being inspected.
		var seen []string
		for _, img := range in.ProcessedImageIDs {
			if prior.HasImage(img) {
				seen = append(seen, img)
			}
		}
		for _, img := range seen {
			subtractImage(&in, img)
			skippedImages[img] = struct{}{}
		}
		if in.GamesPlayed == 0 {
			continue
		}
		for _, img := range in.ProcessedImageIDs {
			newImages[img] = struct{}{}
		}

		if err := validateAggregate(&in); err != nil {
			return prior, models.MergeReport{Warnings: warnings}, err
		}

		idx := resolver.MatchEntry(&next, in.Identity.Aliases)
		if idx < 0 {
			in.Contributions = nil
			next.Entries = append(next.Entries, in)
			report.PlayersAdded++
			continue
		}

		entry := &next.Entries[idx]
		entry.GamesPlayed += in.GamesPlayed
		entry.TotalEliminations += in.TotalEliminations
		entry.TotalAssists += in.TotalAssists
		entry.TotalDeaths += in.TotalDeaths
		entry.TotalPlants += in.TotalPlants
		entry.TotalDefuses += in.TotalDefuses
		entry.Victories += in.Victories
		entry.Defeats += in.Defeats
		entry.LastTeam = in.LastTeam
		if entry.FirstSeen.IsZero() || (!in.FirstSeen.IsZero() && in.FirstSeen.Before(entry.FirstSeen)) {
			entry.FirstSeen = in.FirstSeen
		}
		if in.LastSeen.After(entry.LastSeen) {
			entry.LastSeen = in.LastSeen
		}
		entry.ProcessedImageIDs = unionSorted(entry.ProcessedImageIDs, in.ProcessedImageIDs)
		for _, alias := range in.Identity.Aliases {
			entry.Identity.AddAlias(alias)
		}
		entry.Identity.CanonicalUsername = resolver.Canonical(entry.Identity.Aliases)
		report.PlayersUpdated++

		if err := validateAggregate(entry); err != nil {
			return prior, models.MergeReport{Warnings: warnings}, err
		}
	}

	for img := range newImages {
		if !next.HasImage(img) {
			next.ProcessedImageIDs = append(next.ProcessedImageIDs, img)
		}
	}
	sort.Strings(next.ProcessedImageIDs)
	next.Sort()

	report.ImagesSkipped = len(skippedImages)
	return next, report, nil
}

// subtractImage removes a single image's contribution from an incoming
// aggregate, reversing exactly what Aggregate added for it.
func subtractImage(agg *models.PlayerAggregate, img string) {
	c, ok := agg.Contributions[img]
	if !ok {
		return
	}
	agg.TotalEliminations -= c.Eliminations
	agg.TotalAssists -= c.Assists
	agg.TotalDeaths -= c.Deaths
	agg.TotalPlants -= c.Plants
	agg.TotalDefuses -= c.Defuses
	switch c.Result {
	case models.ResultWin:
		agg.Victories--
	case models.ResultLoss:
		agg.Defeats--
	}
	agg.GamesPlayed--
	delete(agg.Contributions, img)

	ids := agg.ProcessedImageIDs[:0]
	for _, id := range agg.ProcessedImageIDs {
		if id != img {
			ids = append(ids, id)
		}
	}
	agg.ProcessedImageIDs = ids
}

func validateSnapshot(lb *models.Leaderboard) error {
	seen := map[string]struct{}{}
	for i := range lb.Entries {
		e := &lb.Entries[i]
		name := e.Identity.CanonicalUsername
		if _, dup := seen[name]; dup {
			return &MergeValidationError{Canonical: name, Reason: "duplicate entry in prior snapshot"}
		}
		seen[name] = struct{}{}
		if err := validateAggregate(e); err != nil {
			return err
		}
	}
	return nil
}

func validateAggregate(a *models.PlayerAggregate) error {
	name := a.Identity.CanonicalUsername
	if a.GamesPlayed < 0 || a.TotalEliminations < 0 || a.TotalAssists < 0 ||
		a.TotalDeaths < 0 || a.TotalPlants < 0 || a.TotalDefuses < 0 ||
		a.Victories < 0 || a.Defeats < 0 {
		return &MergeValidationError{Canonical: name, Reason: "negative computed totals"}
	}
	if len(a.ProcessedImageIDs) != a.GamesPlayed {
		return &MergeValidationError{
			Canonical: name,
			Reason: fmt.Sprintf("games_played %d does not match %d contributing images",
				a.GamesPlayed, len(a.ProcessedImageIDs)),
		}
	}
	return nil
}

func cloneLeaderboard(lb models.Leaderboard) models.Leaderboard {
	out := models.Leaderboard{
		Entries:           make([]models.PlayerAggregate, len(lb.Entries)),
		ProcessedImageIDs: append([]string(nil), lb.ProcessedImageIDs...),
	}
	for i, e := range lb.Entries {
		out.Entries[i] = cloneAggregate(e)
	}
	return out
}

func cloneAggregate(a models.PlayerAggregate) models.PlayerAggregate {
	a.Identity.Aliases = append([]string(nil), a.Identity.Aliases...)
	a.ProcessedImageIDs = append([]string(nil), a.ProcessedImageIDs...)
	if a.Contributions != nil {
		contribs := make(map[string]models.ImageContribution, len(a.Contributions))
		for k, v := range a.Contributions {
			contribs[k] = v
		}
		a.Contributions = contribs
	}
	return a
}

func unionSorted(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		set[s] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
