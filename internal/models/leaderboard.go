package models

import (
	"sort"
	"time"
)

// PlayerIdentity is one real player across multiple raw username spellings.
// Aliases partition every raw username seen so far: no alias belongs to two
// identities. CanonicalUsername is the display name chosen for the identity.
type PlayerIdentity struct {
	CanonicalUsername string   `json:"canonical_username"`
	Aliases           []string `json:"aliases"`
}

// HasAlias reports whether raw is already one of the identity's aliases.
func (p *PlayerIdentity) HasAlias(raw string) bool {
	for _, a := range p.Aliases {
		if a == raw {
			return true
		}
	}
	return false
}

// AddAlias records a new raw spelling, keeping the alias list sorted so that
// identities compare deterministically regardless of observation order.
func (p *PlayerIdentity) AddAlias(raw string) {
	if p.HasAlias(raw) {
		return
	}
	p.Aliases = append(p.Aliases, raw)
	sort.Strings(p.Aliases)
}

// ImageContribution is the portion of an aggregate contributed by a single
// source image. The combine merger subtracts these back out when an image
// turns out to be already processed.
type ImageContribution struct {
	Eliminations int         `json:"eliminations"`
	Assists      int         `json:"assists"`
	Deaths       int         `json:"deaths"`
	Plants       int         `json:"plants"`
	Defuses      int         `json:"defuses"`
	Result       MatchResult `json:"result"`
	ExtractedAt  time.Time   `json:"extracted_at"`
}

// PlayerAggregate is the cumulative stat line for one identity.
//
// Invariant: GamesPlayed equals the number of distinct source images that
// contributed, and the totals are the sums over exactly those images.
type PlayerAggregate struct {
	Identity          PlayerIdentity `json:"identity"`
	GamesPlayed       int            `json:"games_played"`
	TotalEliminations int            `json:"total_eliminations"`
	TotalAssists      int            `json:"total_assists"`
	TotalDeaths       int            `json:"total_deaths"`
	TotalPlants       int            `json:"total_plants"`
	TotalDefuses      int            `json:"total_defuses"`
	Victories         int            `json:"victories"`
	Defeats           int            `json:"defeats"`
	LastTeam          Team           `json:"last_team"`
	FirstSeen         time.Time      `json:"first_seen"`
	LastSeen          time.Time      `json:"last_seen"`

	// ProcessedImageIDs are the distinct source images counted into this
	// aggregate, kept sorted.
	ProcessedImageIDs []string `json:"processed_image_ids"`

	// Contributions holds per-image stat lines for freshly aggregated
	// batches. The merger consumes them for the idempotency guard and does
	// not persist them in snapshots.
	Contributions map[string]ImageContribution `json:"contributions,omitempty"`
}

// HasImage reports whether the given source image already contributed.
func (a *PlayerAggregate) HasImage(id string) bool {
	i := sort.SearchStrings(a.ProcessedImageIDs, id)
	return i < len(a.ProcessedImageIDs) && a.ProcessedImageIDs[i] == id
}

// Leaderboard is an immutable snapshot: ordered aggregates plus the global
// set of already-processed source images. Merges never mutate a snapshot in
// place; they produce a new one.
type Leaderboard struct {
	Entries           []PlayerAggregate `json:"entries"`
	ProcessedImageIDs []string          `json:"processed_image_ids"`
}

// HasImage reports whether the snapshot already accounted for an image.
func (l *Leaderboard) HasImage(id string) bool {
	i := sort.SearchStrings(l.ProcessedImageIDs, id)
	return i < len(l.ProcessedImageIDs) && l.ProcessedImageIDs[i] == id
}

// Sort orders entries by total eliminations descending, ties broken
// alphabetically by canonical username.
func (l *Leaderboard) Sort() {
	sort.Slice(l.Entries, func(i, j int) bool {
		if l.Entries[i].TotalEliminations != l.Entries[j].TotalEliminations {
			return l.Entries[i].TotalEliminations > l.Entries[j].TotalEliminations
		}
		return l.Entries[i].Identity.CanonicalUsername < l.Entries[j].Identity.CanonicalUsername
	})
}

// SkippedRecord describes a record dropped from aggregation, reported as a
// warning rather than a failure.
type SkippedRecord struct {
	RawUsername   string `json:"raw_username"`
	Team          Team   `json:"team"`
	SourceImageID string `json:"source_image_id"`
	Reason        string `json:"reason"`
}

// MergeReport summarizes one combine operation.
type MergeReport struct {
	PlayersUpdated int             `json:"players_updated"`
	PlayersAdded   int             `json:"players_added"`
	ImagesSkipped  int             `json:"images_skipped"`
	Warnings       []SkippedRecord `json:"warnings,omitempty"`
}

// DerivedStats are the per-game averages and ratios computed from an
// aggregate. Pure output, never stored.
type DerivedStats struct {
	AvgEliminations float64 `json:"avg_eliminations"`
	AvgAssists      float64 `json:"avg_assists"`
	AvgDeaths       float64 `json:"avg_deaths"`
	AvgPlants       float64 `json:"avg_plants"`
	AvgDefuses      float64 `json:"avg_defuses"`
	KDRatio         float64 `json:"kd_ratio"`
}
