package models

import "time"

// Team is the side a player was on when the scoreboard was captured.
type Team string

const (
	TeamATK     Team = "ATK"
	TeamDEF     Team = "DEF"
	TeamUnknown Team = "unknown"
)

// MatchResult is the outcome of the match from the captured team's view.
type MatchResult string

const (
	ResultWin     MatchResult = "win"
	ResultLoss    MatchResult = "loss"
	ResultUnknown MatchResult = "unknown"
)

// RawMatchRecord is one scoreboard row as produced by the extraction
// collaborator. Records are immutable once created; the pipeline only
// reads them.
type RawMatchRecord struct {
	RawUsername   string      `json:"raw_username"`
	Eliminations  int         `json:"eliminations" validate:"gte=0"`
	Assists       int         `json:"assists" validate:"gte=0"`
	Deaths        int         `json:"deaths" validate:"gte=0"`
	Plants        int         `json:"plants" validate:"gte=0"`
	Defuses       int         `json:"defuses" validate:"gte=0"`
	Team          Team        `json:"team" validate:"oneof=ATK DEF unknown"`
	MatchResult   MatchResult `json:"match_result" validate:"oneof=win loss unknown"`
	SourceImageID string      `json:"source_image_id" validate:"required"`
	ExtractedAt   time.Time   `json:"extracted_at"`
}

// ExtractedPlayer is one player row inside an extraction result, before it
// is flattened into a RawMatchRecord.
type ExtractedPlayer struct {
	Username     string `json:"username"`
	Eliminations int    `json:"eliminations" validate:"gte=0"`
	Assists      int    `json:"assists" validate:"gte=0"`
	Deaths       int    `json:"deaths" validate:"gte=0"`
	Plants       int    `json:"plants" validate:"gte=0"`
	Defuses      int    `json:"defuses" validate:"gte=0"`
	Team         string `json:"team"`
}

// ExtractionResult is what the extraction collaborator produces for one
// processed screenshot.
type ExtractionResult struct {
	SourceImageID string            `json:"source_image_id" validate:"required"`
	ExtractedAt   time.Time         `json:"extracted_at"`
	MatchResult   string            `json:"match_result"`
	Players       []ExtractedPlayer `json:"players" validate:"required,min=1,dive"`
}

// NormalizeTeam maps the extractor's free-form team strings onto the Team
// enum. Anything unrecognized is unknown rather than an error.
func NormalizeTeam(s string) Team {
	switch s {
	case "ATK", "atk", "attack", "ATTACK":
		return TeamATK
	case "DEF", "def", "defense", "DEFENSE":
		return TeamDEF
	}
	return TeamUnknown
}

// NormalizeResult maps the extractor's match_result strings ("VICTORY",
// "DEFEAT") onto the MatchResult enum.
func NormalizeResult(s string) MatchResult {
	switch s {
	case "VICTORY", "victory", "win", "WIN":
		return ResultWin
	case "DEFEAT", "defeat", "loss", "LOSS":
		return ResultLoss
	}
	return ResultUnknown
}

// Flatten converts an extraction result into raw match records, one per
// player row. No filtering happens here; empty usernames are handled by the
// identity resolver so they can be reported as skipped-record warnings.
func (e *ExtractionResult) Flatten() []RawMatchRecord {
	records := make([]RawMatchRecord, 0, len(e.Players))
	for _, p := range e.Players {
		records = append(records, RawMatchRecord{
			RawUsername:   p.Username,
			Eliminations:  p.Eliminations,
			Assists:       p.Assists,
			Deaths:        p.Deaths,
			Plants:        p.Plants,
			Defuses:       p.Defuses,
			Team:          NormalizeTeam(p.Team),
			MatchResult:   NormalizeResult(e.MatchResult),
			SourceImageID: e.SourceImageID,
			ExtractedAt:   e.ExtractedAt,
		})
	}
	return records
}
