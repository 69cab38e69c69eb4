package aggregate

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ballistic/scorecard-api/internal/models"
)

// buildBatch resolves and aggregates records the way the ingest path does.
func buildBatch(t *testing.T, records []models.RawMatchRecord, prior *models.Leaderboard) []models.PlayerAggregate {
	t.Helper()
	r := newResolver()
	return Aggregate(records, r.Resolve(records, prior))
}

func TestCombine_MergesIntoPriorEntry(t *testing.T) {
	r := newResolver()
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)

	prior := models.Leaderboard{
		Entries: []models.PlayerAggregate{
			{
				Identity:          models.PlayerIdentity{CanonicalUsername: "HEARTMADDI", Aliases: []string{"HEARTMADDI"}},
				GamesPlayed:       1,
				TotalEliminations: 5,
				TotalAssists:      2,
				TotalDeaths:       4,
				Victories:         1,
				LastTeam:          models.TeamDEF,
				FirstSeen:         t0,
				LastSeen:          t0,
				ProcessedImageIDs: []string{"img1"},
			},
		},
		ProcessedImageIDs: []string{"img1"},
	}

	records := []models.RawMatchRecord{
		rec("TTV_HEARTMADDI", "img42", 15, 4, 9, models.ResultWin, t1),
	}
	incoming := buildBatch(t, records, &prior)

	next, report, err := Combine(prior, incoming, nil, r)
	if err != nil {
		t.Fatalf("Combine() error = %v", err)
	}

	if report.PlayersUpdated != 1 || report.PlayersAdded != 0 || report.ImagesSkipped != 0 {
		t.Errorf("report = %+v, want 1 updated, 0 added, 0 skipped", report)
	}
	if len(next.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(next.Entries))
	}

	e := next.Entries[0]
	if e.TotalEliminations != 20 {
		t.Errorf("TotalEliminations = %d, want 20", e.TotalEliminations)
	}
	if e.GamesPlayed != 2 {
		t.Errorf("GamesPlayed = %d, want 2", e.GamesPlayed)
	}
	if e.Victories != 2 {
		t.Errorf("Victories = %d, want 2", e.Victories)
	}
	if e.LastTeam != models.TeamATK {
		t.Errorf("LastTeam = %q, want ATK (newer image)", e.LastTeam)
	}
	if !e.FirstSeen.Equal(t0) || !e.LastSeen.Equal(t1) {
		t.Errorf("seen window = %v..%v, want %v..%v", e.FirstSeen, e.LastSeen, t0, t1)
	}
	if !e.Identity.HasAlias("TTV_HEARTMADDI") || !e.Identity.HasAlias("HEARTMADDI") {
		t.Errorf("aliases = %v, want both spellings", e.Identity.Aliases)
	}
	if !reflect.DeepEqual(next.ProcessedImageIDs, []string{"img1", "img42"}) {
		t.Errorf("ProcessedImageIDs = %v", next.ProcessedImageIDs)
	}

	// The prior snapshot must be untouched.
	if prior.Entries[0].TotalEliminations != 5 || len(prior.ProcessedImageIDs) != 1 {
		t.Errorf("prior snapshot mutated: %+v", prior)
	}
}

func TestCombine_ResubmittedImageIsNoOp(t *testing.T) {
	r := newResolver()
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	records := []models.RawMatchRecord{
		rec("TTV_HEARTMADDI", "img42", 15, 4, 9, models.ResultWin, t0),
		rec("NightOwl", "img42", 8, 1, 7, models.ResultWin, t0),
	}

	// First submission lands normally.
	first := buildBatch(t, records, nil)
	lb, _, err := Combine(models.Leaderboard{}, first, nil, r)
	if err != nil {
		t.Fatalf("first Combine() error = %v", err)
	}

	// Resubmission of the same image must change nothing and report one
	// skipped image.
	second := buildBatch(t, records, &lb)
	next, report, err := Combine(lb, second, nil, r)
	if err != nil {
		t.Fatalf("second Combine() error = %v", err)
	}

	if report.ImagesSkipped != 1 {
		t.Errorf("ImagesSkipped = %d, want 1", report.ImagesSkipped)
	}
	if report.PlayersUpdated != 0 || report.PlayersAdded != 0 {
		t.Errorf("report = %+v, want no player changes", report)
	}
	if !reflect.DeepEqual(next, lb) {
		t.Errorf("resubmission changed the snapshot:\n got  %+v\n want %+v", next, lb)
	}
}

func TestCombine_ResubmittedMultiImageBatchIsNoOp(t *testing.T) {
	r := newResolver()
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// One player across three screenshots in a single batch.
	records := []models.RawMatchRecord{
		rec("heart", "imgA", 15, 4, 9, models.ResultWin, t0),
		rec("heart", "imgB", 7, 2, 5, models.ResultLoss, t0.Add(time.Hour)),
		rec("heart", "imgC", 11, 1, 8, models.ResultWin, t0.Add(2*time.Hour)),
	}

	first := buildBatch(t, records, nil)
	lb, _, err := Combine(models.Leaderboard{}, first, nil, r)
	if err != nil {
		t.Fatalf("first Combine() error = %v", err)
	}

	// Resubmitting the whole batch must subtract every one of its images,
	// not just some of them.
	second := buildBatch(t, records, &lb)
	next, report, err := Combine(lb, second, nil, r)
	if err != nil {
		t.Fatalf("second Combine() error = %v", err)
	}

	if report.ImagesSkipped != 3 {
		t.Errorf("ImagesSkipped = %d, want 3", report.ImagesSkipped)
	}
	if report.PlayersUpdated != 0 || report.PlayersAdded != 0 {
		t.Errorf("report = %+v, want no player changes", report)
	}
	if !reflect.DeepEqual(next, lb) {
		t.Errorf("multi-image resubmission changed the snapshot:\n got  %+v\n want %+v", next, lb)
	}
}

func TestCombine_MultipleSeenImagesPlusOneNew(t *testing.T) {
	r := newResolver()
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	seen := []models.RawMatchRecord{
		rec("heart", "imgA", 15, 4, 9, models.ResultWin, t0),
		rec("heart", "imgB", 7, 2, 5, models.ResultLoss, t0.Add(time.Hour)),
	}
	lb, _, err := Combine(models.Leaderboard{}, buildBatch(t, seen, nil), nil, r)
	if err != nil {
		t.Fatal(err)
	}

	// Both seen images again plus a new one: only imgC may land.
	batch := append(append([]models.RawMatchRecord(nil), seen...),
		rec("heart", "imgC", 11, 1, 8, models.ResultWin, t0.Add(2*time.Hour)))
	next, report, err := Combine(lb, buildBatch(t, batch, &lb), nil, r)
	if err != nil {
		t.Fatal(err)
	}

	if report.ImagesSkipped != 2 {
		t.Errorf("ImagesSkipped = %d, want 2", report.ImagesSkipped)
	}
	e := next.Entries[0]
	if e.GamesPlayed != 3 {
		t.Errorf("GamesPlayed = %d, want 3", e.GamesPlayed)
	}
	if e.TotalEliminations != 33 {
		t.Errorf("TotalEliminations = %d, want 33 (15+7+11, nothing double counted)", e.TotalEliminations)
	}
	if e.Victories != 2 || e.Defeats != 1 {
		t.Errorf("record = %d-%d, want 2-1", e.Victories, e.Defeats)
	}
}

func TestCombine_MixedNewAndSeenImages(t *testing.T) {
	r := newResolver()
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	seen := []models.RawMatchRecord{rec("heart", "img1", 5, 0, 2, models.ResultWin, t0)}
	first := buildBatch(t, seen, nil)
	lb, _, err := Combine(models.Leaderboard{}, first, nil, r)
	if err != nil {
		t.Fatal(err)
	}

	// img1 again plus a genuinely new img2 in one batch: only img2 counts.
	batch := []models.RawMatchRecord{
		rec("heart", "img1", 5, 0, 2, models.ResultWin, t0),
		rec("heart", "img2", 3, 1, 1, models.ResultLoss, t0.Add(time.Hour)),
	}
	incoming := buildBatch(t, batch, &lb)

	next, report, err := Combine(lb, incoming, nil, r)
	if err != nil {
		t.Fatal(err)
	}
	if report.ImagesSkipped != 1 {
		t.Errorf("ImagesSkipped = %d, want 1", report.ImagesSkipped)
	}

	e := next.Entries[0]
	if e.TotalEliminations != 8 {
		t.Errorf("TotalEliminations = %d, want 8 (5 + 3, img1 not double counted)", e.TotalEliminations)
	}
	if e.GamesPlayed != 2 {
		t.Errorf("GamesPlayed = %d, want 2", e.GamesPlayed)
	}
	if e.Victories != 1 || e.Defeats != 1 {
		t.Errorf("record = %d-%d, want 1-1", e.Victories, e.Defeats)
	}
}

func TestCombine_AddsNewPlayers(t *testing.T) {
	r := newResolver()
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	records := []models.RawMatchRecord{
		rec("heart", "img1", 15, 0, 2, models.ResultWin, t0),
		rec("NightOwl", "img1", 8, 0, 7, models.ResultLoss, t0),
	}
	incoming := buildBatch(t, records, nil)

	next, report, err := Combine(models.Leaderboard{}, incoming, nil, r)
	if err != nil {
		t.Fatal(err)
	}
	if report.PlayersAdded != 2 {
		t.Errorf("PlayersAdded = %d, want 2", report.PlayersAdded)
	}

	// Ordering: eliminations descending.
	if next.Entries[0].Identity.CanonicalUsername != "heart" ||
		next.Entries[1].Identity.CanonicalUsername != "NightOwl" {
		t.Errorf("order = [%s, %s], want [heart, NightOwl]",
			next.Entries[0].Identity.CanonicalUsername,
			next.Entries[1].Identity.CanonicalUsername)
	}

	// New entries never persist per-image contributions.
	for _, e := range next.Entries {
		if e.Contributions != nil {
			t.Errorf("entry %q kept contributions in snapshot", e.Identity.CanonicalUsername)
		}
	}
}

func TestCombine_ConservationAcrossSplitBatches(t *testing.T) {
	r := newResolver()
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	all := []models.RawMatchRecord{
		rec("TTV_Heart", "img1", 15, 4, 9, models.ResultWin, t0),
		rec("NightOwl", "img1", 8, 2, 7, models.ResultWin, t0),
		rec("heart", "img2", 5, 1, 3, models.ResultLoss, t0.Add(time.Hour)),
		rec("yt.NightOwl", "img3", 2, 0, 5, models.ResultLoss, t0.Add(2*time.Hour)),
	}

	// One shot.
	oneShot, _, err := Combine(models.Leaderboard{}, buildBatch(t, all, nil), nil, r)
	if err != nil {
		t.Fatal(err)
	}

	// Same records split across two merges along image boundaries.
	lb, _, err := Combine(models.Leaderboard{}, buildBatch(t, all[:2], nil), nil, r)
	if err != nil {
		t.Fatal(err)
	}
	twoStep, _, err := Combine(lb, buildBatch(t, all[2:], &lb), nil, r)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(oneShot, twoStep) {
		t.Errorf("split merge diverged from one-shot merge:\n one  %+v\n two  %+v", oneShot, twoStep)
	}
}

func TestCombine_ValidationRejectsCorruptPrior(t *testing.T) {
	r := newResolver()

	prior := models.Leaderboard{
		Entries: []models.PlayerAggregate{
			{
				Identity:          models.PlayerIdentity{CanonicalUsername: "heart", Aliases: []string{"heart"}},
				GamesPlayed:       2, // does not match one contributing image
				ProcessedImageIDs: []string{"img1"},
			},
		},
		ProcessedImageIDs: []string{"img1"},
	}

	_, _, err := Combine(prior, nil, nil, r)
	var verr *MergeValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Combine() error = %v, want MergeValidationError", err)
	}
	if verr.Canonical != "heart" {
		t.Errorf("Canonical = %q, want heart", verr.Canonical)
	}
}

func TestCombine_ValidationRejectsDuplicatePriorEntries(t *testing.T) {
	r := newResolver()

	entry := models.PlayerAggregate{
		Identity: models.PlayerIdentity{CanonicalUsername: "heart", Aliases: []string{"heart"}},
	}
	prior := models.Leaderboard{Entries: []models.PlayerAggregate{entry, entry}}

	_, _, err := Combine(prior, nil, nil, r)
	var verr *MergeValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Combine() error = %v, want MergeValidationError", err)
	}
}

func TestCombine_CarriesWarnings(t *testing.T) {
	r := newResolver()

	warnings := []models.SkippedRecord{
		{RawUsername: "", SourceImageID: "img1", Reason: "username empty after normalization"},
	}
	_, report, err := Combine(models.Leaderboard{}, nil, warnings, r)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Warnings) != 1 {
		t.Errorf("Warnings = %d, want 1", len(report.Warnings))
	}
}
