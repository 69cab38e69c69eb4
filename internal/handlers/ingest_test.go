package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ballistic/scorecard-api/internal/identity"
	"github.com/ballistic/scorecard-api/internal/models"
	"github.com/ballistic/scorecard-api/internal/store"
)

func newTestHandler(snapshots *MockSnapshotStore, lease *MockMergeLease, queue *MockArchiveQueue) *Handler {
	return New(Config{
		Snapshots: snapshots,
		Lease:     lease,
		Queue:     queue,
		Resolver:  identity.NewResolver(identity.NewNormalizer(), identity.Config{}),
		Logger:    zap.NewNop(),
	})
}

const validBatch = `[{
	"source_image_id": "img42",
	"match_result": "VICTORY",
	"players": [
		{"username": "TTV_HEARTMADDI", "eliminations": 15, "assists": 4, "deaths": 9, "team": "ATK"},
		{"username": "NightOwl", "eliminations": 8, "assists": 1, "deaths": 7, "team": "DEF"}
	]
}]`

func TestIngestBatch_MergesAndPersists(t *testing.T) {
	snapshots := &MockSnapshotStore{}
	lease := &MockMergeLease{}
	queue := &MockArchiveQueue{}
	h := newTestHandler(snapshots, lease, queue)

	req := httptest.NewRequest("POST", "/api/v1/ingest/batch", strings.NewReader(validBatch))
	w := httptest.NewRecorder()

	h.IngestBatch(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d, want 200: %s", w.Result().StatusCode, w.Body.String())
	}

	var resp ingestResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "merged" {
		t.Errorf("Status = %q, want merged", resp.Status)
	}
	if resp.Report.PlayersAdded != 2 {
		t.Errorf("PlayersAdded = %d, want 2", resp.Report.PlayersAdded)
	}
	if resp.Players != 2 {
		t.Errorf("Players = %d, want 2", resp.Players)
	}

	if len(snapshots.Saved) != 1 {
		t.Fatalf("snapshot saves = %d, want 1", len(snapshots.Saved))
	}
	saved := snapshots.Saved[0]
	if len(saved.Entries) != 2 || !saved.HasImage("img42") {
		t.Errorf("saved snapshot = %+v", saved)
	}
	if snapshots.SavedVersion[0] != 0 {
		t.Errorf("expected version = %d, want 0", snapshots.SavedVersion[0])
	}

	if lease.Released != 1 {
		t.Errorf("lease released %d times, want 1", lease.Released)
	}
	if len(lease.Marked) != 1 {
		t.Errorf("MarkImages calls = %d, want 1", len(lease.Marked))
	}
	if len(queue.Jobs) != 2 {
		t.Errorf("archived jobs = %d, want 2", len(queue.Jobs))
	}
}

func TestIngestBatch_BadBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"Invalid JSON", `{not json`},
		{"Empty array", `[]`},
		{"Missing image id", `[{"players":[{"username":"heart"}]}]`},
		{"No players", `[{"source_image_id":"img1","players":[]}]`},
		{"Negative stat", `[{"source_image_id":"img1","players":[{"username":"heart","eliminations":-1}]}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&MockSnapshotStore{}, &MockMergeLease{}, &MockArchiveQueue{})

			req := httptest.NewRequest("POST", "/api/v1/ingest/batch", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			h.IngestBatch(w, req)

			if w.Result().StatusCode != http.StatusBadRequest {
				t.Errorf("StatusCode = %d, want 400", w.Result().StatusCode)
			}
		})
	}
}

func TestIngestBatch_LeaseHeld(t *testing.T) {
	lease := &MockMergeLease{
		AcquireFunc: func(ctx context.Context) (func(), error) {
			return nil, store.ErrLeaseHeld
		},
	}
	snapshots := &MockSnapshotStore{}
	h := newTestHandler(snapshots, lease, &MockArchiveQueue{})

	req := httptest.NewRequest("POST", "/api/v1/ingest/batch", strings.NewReader(validBatch))
	w := httptest.NewRecorder()

	h.IngestBatch(w, req)

	if w.Result().StatusCode != http.StatusConflict {
		t.Errorf("StatusCode = %d, want 409", w.Result().StatusCode)
	}
	if len(snapshots.Saved) != 0 {
		t.Errorf("snapshot saved despite held lease")
	}
}

func TestIngestBatch_VersionConflict(t *testing.T) {
	snapshots := &MockSnapshotStore{
		SaveFunc: func(ctx context.Context, lb models.Leaderboard, expectedVersion int64) error {
			return store.ErrVersionConflict
		},
	}
	h := newTestHandler(snapshots, &MockMergeLease{}, &MockArchiveQueue{})

	req := httptest.NewRequest("POST", "/api/v1/ingest/batch", strings.NewReader(validBatch))
	w := httptest.NewRecorder()

	h.IngestBatch(w, req)

	if w.Result().StatusCode != http.StatusConflict {
		t.Errorf("StatusCode = %d, want 409", w.Result().StatusCode)
	}
}

func TestIngestBatch_ResubmissionReportsSkip(t *testing.T) {
	prior := models.Leaderboard{
		Entries: []models.PlayerAggregate{
			{
				Identity:          models.PlayerIdentity{CanonicalUsername: "HEARTMADDI", Aliases: []string{"TTV_HEARTMADDI"}},
				GamesPlayed:       1,
				TotalEliminations: 15,
				TotalAssists:      4,
				TotalDeaths:       9,
				Victories:         1,
				LastTeam:          models.TeamATK,
				ProcessedImageIDs: []string{"img42"},
			},
			{
				Identity:          models.PlayerIdentity{CanonicalUsername: "NightOwl", Aliases: []string{"NightOwl"}},
				GamesPlayed:       1,
				TotalEliminations: 8,
				TotalAssists:      1,
				TotalDeaths:       7,
				Victories:         1,
				LastTeam:          models.TeamDEF,
				ProcessedImageIDs: []string{"img42"},
			},
		},
		ProcessedImageIDs: []string{"img42"},
	}
	snapshots := &MockSnapshotStore{
		LoadFunc: func(ctx context.Context) (models.Leaderboard, int64, error) {
			return prior, 3, nil
		},
	}
	h := newTestHandler(snapshots, &MockMergeLease{}, &MockArchiveQueue{})

	req := httptest.NewRequest("POST", "/api/v1/ingest/batch", strings.NewReader(validBatch))
	w := httptest.NewRecorder()

	h.IngestBatch(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d, want 200: %s", w.Result().StatusCode, w.Body.String())
	}

	var resp ingestResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Report.ImagesSkipped != 1 {
		t.Errorf("ImagesSkipped = %d, want 1", resp.Report.ImagesSkipped)
	}
	if resp.Report.PlayersUpdated != 0 || resp.Report.PlayersAdded != 0 {
		t.Errorf("report = %+v, want no player changes", resp.Report)
	}

	if len(snapshots.Saved) != 1 {
		t.Fatalf("snapshot saves = %d, want 1", len(snapshots.Saved))
	}
	if got := snapshots.Saved[0].Entries[0].TotalEliminations; got != 15 {
		t.Errorf("TotalEliminations after resubmission = %d, want 15", got)
	}
	if snapshots.SavedVersion[0] != 3 {
		t.Errorf("expected version = %d, want 3", snapshots.SavedVersion[0])
	}
}

func TestIngestBatch_OversizedBody(t *testing.T) {
	h := newTestHandler(&MockSnapshotStore{}, &MockMergeLease{}, &MockArchiveQueue{})

	big := strings.Repeat("x", MaxBodySize+1)
	req := httptest.NewRequest("POST", "/api/v1/ingest/batch", strings.NewReader(big))
	w := httptest.NewRecorder()

	h.IngestBatch(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", w.Result().StatusCode)
	}
}
