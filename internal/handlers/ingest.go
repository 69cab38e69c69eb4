package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ballistic/scorecard-api/internal/aggregate"
	"github.com/ballistic/scorecard-api/internal/models"
	"github.com/ballistic/scorecard-api/internal/store"
)

var (
	mergesCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scorecard_merges_committed_total",
		Help: "Total number of leaderboard merges committed",
	})

	mergeConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scorecard_merge_conflicts_total",
		Help: "Total number of merges rejected by lease or version conflicts",
	})

	imagesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scorecard_images_skipped_total",
		Help: "Total number of source images skipped as already processed",
	})
)

// ingestResponse is the body returned for an accepted batch.
type ingestResponse struct {
	Status  string             `json:"status"`
	BatchID string             `json:"batch_id"`
	Report  models.MergeReport `json:"report"`
	Players int                `json:"players"`
}

// IngestBatch handles POST /api/v1/ingest/batch.
//
// The body is the extraction collaborator's output: a JSON array of
// extraction results, one per processed screenshot. The batch is resolved,
// aggregated and merged into the persisted snapshot under the merge lease;
// the merge report comes back to the caller. Accepted records are also
// queued for the ClickHouse archive.
func (h *Handler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)

	var results []models.ExtractionResult
	if err := json.NewDecoder(r.Body).Decode(&results); err != nil {
		h.errorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(results) == 0 {
		h.errorResponse(w, http.StatusBadRequest, "Empty batch")
		return
	}

	now := time.Now().UTC()
	var records []models.RawMatchRecord
	imageIDs := make([]string, 0, len(results))
	for i := range results {
		res := &results[i]
		if err := h.validator.Struct(res); err != nil {
			h.errorResponse(w, http.StatusBadRequest, "Validation failed: "+err.Error())
			return
		}
		if res.ExtractedAt.IsZero() {
			res.ExtractedAt = now
		}
		records = append(records, res.Flatten()...)
		imageIDs = append(imageIDs, res.SourceImageID)
	}

	ctx := r.Context()

	// Advisory fast path: log resubmissions up front. The merger's own guard
	// against the snapshot stays authoritative.
	if seen, err := h.lease.SeenImages(ctx, imageIDs); err == nil && len(seen) > 0 {
		h.logger.Infow("Batch contains already-processed images", "images", seen)
	}

	release, err := h.lease.Acquire(ctx)
	if err != nil {
		if errors.Is(err, store.ErrLeaseHeld) {
			mergeConflicts.Inc()
			h.errorResponse(w, http.StatusConflict, "Another merge is in progress, retry shortly")
			return
		}
		h.logger.Errorw("Failed to acquire merge lease", "error", err)
		h.errorResponse(w, http.StatusServiceUnavailable, "Merge lease unavailable")
		return
	}
	defer release()

	prior, version, err := h.snapshots.Load(ctx)
	if err != nil {
		h.logger.Errorw("Failed to load snapshot", "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "Failed to load leaderboard")
		return
	}

	resolution := h.resolver.Resolve(records, &prior)
	incoming := aggregate.Aggregate(records, resolution)
	next, report, err := aggregate.Combine(prior, incoming, resolution.Skipped, h.resolver)
	if err != nil {
		var verr *aggregate.MergeValidationError
		if errors.As(err, &verr) {
			h.logger.Warnw("Merge validation failed", "player", verr.Canonical, "reason", verr.Reason)
			h.errorResponse(w, http.StatusUnprocessableEntity, "Merge rejected: "+err.Error())
			return
		}
		h.logger.Errorw("Merge failed", "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "Merge failed")
		return
	}

	if err := h.snapshots.Save(ctx, next, version); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			mergeConflicts.Inc()
			h.errorResponse(w, http.StatusConflict, "Leaderboard changed during merge, retry")
			return
		}
		h.logger.Errorw("Failed to save snapshot", "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "Failed to save leaderboard")
		return
	}

	mergesCommitted.Inc()
	imagesSkipped.Add(float64(report.ImagesSkipped))
	h.lease.MarkImages(ctx, imageIDs)

	// Archive is fire-and-forget: a saturated queue drops audit rows, never
	// leaderboard data.
	batchID := uuid.NewString()
	received := time.Now()
	for _, rec := range records {
		if !h.queue.Enqueue(store.ArchiveJob{Record: rec, BatchID: batchID, Received: received}) {
			h.logger.Warnw("Archive queue full, dropping remaining batch records", "batch", batchID)
			break
		}
	}

	h.logger.Infow("Batch merged",
		"batch", batchID,
		"records", len(records),
		"updated", report.PlayersUpdated,
		"added", report.PlayersAdded,
		"imagesSkipped", report.ImagesSkipped,
		"warnings", len(report.Warnings),
	)

	h.jsonResponse(w, http.StatusOK, ingestResponse{
		Status:  "merged",
		BatchID: batchID,
		Report:  report,
		Players: len(next.Entries),
	})
}
