// Package store persists the leaderboard snapshot and its supporting state.
// The snapshot is treated as a versioned external value: load returns a
// snapshot plus its version, save commits only when the stored version still
// matches, so concurrent merges fail instead of silently losing updates.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/ballistic/scorecard-api/internal/models"
)

// ErrVersionConflict means the stored snapshot changed between load and
// save. The caller must re-read and retry the merge; the store never retries
// on its own.
var ErrVersionConflict = errors.New("leaderboard snapshot version conflict")

// PgPool is the subset of pgxpool.Pool the snapshot store needs.
type PgPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// SnapshotStore keeps the single current leaderboard snapshot in Postgres.
type SnapshotStore struct {
	pg     PgPool
	logger *zap.SugaredLogger
}

func NewSnapshotStore(pg PgPool, logger *zap.Logger) *SnapshotStore {
	return &SnapshotStore{pg: pg, logger: logger.Sugar()}
}

// Migrate creates the snapshot table if it does not exist yet.
func (s *SnapshotStore) Migrate(ctx context.Context) error {
	_, err := s.pg.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS leaderboard_snapshots (
			id         int PRIMARY KEY,
			version    bigint NOT NULL,
			data       jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create leaderboard_snapshots: %w", err)
	}
	return nil
}

// Load returns the current snapshot and its version. A missing row is an
// empty leaderboard at version 0, not an error.
func (s *SnapshotStore) Load(ctx context.Context) (models.Leaderboard, int64, error) {
	var (
		version int64
		raw     []byte
	)
	err := s.pg.QueryRow(ctx,
		`SELECT version, data FROM leaderboard_snapshots WHERE id = 1`,
	).Scan(&version, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Leaderboard{}, 0, nil
	}
	if err != nil {
		return models.Leaderboard{}, 0, fmt.Errorf("load snapshot: %w", err)
	}

	var lb models.Leaderboard
	if err := json.Unmarshal(raw, &lb); err != nil {
		return models.Leaderboard{}, 0, fmt.Errorf("decode snapshot: %w", err)
	}
	return lb, version, nil
}

// Save commits a new snapshot if and only if the stored version still equals
// expectedVersion. On a mismatch it returns ErrVersionConflict and writes
// nothing.
func (s *SnapshotStore) Save(ctx context.Context, lb models.Leaderboard, expectedVersion int64) error {
	raw, err := json.Marshal(lb)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tag, err := s.pg.Exec(ctx, `
		INSERT INTO leaderboard_snapshots (id, version, data, updated_at)
		VALUES (1, 1, $1, now())
		ON CONFLICT (id) DO UPDATE
		SET version = leaderboard_snapshots.version + 1,
		    data = excluded.data,
		    updated_at = now()
		WHERE leaderboard_snapshots.version = $2
	`, raw, expectedVersion)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}

	s.logger.Infow("Snapshot committed",
		"players", len(lb.Entries),
		"images", len(lb.ProcessedImageIDs),
		"fromVersion", expectedVersion,
	)
	return nil
}
