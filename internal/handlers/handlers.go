package handlers

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ballistic/scorecard-api/internal/identity"
	"github.com/ballistic/scorecard-api/internal/models"
	"github.com/ballistic/scorecard-api/internal/store"
)

// MaxBodySize limits the size of request bodies to 1MB
const MaxBodySize = 1048576

// SnapshotStore loads and commits leaderboard snapshots with optimistic
// versioning.
type SnapshotStore interface {
	Load(ctx context.Context) (models.Leaderboard, int64, error)
	Save(ctx context.Context, lb models.Leaderboard, expectedVersion int64) error
}

// MergeLease serializes merges and tracks the advisory processed-image set.
type MergeLease interface {
	Acquire(ctx context.Context) (func(), error)
	SeenImages(ctx context.Context, ids []string) ([]string, error)
	MarkImages(ctx context.Context, ids []string)
}

// ArchiveQueue is the async archive worker pool.
type ArchiveQueue interface {
	Enqueue(job store.ArchiveJob) bool
	QueueDepth() int
}

// SheetsPusher pushes a snapshot to the configured Google Sheet.
type SheetsPusher interface {
	Push(ctx context.Context, lb models.Leaderboard) error
}

// Pinger is a dependency health probe for the ready endpoint.
type Pinger func(ctx context.Context) error

type Config struct {
	Snapshots SnapshotStore
	Lease     MergeLease
	Queue     ArchiveQueue
	Resolver  *identity.Resolver
	Sheets    SheetsPusher // nil disables the push endpoint
	Logger    *zap.Logger
	Pingers   map[string]Pinger
}

type Handler struct {
	snapshots SnapshotStore
	lease     MergeLease
	queue     ArchiveQueue
	resolver  *identity.Resolver
	sheets    SheetsPusher
	logger    *zap.SugaredLogger
	validator *validator.Validate
	pingers   map[string]Pinger
}

func New(cfg Config) *Handler {
	return &Handler{
		snapshots: cfg.Snapshots,
		lease:     cfg.Lease,
		queue:     cfg.Queue,
		resolver:  cfg.Resolver,
		sheets:    cfg.Sheets,
		logger:    cfg.Logger.Sugar(),
		validator: validator.New(),
		pingers:   cfg.Pingers,
	}
}
