package handlers

import (
	"context"

	"github.com/ballistic/scorecard-api/internal/models"
	"github.com/ballistic/scorecard-api/internal/store"
)

// MockSnapshotStore
type MockSnapshotStore struct {
	LoadFunc func(ctx context.Context) (models.Leaderboard, int64, error)
	SaveFunc func(ctx context.Context, lb models.Leaderboard, expectedVersion int64) error

	Saved        []models.Leaderboard
	SavedVersion []int64
}

func (m *MockSnapshotStore) Load(ctx context.Context) (models.Leaderboard, int64, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	return models.Leaderboard{}, 0, nil
}

func (m *MockSnapshotStore) Save(ctx context.Context, lb models.Leaderboard, expectedVersion int64) error {
	m.Saved = append(m.Saved, lb)
	m.SavedVersion = append(m.SavedVersion, expectedVersion)
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, lb, expectedVersion)
	}
	return nil
}

// MockMergeLease
type MockMergeLease struct {
	AcquireFunc func(ctx context.Context) (func(), error)

	Marked   [][]string
	Released int
}

func (m *MockMergeLease) Acquire(ctx context.Context) (func(), error) {
	if m.AcquireFunc != nil {
		return m.AcquireFunc(ctx)
	}
	return func() { m.Released++ }, nil
}

func (m *MockMergeLease) SeenImages(ctx context.Context, ids []string) ([]string, error) {
	return nil, nil
}

func (m *MockMergeLease) MarkImages(ctx context.Context, ids []string) {
	m.Marked = append(m.Marked, ids)
}

// MockArchiveQueue
type MockArchiveQueue struct {
	EnqueueFunc func(job store.ArchiveJob) bool

	Jobs []store.ArchiveJob
}

func (m *MockArchiveQueue) Enqueue(job store.ArchiveJob) bool {
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(job)
	}
	m.Jobs = append(m.Jobs, job)
	return true
}

func (m *MockArchiveQueue) QueueDepth() int { return len(m.Jobs) }

// MockSheetsPusher
type MockSheetsPusher struct {
	PushFunc func(ctx context.Context, lb models.Leaderboard) error

	Pushed []models.Leaderboard
}

func (m *MockSheetsPusher) Push(ctx context.Context, lb models.Leaderboard) error {
	m.Pushed = append(m.Pushed, lb)
	if m.PushFunc != nil {
		return m.PushFunc(ctx, lb)
	}
	return nil
}
