package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ballistic/scorecard-api/internal/models"
	"github.com/ballistic/scorecard-api/internal/store"
)

// MockArchiver collects inserted batches.
type MockArchiver struct {
	mu      sync.Mutex
	batches [][]store.ArchiveJob
}

func (m *MockArchiver) InsertBatch(ctx context.Context, jobs []store.ArchiveJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch := append([]store.ArchiveJob(nil), jobs...)
	m.batches = append(m.batches, batch)
	return nil
}

func (m *MockArchiver) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func job(username string) store.ArchiveJob {
	return store.ArchiveJob{
		Record:   models.RawMatchRecord{RawUsername: username, SourceImageID: "img1"},
		BatchID:  "batch-1",
		Received: time.Now(),
	}
}

func TestPool_FlushesOnStop(t *testing.T) {
	archiver := &MockArchiver{}
	pool := NewPool(PoolConfig{
		WorkerCount:   2,
		QueueSize:     100,
		BatchSize:     50,
		FlushInterval: time.Hour, // never fires during the test
		Archive:       archiver,
		Logger:        zap.NewNop(),
	})
	pool.Start(context.Background())

	for i := 0; i < 10; i++ {
		if !pool.Enqueue(job("heart")) {
			t.Fatalf("Enqueue rejected job %d", i)
		}
	}
	pool.Stop()

	if got := archiver.total(); got != 10 {
		t.Errorf("archived = %d, want 10 (shutdown must flush)", got)
	}
}

func TestPool_FlushesOnBatchSize(t *testing.T) {
	archiver := &MockArchiver{}
	pool := NewPool(PoolConfig{
		WorkerCount:   1,
		QueueSize:     100,
		BatchSize:     5,
		FlushInterval: time.Hour,
		Archive:       archiver,
		Logger:        zap.NewNop(),
	})
	pool.Start(context.Background())
	defer pool.Stop()

	for i := 0; i < 5; i++ {
		pool.Enqueue(job("heart"))
	}

	deadline := time.Now().Add(2 * time.Second)
	for archiver.total() < 5 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := archiver.total(); got != 5 {
		t.Errorf("archived = %d, want 5 (batch size reached)", got)
	}
}

func TestPool_LoadShedsWhenSaturated(t *testing.T) {
	archiver := &MockArchiver{}
	pool := NewPool(PoolConfig{
		WorkerCount:   1,
		QueueSize:     1,
		BatchSize:     100,
		FlushInterval: time.Hour,
		Archive:       archiver,
		Logger:        zap.NewNop(),
	})
	// Not started: nothing drains the queue.

	if !pool.Enqueue(job("heart")) {
		t.Fatal("first Enqueue rejected on empty queue")
	}
	if pool.Enqueue(job("heart")) {
		t.Error("Enqueue accepted job beyond queue capacity")
	}
	if pool.QueueDepth() != 1 {
		t.Errorf("QueueDepth = %d, want 1", pool.QueueDepth())
	}
}

func TestPool_EnqueueAfterStopIsRejected(t *testing.T) {
	pool := NewPool(PoolConfig{
		WorkerCount:   1,
		QueueSize:     10,
		BatchSize:     10,
		FlushInterval: time.Hour,
		Archive:       &MockArchiver{},
		Logger:        zap.NewNop(),
	})
	pool.Start(context.Background())
	pool.Stop()

	if pool.Enqueue(job("heart")) {
		t.Error("Enqueue succeeded on stopped pool")
	}
}
