// Package worker implements the buffered worker pool that archives accepted
// match records to ClickHouse. This decouples HTTP request handling from
// database writes, providing:
// - Backpressure handling via load shedding
// - Batch inserts for efficient ClickHouse writes
// - Graceful shutdown with flush guarantees

package worker

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/ballistic/scorecard-api/internal/store"
)

// Prometheus metrics
var (
	recordsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scorecard_records_enqueued_total",
		Help: "Total number of match records enqueued for archiving",
	})

	recordsArchived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scorecard_records_archived_total",
		Help: "Total number of match records written to the archive",
	})

	recordsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scorecard_records_failed_total",
		Help: "Total number of match records that failed archiving",
	})

	recordsLoadShed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scorecard_records_load_shed_total",
		Help: "Total number of match records dropped due to load shedding",
	})

	queueDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scorecard_archive_queue_depth",
		Help: "Current depth of the archive queue",
	})

	batchInsertDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scorecard_archive_batch_duration_seconds",
		Help:    "Duration of batch inserts to ClickHouse",
		Buckets: prometheus.DefBuckets,
	})
)

// Archiver is the sink for archived records; *store.Archive in production.
type Archiver interface {
	InsertBatch(ctx context.Context, jobs []store.ArchiveJob) error
}

// PoolConfig configures the worker pool
type PoolConfig struct {
	WorkerCount   int
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
	Archive       Archiver
	Logger        *zap.Logger
}

// Pool manages a pool of workers for async record archiving
type Pool struct {
	config   PoolConfig
	jobQueue chan store.ArchiveJob
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *zap.SugaredLogger
}

// NewPool creates a new worker pool
func NewPool(cfg PoolConfig) *Pool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}

	return &Pool{
		config:   cfg,
		jobQueue: make(chan store.ArchiveJob, cfg.QueueSize),
		logger:   cfg.Logger.Sugar(),
	}
}

// Start launches the worker goroutines
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	go p.reportQueueDepth()

	p.logger.Infow("Archive worker pool started",
		"workers", p.config.WorkerCount,
		"queueSize", p.config.QueueSize,
		"batchSize", p.config.BatchSize,
	)
}

// Stop gracefully shuts down the worker pool, flushing pending batches.
// The queue is closed first so workers drain it fully before exiting.
func (p *Pool) Stop() {
	p.logger.Info("Stopping archive worker pool...")
	close(p.jobQueue)
	p.wg.Wait()
	p.cancel()
	p.logger.Info("Archive worker pool stopped")
}

// Enqueue adds a job to the queue. Returns false when the pool is saturated
// or stopped; the record is then dropped from the archive (never from the
// leaderboard, which was already merged synchronously).
func (p *Pool) Enqueue(job store.ArchiveJob) bool {
	// Protect against sending on closed channel during shutdown.
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warnw("Failed to enqueue record (pool stopped)", "error", r)
		}
	}()

	select {
	case p.jobQueue <- job:
		recordsEnqueued.Inc()
		return true
	default:
		recordsLoadShed.Inc()
		return false
	}
}

// QueueDepth returns current queue size
func (p *Pool) QueueDepth() int {
	return len(p.jobQueue)
}

// worker drains the queue in batches, flushing on size, interval, or
// shutdown.
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	batch := make([]store.ArchiveJob, 0, p.config.BatchSize)
	ticker := time.NewTicker(p.config.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := p.config.Archive.InsertBatch(ctx, batch)
		cancel()

		if err != nil {
			p.logger.Errorw("Archive batch failed",
				"worker", id,
				"batchSize", len(batch),
				"error", err,
			)
			recordsFailed.Add(float64(len(batch)))
		} else {
			recordsArchived.Add(float64(len(batch)))
		}
		batchInsertDuration.Observe(time.Since(start).Seconds())

		batch = batch[:0]
	}

	for {
		select {
		case job, ok := <-p.jobQueue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, job)
			if len(batch) >= p.config.BatchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-p.ctx.Done():
			flush()
			return
		}
	}
}

func (p *Pool) reportQueueDepth() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			queueDepthGauge.Set(float64(len(p.jobQueue)))
		case <-p.ctx.Done():
			return
		}
	}
}
