package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ballistic/scorecard-api/internal/config"
	"github.com/ballistic/scorecard-api/internal/export"
	"github.com/ballistic/scorecard-api/internal/handlers"
	"github.com/ballistic/scorecard-api/internal/identity"
	"github.com/ballistic/scorecard-api/internal/store"
	"github.com/ballistic/scorecard-api/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var logger *zap.Logger
	if cfg.Env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres: leaderboard snapshot
	pg, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	// Redis: merge lease + advisory image set
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	// ClickHouse: raw record archive
	chOpts, err := clickhouse.ParseDSN(cfg.ClickHouseURL)
	if err != nil {
		return fmt.Errorf("parse clickhouse url: %w", err)
	}
	ch, err := clickhouse.Open(chOpts)
	if err != nil {
		return fmt.Errorf("connect clickhouse: %w", err)
	}
	defer ch.Close()

	snapshots := store.NewSnapshotStore(pg, logger)
	if err := snapshots.Migrate(ctx); err != nil {
		return err
	}
	archive := store.NewArchive(ch)
	if err := archive.Migrate(ctx); err != nil {
		sugar.Warnw("Archive migration failed, archiving disabled until ClickHouse recovers", "error", err)
	}
	lease := store.NewMergeLease(rdb, cfg.MergeLeaseTTL, logger)

	pool := worker.NewPool(worker.PoolConfig{
		WorkerCount:   cfg.WorkerCount,
		QueueSize:     cfg.QueueSize,
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
		Archive:       archive,
		Logger:        logger,
	})
	pool.Start(ctx)
	defer pool.Stop()

	resolver := identity.NewResolver(
		identity.NewNormalizer(cfg.ExtraTags...),
		identity.Config{Fuzzy: cfg.FuzzyMatch, MaxDistance: cfg.FuzzyMaxDistance},
	)

	var sheets handlers.SheetsPusher
	if cfg.GoogleSheetID != "" {
		pusher, err := export.NewSheetsPusher(ctx, cfg.GoogleCredentialsFile, cfg.GoogleSheetID, cfg.WorksheetName, logger)
		if err != nil {
			sugar.Warnw("Google Sheets push disabled", "error", err)
		} else {
			sheets = pusher
		}
	}

	h := handlers.New(handlers.Config{
		Snapshots: snapshots,
		Lease:     lease,
		Queue:     pool,
		Resolver:  resolver,
		Sheets:    sheets,
		Logger:    logger,
		Pingers: map[string]handlers.Pinger{
			"postgres":   func(ctx context.Context) error { return pg.Ping(ctx) },
			"clickhouse": func(ctx context.Context) error { return ch.Ping(ctx) },
			"redis":      func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handlers.NewRouter(h, cfg.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sugar.Infow("Scorecard API listening", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sugar.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
