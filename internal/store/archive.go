package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/ballistic/scorecard-api/internal/models"
)

// Archive appends every accepted raw match record to ClickHouse. The archive
// is an audit trail: the leaderboard itself is derived purely from the
// Postgres snapshot, so an archive outage never blocks a merge.
type Archive struct {
	ch driver.Conn
}

func NewArchive(ch driver.Conn) *Archive {
	return &Archive{ch: ch}
}

// Migrate creates the archive database and table if they do not exist yet.
func (a *Archive) Migrate(ctx context.Context) error {
	if err := a.ch.Exec(ctx, `CREATE DATABASE IF NOT EXISTS scorecards`); err != nil {
		return fmt.Errorf("create scorecards database: %w", err)
	}
	err := a.ch.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS scorecards.match_records (
			batch_id        String,
			source_image_id String,
			extracted_at    DateTime64(3),
			raw_username    String,
			eliminations    UInt32,
			assists         UInt32,
			deaths          UInt32,
			plants          UInt32,
			defuses         UInt32,
			team            LowCardinality(String),
			match_result    LowCardinality(String),
			received_at     DateTime64(3)
		)
		ENGINE = MergeTree
		ORDER BY (extracted_at, source_image_id)
	`)
	if err != nil {
		return fmt.Errorf("create scorecards.match_records: %w", err)
	}
	return nil
}

// InsertBatch writes a batch of records in one round trip.
func (a *Archive) InsertBatch(ctx context.Context, jobs []ArchiveJob) error {
	batch, err := a.ch.PrepareBatch(ctx, `
		INSERT INTO scorecards.match_records (
			batch_id, source_image_id, extracted_at, raw_username,
			eliminations, assists, deaths, plants, defuses,
			team, match_result, received_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare archive batch: %w", err)
	}

	for _, job := range jobs {
		rec := job.Record
		if err := batch.Append(
			job.BatchID,
			rec.SourceImageID,
			rec.ExtractedAt,
			rec.RawUsername,
			uint32(rec.Eliminations),
			uint32(rec.Assists),
			uint32(rec.Deaths),
			uint32(rec.Plants),
			uint32(rec.Defuses),
			string(rec.Team),
			string(rec.MatchResult),
			job.Received,
		); err != nil {
			return fmt.Errorf("append archive row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send archive batch: %w", err)
	}
	return nil
}

// ArchiveJob pairs a record with its ingest batch id and receipt time.
type ArchiveJob struct {
	Record   models.RawMatchRecord
	BatchID  string
	Received time.Time
}
