package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrLeaseHeld means another merge is in flight against the snapshot. The
// caller should retry after the current merge finishes.
var ErrLeaseHeld = errors.New("merge lease already held")

const (
	leaseKey  = "leaderboard:merge:lease"
	imagesKey = "leaderboard:images"
)

// releaseScript deletes the lease only when we still own it, so an expired
// lease taken over by another merge is never released from under them.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// MergeLease enforces the single-writer discipline on the leaderboard: at
// most one merge may run against a given snapshot at a time.
type MergeLease struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.SugaredLogger
}

func NewMergeLease(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *MergeLease {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &MergeLease{rdb: rdb, ttl: ttl, logger: logger.Sugar()}
}

// Acquire takes the exclusive lease and returns a release func. The TTL
// bounds how long a crashed merge can block others.
func (l *MergeLease) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, leaseKey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire merge lease: %w", err)
	}
	if !ok {
		return nil, ErrLeaseHeld
	}

	release := func() {
		// Use a fresh context so a canceled request still releases.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.rdb, []string{leaseKey}, token).Err(); err != nil {
			l.logger.Warnw("Failed to release merge lease", "error", err)
		}
	}
	return release, nil
}

// SeenImages returns which of the given image ids are already in the
// advisory Redis set. This is a fast pre-check only; the merger's guard
// against the snapshot's own processed set remains authoritative.
func (l *MergeLease) SeenImages(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	hits, err := l.rdb.SMIsMember(ctx, imagesKey, members...).Result()
	if err != nil {
		return nil, fmt.Errorf("check processed images: %w", err)
	}
	var seen []string
	for i, hit := range hits {
		if hit {
			seen = append(seen, ids[i])
		}
	}
	return seen, nil
}

// MarkImages records image ids in the advisory set after a committed merge.
func (l *MergeLease) MarkImages(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	if err := l.rdb.SAdd(ctx, imagesKey, members...).Err(); err != nil {
		l.logger.Warnw("Failed to mark processed images", "error", err, "count", len(ids))
	}
}
