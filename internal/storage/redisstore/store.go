// Package redisstore caches match snapshots in Redis so observers can
// resynchronize with a match after its room is gone.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/conquest/internal/netsync"
)

func snapshotKey(matchID string) string { return "match:" + matchID + ":snapshot" }

// Store saves and loads snapshots
type Store struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// New connects to the Redis server at redisURL. Snapshots expire after ttl;
// zero keeps them forever.
func New(ctx context.Context, redisURL string, ttl time.Duration, logger zerolog.Logger) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewFromClient(rdb, ttl, logger), nil
}

// NewFromClient wraps an existing client
func NewFromClient(rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) *Store {
	return &Store{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With().Str("component", "SnapshotStore").Logger(),
	}
}

// Save stores the latest snapshot of a match, replacing any previous one
func (s *Store) Save(ctx context.Context, snap *netsync.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, snapshotKey(snap.MatchID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.MatchID, err)
	}
	s.logger.Debug().
		Str("match_id", snap.MatchID).
		Int64("tick", snap.Tick).
		Int("bytes", len(data)).
		Msg("Snapshot saved")
	return nil
}

// Load returns the stored snapshot of a match, or nil when there is none
func (s *Store) Load(ctx context.Context, matchID string) (*netsync.Snapshot, error) {
	data, err := s.rdb.Get(ctx, snapshotKey(matchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", matchID, err)
	}
	var snap netsync.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", matchID, err)
	}
	return &snap, nil
}

// Delete removes the stored snapshot of a match
func (s *Store) Delete(ctx context.Context, matchID string) error {
	return s.rdb.Del(ctx, snapshotKey(matchID)).Err()
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.rdb.Close()
}
