// internal/cache/redis.go
//
// Redis implementation of the durable match replica. Keys:
//
//	match:{roomID}       full match snapshot (JSON), TTL-refreshed
//	participant:{userID} room id reverse index for reconnection lookup
//
// Both keys share one TTL and are removed together on room teardown.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"uno-server/internal/game"
)

const (
	matchKeyPrefix       = "match:"
	participantKeyPrefix = "participant:"
)

// Replica wraps a Redis client as the game store's durable backend.
type Replica struct {
	rdb *redis.Client
	ttl time.Duration
}

// Connect dials Redis and verifies the connection. ttl is the expiration
// applied to every record, refreshed on each write and load.
func Connect(addr string, db int, ttl time.Duration) (*Replica, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return &Replica{rdb: rdb, ttl: ttl}, nil
}

// SaveMatch overwrites the room's snapshot and rewrites the reverse index
// entry for every seated participant, refreshing all expirations.
func (r *Replica) SaveMatch(ctx context.Context, snap *game.Snapshot) error {
	data, err := snap.Encode()
	if err != nil {
		return fmt.Errorf("encode snapshot for room %s: %w", snap.RoomID, err)
	}
	pipe := r.rdb.Pipeline()
	pipe.Set(ctx, matchKeyPrefix+snap.RoomID, data, r.ttl)
	for _, pid := range snap.ParticipantIDs() {
		pipe.Set(ctx, participantKeyPrefix+pid, snap.RoomID, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write snapshot for room %s: %w", snap.RoomID, err)
	}
	return nil
}

// LoadMatch reads and decodes the room's snapshot, refreshing its
// expiration. Absence is (nil, nil), not an error.
func (r *Replica) LoadMatch(ctx context.Context, roomID string) (*game.Snapshot, error) {
	data, err := r.rdb.Get(ctx, matchKeyPrefix+roomID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot for room %s: %w", roomID, err)
	}
	snap, err := game.DecodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	pipe := r.rdb.Pipeline()
	pipe.Expire(ctx, matchKeyPrefix+roomID, r.ttl)
	for _, pid := range snap.ParticipantIDs() {
		pipe.Expire(ctx, participantKeyPrefix+pid, r.ttl)
	}
	// A failed refresh only shortens the record's remaining lifetime; the
	// snapshot itself was read fine.
	_, _ = pipe.Exec(ctx)
	return snap, nil
}

// DeleteMatch removes the room's snapshot and its participant index
// entries together.
func (r *Replica) DeleteMatch(ctx context.Context, roomID string, participantIDs []string) error {
	keys := make([]string, 0, 1+len(participantIDs))
	keys = append(keys, matchKeyPrefix+roomID)
	for _, pid := range participantIDs {
		keys = append(keys, participantKeyPrefix+pid)
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete replica records for room %s: %w", roomID, err)
	}
	return nil
}

// FindRoomByParticipant resolves the reverse index, "" when absent.
func (r *Replica) FindRoomByParticipant(ctx context.Context, participantID string) (string, error) {
	roomID, err := r.rdb.Get(ctx, participantKeyPrefix+participantID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reverse lookup for participant %s: %w", participantID, err)
	}
	return roomID, nil
}

// Close releases the underlying client.
func (r *Replica) Close() error {
	return r.rdb.Close()
}
