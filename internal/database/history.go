// internal/database/history.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"uno-server/internal/game"
)

// Historian is the match-history sink: one row per completed match, written
// fire-and-forget so a database outage never affects live play. A nil
// *Historian is a valid no-op sink.
type Historian struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// Connect opens the pgx pool and verifies the connection.
func Connect(ctx context.Context, url string, log *logrus.Logger) (*Historian, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Historian{pool: pool, log: log}, nil
}

// RecordMatch persists a completed match asynchronously. Failures are
// logged and swallowed.
func (h *Historian) RecordMatch(snap *game.Snapshot, roomCode string) {
	if h == nil || h.pool == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		participants, err := json.Marshal(snap.Participants)
		if err != nil {
			h.log.WithError(err).WithField("room", snap.RoomID).
				Warn("marshal match history participants failed")
			return
		}
		q := `
			INSERT INTO match_history (room_id, room_code, winner_id, participants, finished_at)
			VALUES ($1, $2, $3, $4, now())
		`
		if _, err := h.pool.Exec(ctx, q, snap.RoomID, roomCode, snap.Winner, participants); err != nil {
			h.log.WithError(err).WithField("room", snap.RoomID).
				Warn("record match history failed")
		}
	}()
}

// Close releases the pool. Safe on a nil Historian.
func (h *Historian) Close() {
	if h != nil && h.pool != nil {
		h.pool.Close()
	}
}
