// internal/game/store.go
package game

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Replica is the durable external store a match is replicated to. It is
// last-write-wins per key; correctness relies on all writes for a room
// originating from this process's per-room locking.
type Replica interface {
	// SaveMatch overwrites the room's snapshot and its participant reverse
	// index, refreshing their expiration.
	SaveMatch(ctx context.Context, snap *Snapshot) error
	// LoadMatch returns the room's snapshot, or (nil, nil) when absent.
	LoadMatch(ctx context.Context, roomID string) (*Snapshot, error)
	// DeleteMatch removes the snapshot and every participant index entry.
	DeleteMatch(ctx context.Context, roomID string, participantIDs []string) error
	// FindRoomByParticipant resolves the reverse index, "" when absent.
	FindRoomByParticipant(ctx context.Context, participantID string) (string, error)
}

// Store owns the authoritative map of room id to live match. Matches stay
// in memory for speed, are written through to the replica on every
// mutation, are lazily rehydrated from the replica on miss, and are evicted
// after a fixed inactivity window.
type Store struct {
	mu      sync.Mutex
	matches map[string]*Match
	idle    map[string]*time.Timer

	replica     Replica
	idleTimeout time.Duration
	log         *logrus.Logger

	// Bind is invoked once for every match that enters memory (created or
	// rehydrated) so the transport can attach its broadcast functions.
	Bind func(m *Match)
	// OnEvict is invoked before an idle room is torn down, giving the
	// transport a chance to notify members and unbind connections.
	OnEvict func(roomID string)
}

// NewStore builds a store around a replica. idleTimeout is the inactivity
// window after which an untouched match is deleted.
func NewStore(replica Replica, idleTimeout time.Duration, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{
		matches:     make(map[string]*Match),
		idle:        make(map[string]*time.Timer),
		replica:     replica,
		idleTimeout: idleTimeout,
		log:         log,
	}
}

// Create registers a fresh match for the room. It is idempotent: an
// existing in-memory match is returned untouched, so racing creators can
// never overwrite a live game.
func (s *Store) Create(ctx context.Context, roomID string) *Match {
	s.mu.Lock()
	if m, ok := s.matches[roomID]; ok {
		s.mu.Unlock()
		return m
	}
	m := NewMatch(roomID, s.log)
	s.matches[roomID] = m
	s.armIdleLocked(roomID)
	s.mu.Unlock()

	if s.Bind != nil {
		s.Bind(m)
	}
	s.Save(ctx, roomID)
	return m
}

// Get returns the room's match, checking memory first and falling back to
// the durable replica. The lazy-load path is what makes process restarts
// and memory eviction transparent to reconnecting participants.
func (s *Store) Get(ctx context.Context, roomID string) *Match {
	s.mu.Lock()
	if m, ok := s.matches[roomID]; ok {
		s.armIdleLocked(roomID)
		s.mu.Unlock()
		return m
	}
	s.mu.Unlock()

	if s.replica == nil {
		return nil
	}
	snap, err := s.replica.LoadMatch(ctx, roomID)
	if err != nil {
		s.log.WithError(err).WithField("room", roomID).Warn("replica load failed")
		return nil
	}
	if snap == nil {
		return nil
	}

	m := MatchFromSnapshot(snap, s.log)
	s.mu.Lock()
	if existing, ok := s.matches[roomID]; ok {
		// Someone else rehydrated while we were reading the replica.
		s.armIdleLocked(roomID)
		s.mu.Unlock()
		return existing
	}
	s.matches[roomID] = m
	s.armIdleLocked(roomID)
	s.mu.Unlock()

	if s.Bind != nil {
		s.Bind(m)
	}
	s.log.WithField("room", roomID).Info("rehydrated match from replica")
	// Refresh the record's expiration now that the room is active again.
	s.Save(ctx, roomID)
	return m
}

// Save serializes the in-memory match and writes it through to the replica,
// refreshing its expiration and the inactivity window. Persistence is
// best-effort: failures are logged and swallowed because the in-memory
// state stays authoritative for connected participants.
func (s *Store) Save(ctx context.Context, roomID string) {
	s.mu.Lock()
	m, ok := s.matches[roomID]
	if ok {
		s.armIdleLocked(roomID)
	}
	s.mu.Unlock()
	if !ok || s.replica == nil {
		return
	}
	if err := s.replica.SaveMatch(ctx, m.Snapshot()); err != nil {
		s.log.WithError(err).WithField("room", roomID).Warn("replica save failed")
	}
}

// Delete tears a room down: inactivity timer, replica record and index
// entries, and the in-memory match. Returns whether anything was removed.
func (s *Store) Delete(ctx context.Context, roomID string) bool {
	s.mu.Lock()
	m, ok := s.matches[roomID]
	delete(s.matches, roomID)
	if t, armed := s.idle[roomID]; armed {
		t.Stop()
		delete(s.idle, roomID)
	}
	s.mu.Unlock()

	if s.replica != nil {
		var ids []string
		if ok {
			ids = m.Snapshot().ParticipantIDs()
		}
		if err := s.replica.DeleteMatch(ctx, roomID, ids); err != nil {
			s.log.WithError(err).WithField("room", roomID).Warn("replica delete failed")
		}
	}
	if ok {
		s.log.WithField("room", roomID).Info("match deleted")
	}
	return ok
}

// FindRoomByParticipant resolves which room an identity is seated in via
// the replica's reverse index. Used by the reconnection protocol only.
func (s *Store) FindRoomByParticipant(ctx context.Context, participantID string) string {
	if s.replica == nil {
		return ""
	}
	roomID, err := s.replica.FindRoomByParticipant(ctx, participantID)
	if err != nil {
		s.log.WithError(err).WithField("participant", participantID).
			Warn("replica reverse lookup failed")
		return ""
	}
	return roomID
}

// armIdleLocked (re)starts the room's inactivity countdown. Assumes the
// store lock is held.
func (s *Store) armIdleLocked(roomID string) {
	if s.idleTimeout <= 0 {
		return
	}
	if t, ok := s.idle[roomID]; ok {
		t.Stop()
	}
	s.idle[roomID] = time.AfterFunc(s.idleTimeout, func() {
		s.evict(roomID)
	})
}

// evict handles an inactivity expiry through the same path as explicit
// teardown. The room may already be gone; Delete tolerates that.
func (s *Store) evict(roomID string) {
	s.mu.Lock()
	_, ok := s.matches[roomID]
	s.mu.Unlock()
	if !ok {
		return
	}
	s.log.WithField("room", roomID).Info("evicting idle match")
	if s.OnEvict != nil {
		s.OnEvict(roomID)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Delete(ctx, roomID)
}

// Rooms lists the ids of every in-memory match.
func (s *Store) Rooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.matches))
	for id := range s.matches {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown cancels every outstanding inactivity timer. Matches stay in the
// replica for rehydration after restart.
func (s *Store) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.idle {
		t.Stop()
		delete(s.idle, id)
	}
}
