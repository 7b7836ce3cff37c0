// internal/game/snapshot.go
//
// Snapshot is the explicit, versioned wire schema written to the durable
// replica. It is plain structured data, decoupled from the in-memory
// entity's behavior, so the replica record format can evolve independently.
package game

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"uno-server/internal/uno"
)

// SnapshotVersion is bumped whenever the replica record layout changes.
const SnapshotVersion = 1

// ParticipantSnapshot serializes one seat including the private hand.
type ParticipantSnapshot struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	IsBot bool       `json:"isBot"`
	Hand  []uno.Card `json:"hand"`
}

// Snapshot is a full serialized match, keyed in the replica by room id.
type Snapshot struct {
	Version        int                   `json:"version"`
	RoomID         string                `json:"roomId"`
	Participants   []ParticipantSnapshot `json:"participants"`
	Deck           []uno.Card            `json:"deck"`
	Discard        []uno.Card            `json:"discard"`
	Current        string                `json:"currentParticipant,omitempty"`
	TurnID         int64                 `json:"turnId,omitempty"`
	Direction      int                   `json:"direction"`
	ActiveColor    uno.Color             `json:"activeColor,omitempty"`
	PendingDraw    int                   `json:"pendingDraw"`
	Started        bool                  `json:"started"`
	Winner         string                `json:"winner,omitempty"`
	TurnStartedAt  int64                 `json:"turnStartedAt,omitempty"` // unix ms
	TurnDurationMs int64                 `json:"turnDurationMs,omitempty"`
}

// Snapshot captures the match's current state.
func (m *Match) Snapshot() *Snapshot {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	s := &Snapshot{
		Version:        SnapshotVersion,
		RoomID:         m.RoomID,
		Participants:   make([]ParticipantSnapshot, 0, len(m.Participants)),
		Deck:           append([]uno.Card(nil), m.Deck...),
		Discard:        append([]uno.Card(nil), m.Discard...),
		TurnID:         m.TurnID,
		Direction:      m.Direction,
		ActiveColor:    m.ActiveColor,
		PendingDraw:    m.PendingDraw,
		Started:        m.Started,
		Winner:         m.Winner,
		TurnDurationMs: m.TurnDuration.Milliseconds(),
	}
	for _, p := range m.Participants {
		s.Participants = append(s.Participants, ParticipantSnapshot{
			ID:    p.ID,
			Name:  p.Name,
			IsBot: p.IsBot,
			Hand:  append([]uno.Card(nil), p.Hand...),
		})
	}
	if cur := m.currentLocked(); cur != nil {
		s.Current = cur.ID
	}
	if !m.TurnStartedAt.IsZero() {
		s.TurnStartedAt = m.TurnStartedAt.UnixMilli()
	}
	return s
}

// MatchFromSnapshot rebuilds a live match from a replica record. Bots are
// restored connected; humans reconnect through the reconnection protocol.
func MatchFromSnapshot(s *Snapshot, log *logrus.Logger) *Match {
	if log == nil {
		log = logrus.StandardLogger()
	}
	m := &Match{
		RoomID:       s.RoomID,
		Deck:         append([]uno.Card(nil), s.Deck...),
		Discard:      append([]uno.Card(nil), s.Discard...),
		CurrentIdx:   -1,
		TurnID:       s.TurnID,
		Direction:    s.Direction,
		ActiveColor:  s.ActiveColor,
		PendingDraw:  s.PendingDraw,
		Started:      s.Started,
		Winner:       s.Winner,
		TurnDuration: time.Duration(s.TurnDurationMs) * time.Millisecond,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		log:          log,
	}
	if m.Direction == 0 {
		m.Direction = 1
	}
	for i, ps := range s.Participants {
		m.Participants = append(m.Participants, &Participant{
			ID:        ps.ID,
			Name:      ps.Name,
			IsBot:     ps.IsBot,
			Hand:      append([]uno.Card(nil), ps.Hand...),
			Connected: ps.IsBot,
		})
		if ps.ID == s.Current {
			m.CurrentIdx = i
		}
	}
	if s.TurnStartedAt > 0 {
		m.TurnStartedAt = time.UnixMilli(s.TurnStartedAt)
	}
	return m
}

// Encode serializes the snapshot for the replica.
func (s *Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSnapshot parses a replica record, rejecting unknown versions.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode match snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported match snapshot version %d", s.Version)
	}
	return &s, nil
}

// ParticipantIDs lists every seated identity in the snapshot.
func (s *Snapshot) ParticipantIDs() []string {
	ids := make([]string, 0, len(s.Participants))
	for _, p := range s.Participants {
		ids = append(ids, p.ID)
	}
	return ids
}
