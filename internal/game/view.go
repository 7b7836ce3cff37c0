// internal/game/view.go
package game

import "uno-server/internal/uno"

// ParticipantView is the broadcast-safe projection of one seat: hand size,
// never hand contents.
type ParticipantView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsBot     bool   `json:"isBot"`
	HandSize  int    `json:"handSize"`
	Connected bool   `json:"connected"`
}

// PublicView is the information safe to broadcast to every room member.
type PublicView struct {
	RoomID         string            `json:"roomId"`
	Participants   []ParticipantView `json:"participants"`
	DeckSize       int               `json:"deckSize"`
	DiscardTop     *uno.Card         `json:"discardTop,omitempty"`
	Current        string            `json:"currentParticipant,omitempty"`
	Direction      int               `json:"direction"`
	ActiveColor    uno.Color         `json:"activeColor,omitempty"`
	PendingDraw    int               `json:"pendingDraw"`
	Started        bool              `json:"started"`
	Winner         string            `json:"winner,omitempty"`
	TurnStartedAt  int64             `json:"turnStartedAt,omitempty"` // unix ms
	TurnDurationMs int64             `json:"turnDurationMs,omitempty"`
}

// PublicView snapshots the match for broadcast.
func (m *Match) PublicView() PublicView {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.publicViewLocked()
}

// publicViewLocked builds the broadcast view. Assumes the lock is held.
func (m *Match) publicViewLocked() PublicView {
	v := PublicView{
		RoomID:         m.RoomID,
		Participants:   make([]ParticipantView, 0, len(m.Participants)),
		DeckSize:       len(m.Deck),
		Direction:      m.Direction,
		ActiveColor:    m.ActiveColor,
		PendingDraw:    m.PendingDraw,
		Started:        m.Started,
		Winner:         m.Winner,
		TurnDurationMs: m.TurnDuration.Milliseconds(),
	}
	for _, p := range m.Participants {
		v.Participants = append(v.Participants, ParticipantView{
			ID:        p.ID,
			Name:      p.Name,
			IsBot:     p.IsBot,
			HandSize:  len(p.Hand),
			Connected: p.Connected,
		})
	}
	if len(m.Discard) > 0 {
		top := m.Discard[len(m.Discard)-1]
		v.DiscardTop = &top
	}
	if cur := m.currentLocked(); cur != nil {
		v.Current = cur.ID
	}
	if !m.TurnStartedAt.IsZero() {
		v.TurnStartedAt = m.TurnStartedAt.UnixMilli()
	}
	return v
}

// HandOf returns a copy of a participant's private hand, nil for unknown ids.
func (m *Match) HandOf(id string) []uno.Card {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	p := m.participantLocked(id)
	if p == nil {
		return nil
	}
	hand := make([]uno.Card, len(p.Hand))
	copy(hand, p.Hand)
	return hand
}
