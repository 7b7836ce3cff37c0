// internal/game/match.go
package game

import (
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"uno-server/internal/uno"
)

const (
	// MaxParticipants is the seat capacity of a room.
	MaxParticipants = 4
	// MinParticipants is the minimum roster size required to start.
	MinParticipants = 2
	initialHandSize = 7
)

// Participant is one seat in a match, human or bot. ID is the stable
// authenticated identity, not the transient connection.
type Participant struct {
	ID        string
	Name      string
	IsBot     bool
	Hand      []uno.Card
	Connected bool
}

// Match holds the entire live state of one room's game in memory. Every
// exported operation is a complete read-modify-write under Mu; because real
// OS threads mutate matches here, the per-room mutex is what serializes
// logically concurrent actions (handler, turn timer, bot chain) on the same
// room.
type Match struct {
	RoomID       string
	Participants []*Participant
	Deck         []uno.Card
	Discard      []uno.Card

	CurrentIdx    int   // -1 before start
	TurnID        int64 // increments whenever the turn changes hands
	Direction     int   // +1 or -1
	ActiveColor   uno.Color
	PendingDraw   int
	Started       bool
	Winner        string // participant id, empty while in progress
	TurnStartedAt time.Time
	TurnDuration  time.Duration

	Mu  sync.Mutex
	rng *rand.Rand
	log *logrus.Logger

	// BroadcastFn sends an event to all connected room members.
	BroadcastFn func(ev Event)
	// BroadcastToParticipantFn sends an event to a single participant.
	BroadcastToParticipantFn func(participantID string, ev Event)
}

// NewMatch builds an empty, unstarted match for a room.
func NewMatch(roomID string, log *logrus.Logger) *Match {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Match{
		RoomID:     roomID,
		CurrentIdx: -1,
		Direction:  1,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		log:        log,
	}
}

// PlayResult reports the outcome of a successful PlayCard.
type PlayResult struct {
	Card        uno.Card
	ChosenColor uno.Color
	Winner      string // participant id when the play emptied the hand
	Next        string // participant id now acting, empty when won
}

// DrawResult reports the outcome of a successful DrawCard or timeout draw.
type DrawResult struct {
	Cards     []uno.Card
	WasForced bool
	Next      string
}

// AddParticipant seats a new identity. It fails (false) when the roster is
// at capacity or the id is already seated, and is a no-op after start.
func (m *Match) AddParticipant(id, name string, isBot bool) bool {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Started {
		return false
	}
	if len(m.Participants) >= MaxParticipants {
		return false
	}
	for _, p := range m.Participants {
		if p.ID == id {
			return false
		}
	}
	m.Participants = append(m.Participants, &Participant{
		ID:        id,
		Name:      name,
		IsBot:     isBot,
		Connected: true,
	})
	return true
}

// RemoveParticipant drops an identity from the roster. When the removed
// seat held the turn and participants remain, the turn is handed to the
// first remaining roster entry; this does not preserve turn-order fairness
// and is kept as observed behavior. A removed mid-match hand is returned to
// the bottom of the deck so the card count stays whole.
func (m *Match) RemoveParticipant(id string) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	idx := -1
	for i, p := range m.Participants {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	removed := m.Participants[idx]
	m.Participants = append(m.Participants[:idx], m.Participants[idx+1:]...)
	if m.Started && len(removed.Hand) > 0 {
		m.Deck = append(m.Deck, removed.Hand...)
	}
	removed.Hand = nil

	if len(m.Participants) == 0 {
		m.CurrentIdx = -1
		return
	}
	switch {
	case idx == m.CurrentIdx:
		m.CurrentIdx = 0
		m.TurnID++
	case idx < m.CurrentIdx:
		m.CurrentIdx--
	}
}

// Start deals a fresh game: shuffled 108-card deck, seven cards per seat,
// and a first discard that is neither wild nor an action card. It fails
// (false) with fewer than two participants or when already started.
func (m *Match) Start() bool {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Started || len(m.Participants) < MinParticipants {
		return false
	}

	m.Deck = uno.NewDeck(m.rng)
	for _, p := range m.Participants {
		p.Hand = make([]uno.Card, 0, initialHandSize)
		p.Hand = append(p.Hand, m.Deck[:initialHandSize]...)
		m.Deck = m.Deck[initialHandSize:]
	}

	// The opening discard must be a plain number card so the active color
	// is always well-defined; anything else goes back under the deck.
	first := m.Deck[0]
	m.Deck = m.Deck[1:]
	for first.IsAction() {
		m.Deck = append(m.Deck, first)
		first = m.Deck[0]
		m.Deck = m.Deck[1:]
	}
	m.Discard = []uno.Card{first}
	m.ActiveColor = first.Color

	m.CurrentIdx = 0
	m.TurnID++
	m.Direction = 1
	m.PendingDraw = 0
	m.Winner = ""
	m.Started = true

	m.fire(Event{Type: EventGameStarted, Payload: m.publicViewLocked()})
	for _, p := range m.Participants {
		m.fireTo(p.ID, handUpdate(p))
	}
	m.log.WithFields(logrus.Fields{
		"room":    m.RoomID,
		"players": len(m.Participants),
	}).Info("match started")
	return true
}

// Reset clears all table state but keeps the roster, for rematch flows.
func (m *Match) Reset() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	for _, p := range m.Participants {
		p.Hand = nil
	}
	m.Deck = nil
	m.Discard = nil
	m.CurrentIdx = -1
	m.Direction = 1
	m.ActiveColor = ""
	m.PendingDraw = 0
	m.Started = false
	m.Winner = ""
	m.TurnStartedAt = time.Time{}
}

// DrawOne moves exactly one card from the deck into the participant's hand,
// replenishing the deck from the discard pile first if needed. It returns
// the drawn card, or an empty slice when the participant is unknown or the
// deck cannot be replenished.
func (m *Match) DrawOne(participantID string) []uno.Card {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	p := m.participantLocked(participantID)
	if p == nil {
		m.log.WithFields(logrus.Fields{"room": m.RoomID, "participant": participantID}).
			Warn("draw requested for unknown participant")
		return nil
	}
	if card, ok := m.drawOneLocked(p); ok {
		return []uno.Card{card}
	}
	return nil
}

// drawOneLocked draws the top deck card into p's hand. When the deck is
// empty, all discard cards except the top one are reshuffled back into the
// deck; with fewer than two discard cards the table is exhausted, which is
// logged and reported as a failed draw rather than an error.
// Assumes the lock is held.
func (m *Match) drawOneLocked(p *Participant) (uno.Card, bool) {
	if len(m.Deck) == 0 {
		if len(m.Discard) < 2 {
			m.log.WithFields(logrus.Fields{"room": m.RoomID}).
				Warn("deck and discard exhausted, cannot draw")
			return uno.Card{}, false
		}
		top := m.Discard[len(m.Discard)-1]
		m.Deck = append(m.Deck, m.Discard[:len(m.Discard)-1]...)
		m.Discard = []uno.Card{top}
		m.rng.Shuffle(len(m.Deck), func(i, j int) {
			m.Deck[i], m.Deck[j] = m.Deck[j], m.Deck[i]
		})
		m.log.WithFields(logrus.Fields{"room": m.RoomID, "deck": len(m.Deck)}).
			Info("reshuffled discard pile into deck")
	}
	card := m.Deck[0]
	m.Deck = m.Deck[1:]
	p.Hand = append(p.Hand, card)
	return card, true
}

// PlayCard validates and applies one play for the acting participant:
// legality against the top discard and active color, card effects, turn
// advancement, and win detection. Events are broadcast on success; the
// caller persists and re-arms the turn clock.
func (m *Match) PlayCard(participantID, cardID string, chosen uno.Color) (*PlayResult, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if !m.Started {
		return nil, ErrNotStarted
	}
	if m.Winner != "" {
		return nil, ErrMatchOver
	}
	cur := m.currentLocked()
	if cur == nil || cur.ID != participantID {
		return nil, ErrNotYourTurn
	}

	cardIdx := -1
	for i, c := range cur.Hand {
		if c.ID == cardID {
			cardIdx = i
			break
		}
	}
	if cardIdx < 0 {
		return nil, ErrCardNotInHand
	}
	card := cur.Hand[cardIdx]
	top := m.Discard[len(m.Discard)-1]
	if !uno.CanPlay(card, top, m.ActiveColor) {
		return nil, ErrIllegalPlay
	}
	if card.IsWild() && !chosen.IsPlayable() {
		return nil, ErrBadColor
	}

	cur.Hand = append(cur.Hand[:cardIdx], cur.Hand[cardIdx+1:]...)
	m.Discard = append(m.Discard, card)
	if card.IsWild() {
		m.ActiveColor = chosen
	} else {
		m.ActiveColor = card.Color
		chosen = ""
	}

	res := &PlayResult{Card: card, ChosenColor: chosen}
	m.fire(Event{Type: EventCardPlayed, Payload: map[string]interface{}{
		"playerId":    cur.ID,
		"card":        card,
		"chosenColor": chosen,
	}})
	m.fireTo(cur.ID, handUpdate(cur))

	if uno.HasWon(cur.Hand) {
		m.Winner = cur.ID
		m.TurnStartedAt = time.Time{}
		res.Winner = cur.ID
		m.fire(Event{Type: EventGameOver, Payload: map[string]interface{}{
			"winner":   cur.Name,
			"winnerId": cur.ID,
		}})
		m.log.WithFields(logrus.Fields{"room": m.RoomID, "winner": cur.ID}).Info("match won")
		return res, nil
	}

	eff := uno.EffectOf(card, len(m.Participants))
	if eff.Flip {
		m.Direction = -m.Direction
	}
	// Forced draws never stack: a second draw card while one is pending
	// leaves the pending count untouched.
	if eff.Draw > 0 && m.PendingDraw == 0 {
		m.PendingDraw = eff.Draw
	}
	m.advanceLocked(eff.SkipCount)
	res.Next = m.currentLocked().ID
	m.fire(Event{Type: EventGameState, Payload: m.publicViewLocked()})
	return res, nil
}

// DrawCard is the draw turn-action. A pending forced draw is resolved in
// full and ends the turn; otherwise the participant draws one card and
// passes. Events are broadcast on success.
func (m *Match) DrawCard(participantID string) (*DrawResult, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if !m.Started {
		return nil, ErrNotStarted
	}
	if m.Winner != "" {
		return nil, ErrMatchOver
	}
	cur := m.currentLocked()
	if cur == nil || cur.ID != participantID {
		return nil, ErrNotYourTurn
	}

	count := 1
	forced := m.PendingDraw > 0
	if forced {
		count = m.PendingDraw
	}
	var drawn []uno.Card
	for i := 0; i < count; i++ {
		card, ok := m.drawOneLocked(cur)
		if !ok {
			break
		}
		drawn = append(drawn, card)
	}
	m.PendingDraw = 0
	m.advanceLocked(0)

	res := &DrawResult{Cards: drawn, WasForced: forced, Next: m.currentLocked().ID}
	m.fire(Event{Type: EventCardsDrawn, Payload: map[string]interface{}{
		"playerId":  cur.ID,
		"count":     len(drawn),
		"wasForced": forced,
	}})
	m.fireTo(cur.ID, handUpdate(cur))
	m.fire(Event{Type: EventGameState, Payload: m.publicViewLocked()})
	return res, nil
}

// TimeoutDraw forces exactly one draw for the timed-out participant and
// advances the turn. A pending forced draw is forfeited, not resolved. It
// no-ops (false) when the turn has moved on, the match ended, or the room
// state is otherwise stale, so an orphaned timer callback cannot corrupt
// anything. turnID must be the value captured when the clock was armed:
// the participant id alone is not enough, because heads-up the turn wraps
// back to the same id within one clock window.
func (m *Match) TimeoutDraw(participantID string, turnID int64) (*DrawResult, bool) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if !m.Started || m.Winner != "" {
		return nil, false
	}
	if m.TurnID != turnID {
		return nil, false
	}
	cur := m.currentLocked()
	if cur == nil || cur.ID != participantID {
		return nil, false
	}

	var drawn []uno.Card
	if card, ok := m.drawOneLocked(cur); ok {
		drawn = append(drawn, card)
	}
	m.PendingDraw = 0
	m.advanceLocked(0)

	m.fire(Event{Type: EventTurnTimeout, Payload: map[string]interface{}{
		"playerId":   cur.ID,
		"playerName": cur.Name,
	}})
	m.fire(Event{Type: EventCardsDrawn, Payload: map[string]interface{}{
		"playerId":  cur.ID,
		"count":     len(drawn),
		"wasForced": true,
	}})
	m.fireTo(cur.ID, handUpdate(cur))
	m.fire(Event{Type: EventGameState, Payload: m.publicViewLocked()})
	m.log.WithFields(logrus.Fields{"room": m.RoomID, "participant": cur.ID}).
		Info("turn timed out, forced draw")
	return &DrawResult{Cards: drawn, WasForced: true, Next: m.currentLocked().ID}, true
}

// advanceLocked moves the turn pointer (1+skipCount) steps in the current
// direction and bumps the turn counter. Assumes the lock is held.
func (m *Match) advanceLocked(skipCount int) {
	if len(m.Participants) == 0 {
		return
	}
	m.CurrentIdx = uno.NextIndex(m.CurrentIdx, m.Direction, skipCount, len(m.Participants))
	m.TurnID++
}

// CurrentParticipant returns the id of the seat holding the turn, or empty.
func (m *Match) CurrentParticipant() string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if cur := m.currentLocked(); cur != nil {
		return cur.ID
	}
	return ""
}

// currentLocked returns the acting participant, or nil before start or in
// degenerate states. Assumes the lock is held.
func (m *Match) currentLocked() *Participant {
	if !m.Started || m.CurrentIdx < 0 || m.CurrentIdx >= len(m.Participants) {
		return nil
	}
	return m.Participants[m.CurrentIdx]
}

// participantLocked finds a roster member by id. Assumes the lock is held.
func (m *Match) participantLocked(id string) *Participant {
	for _, p := range m.Participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// HasParticipant reports whether id is a roster member.
func (m *Match) HasParticipant(id string) bool {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.participantLocked(id) != nil
}

// SetConnected flips a participant's connection flag, returning false for
// unknown ids. Disconnection never removes a seat from a started match.
func (m *Match) SetConnected(id string, connected bool) bool {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	p := m.participantLocked(id)
	if p == nil {
		return false
	}
	p.Connected = connected
	return true
}

func handUpdate(p *Participant) Event {
	hand := make([]uno.Card, len(p.Hand))
	copy(hand, p.Hand)
	return Event{Type: EventHandUpdate, Payload: map[string]interface{}{"hand": hand}}
}
