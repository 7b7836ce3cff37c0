// internal/game/events.go
package game

// EventType names an outbound event broadcast over the room's channel.
type EventType string

const (
	EventGameState        EventType = "game_state"
	EventGameStarted      EventType = "game_started"
	EventHandUpdate       EventType = "hand_update"
	EventCardPlayed       EventType = "card_played"
	EventCardsDrawn       EventType = "cards_drawn"
	EventGameOver         EventType = "game_over"
	EventTurnTimerStarted EventType = "turn_timer_started"
	EventTurnTimeout      EventType = "turn_timeout"
	EventRoomClosing      EventType = "room_closing"
)

// Event is the envelope delivered to clients. Payload carries the
// event-specific fields (a PublicView for state events, a plain map
// otherwise).
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// fire broadcasts an event to every connected room member.
// Assumes the match lock is held; the bound send path must not block.
func (m *Match) fire(ev Event) {
	if m.BroadcastFn != nil {
		m.BroadcastFn(ev)
	}
}

// fireTo sends an event privately to one participant.
// Assumes the match lock is held.
func (m *Match) fireTo(participantID string, ev Event) {
	if m.BroadcastToParticipantFn != nil {
		m.BroadcastToParticipantFn(participantID, ev)
	}
}
