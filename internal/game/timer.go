// internal/game/timer.go
package game

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// TurnTimers schedules one cancellable countdown per room, tied to the
// current turn. On expiry the timed-out participant is forced to draw one
// card and the turn advances without input. Callbacks re-fetch and
// revalidate state because the gap between arming and firing is exactly
// where the room can be deleted or the player can act.
type TurnTimers struct {
	mu     sync.Mutex
	timers map[string]*time.Timer

	store    *Store
	duration time.Duration
	log      *logrus.Logger

	// OnBotTurn is invoked when a timeout hands the turn to a bot.
	OnBotTurn func(roomID string)
}

// NewTurnTimers builds the scheduler. duration is the per-turn clock.
func NewTurnTimers(store *Store, duration time.Duration, log *logrus.Logger) *TurnTimers {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TurnTimers{
		timers:   make(map[string]*time.Timer),
		store:    store,
		duration: duration,
		log:      log,
	}
}

// Start arms the countdown for the room's current turn, clearing any
// previous one first. It stays idle when the match is not started, has no
// acting participant, already has a winner, or the acting participant is a
// bot (bots act immediately, no clock). The turn start time is recorded,
// persisted, and broadcast so clients can render the clock.
func (t *TurnTimers) Start(roomID string) {
	t.Clear(roomID)
	if t.duration <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m := t.store.Get(ctx, roomID)
	if m == nil {
		return
	}

	m.Mu.Lock()
	cur := m.currentLocked()
	if m.Winner != "" || cur == nil || cur.IsBot {
		m.TurnStartedAt = time.Time{}
		m.Mu.Unlock()
		return
	}
	pid := cur.ID
	turnID := m.TurnID
	m.TurnStartedAt = time.Now()
	m.TurnDuration = t.duration
	m.fire(Event{Type: EventTurnTimerStarted, Payload: map[string]interface{}{
		"playerId":  pid,
		"duration":  t.duration.Milliseconds(),
		"startTime": m.TurnStartedAt.UnixMilli(),
	}})
	m.Mu.Unlock()

	t.store.Save(ctx, roomID)

	t.mu.Lock()
	if old, ok := t.timers[roomID]; ok {
		old.Stop()
	}
	t.timers[roomID] = time.AfterFunc(t.duration, func() {
		t.expire(roomID, pid, turnID)
	})
	t.mu.Unlock()
}

// Clear cancels any armed countdown for the room. Idempotent.
func (t *TurnTimers) Clear(roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.timers[roomID]; ok {
		timer.Stop()
		delete(t.timers, roomID)
	}
}

// Reset is Clear followed by Start, invoked after every valid action so the
// clock always reflects the current turn.
func (t *TurnTimers) Reset(roomID string) {
	t.Start(roomID)
}

// Armed reports whether a countdown is currently armed for the room.
func (t *TurnTimers) Armed(roomID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[roomID]
	return ok
}

// expire fires when a turn clock runs out. The match is re-fetched and the
// turn revalidated inside TimeoutDraw against the counter captured at arm
// time; a stale callback is a silent no-op.
func (t *TurnTimers) expire(roomID, participantID string, turnID int64) {
	t.mu.Lock()
	delete(t.timers, roomID)
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m := t.store.Get(ctx, roomID)
	if m == nil {
		return
	}
	res, ok := m.TimeoutDraw(participantID, turnID)
	if !ok {
		t.log.WithFields(logrus.Fields{"room": roomID, "participant": participantID}).
			Debug("stale turn timer ignored")
		return
	}
	t.store.Save(ctx, roomID)
	t.Start(roomID)

	if next := m.participantOf(res.Next); next != nil && next.IsBot && t.OnBotTurn != nil {
		t.OnBotTurn(roomID)
	}
}

// StopAll cancels every armed countdown, for process shutdown.
func (t *TurnTimers) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}

// participantOf looks a roster member up by id under the match lock.
func (m *Match) participantOf(id string) *Participant {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.participantLocked(id)
}
