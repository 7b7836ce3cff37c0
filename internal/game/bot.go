// internal/game/bot.go
package game

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"uno-server/internal/uno"
)

// Decision is the move a bot commits to: draw, or play a card (with a
// chosen color when the card is wild).
type Decision struct {
	Draw        bool
	Card        uno.Card
	ChosenColor uno.Color
}

// Decide picks a legal move for the hand against the table state. It
// prefers the first legal non-wild card, conserving wilds; a wild is
// colored with the most common color left in hand, ties broken by
// enumeration order, defaulting to red for a hand of nothing but wilds.
func Decide(hand []uno.Card, top uno.Card, active uno.Color) Decision {
	var wild *uno.Card
	for i, c := range hand {
		if !uno.CanPlay(c, top, active) {
			continue
		}
		if !c.IsWild() {
			return Decision{Card: c}
		}
		if wild == nil {
			wild = &hand[i]
		}
	}
	if wild == nil {
		return Decision{Draw: true}
	}
	return Decision{Card: *wild, ChosenColor: bestColor(hand, wild.ID)}
}

// bestColor counts the non-wild colors remaining in hand (excluding the
// card about to be played) and returns the most frequent.
func bestColor(hand []uno.Card, playedID string) uno.Color {
	counts := make(map[uno.Color]int)
	for _, c := range hand {
		if c.ID == playedID || c.IsWild() {
			continue
		}
		counts[c.Color]++
	}
	best := uno.Colors[0]
	bestCount := -1
	for _, color := range uno.Colors {
		if counts[color] > bestCount {
			best = color
			bestCount = counts[color]
		}
	}
	return best
}

// BotRunner drives bot turns. Each turn is executed against the live match
// through the same validated operations humans use, then the next bot turn
// is scheduled after a fixed delay so the event stream stays watchable and
// an all-bot room cannot spin unbounded. Every iteration re-fetches the
// match and stops on room deletion, a declared winner, or a human turn.
type BotRunner struct {
	store  *Store
	timers *TurnTimers
	delay  time.Duration
	log    *logrus.Logger

	// OnMatchEnd is invoked when a bot's play wins the match.
	OnMatchEnd func(roomID, winnerID string)
}

// NewBotRunner builds the runner. delay spaces consecutive bot turns.
func NewBotRunner(store *Store, timers *TurnTimers, delay time.Duration, log *logrus.Logger) *BotRunner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BotRunner{store: store, timers: timers, delay: delay, log: log}
}

// Schedule queues one bot turn for the room after the configured delay.
func (b *BotRunner) Schedule(roomID string) {
	time.AfterFunc(b.delay, func() {
		b.playTurn(roomID)
	})
}

// playTurn executes a single bot turn, then chains.
func (b *BotRunner) playTurn(roomID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m := b.store.Get(ctx, roomID)
	if m == nil {
		return
	}

	m.Mu.Lock()
	cur := m.currentLocked()
	if m.Winner != "" || cur == nil || !cur.IsBot {
		m.Mu.Unlock()
		return
	}
	pid := cur.ID
	pending := m.PendingDraw > 0
	hand := append([]uno.Card(nil), cur.Hand...)
	top := m.Discard[len(m.Discard)-1]
	active := m.ActiveColor
	m.Mu.Unlock()

	// A pending forced draw must be drawn in full and ends the turn, same
	// as the human path. Otherwise play the decision or draw-and-pass.
	var winner, next string
	var err error
	if pending {
		var res *DrawResult
		res, err = m.DrawCard(pid)
		if res != nil {
			next = res.Next
		}
	} else if d := Decide(hand, top, active); d.Draw {
		var res *DrawResult
		res, err = m.DrawCard(pid)
		if res != nil {
			next = res.Next
		}
	} else {
		var res *PlayResult
		res, err = m.PlayCard(pid, d.Card.ID, d.ChosenColor)
		if res != nil {
			winner = res.Winner
			next = res.Next
		}
	}
	if err != nil {
		// Lost a race with a timeout or teardown; the state moved on.
		b.log.WithError(err).WithFields(logrus.Fields{"room": roomID, "bot": pid}).
			Debug("bot turn aborted")
		return
	}

	b.store.Save(ctx, roomID)

	if winner != "" {
		b.timers.Clear(roomID)
		if b.OnMatchEnd != nil {
			b.OnMatchEnd(roomID, winner)
		}
		return
	}

	b.timers.Reset(roomID)
	if p := m.participantOf(next); p != nil && p.IsBot {
		b.Schedule(roomID)
	}
}
