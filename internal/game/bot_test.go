// internal/game/bot_test.go
package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uno-server/internal/uno"
)

func TestDecidePrefersNonWild(t *testing.T) {
	top := card("t1", uno.ColorRed, "5")
	hand := []uno.Card{
		card("w1", uno.ColorWild, uno.ValueWild),
		card("c1", uno.ColorRed, "7"),
	}
	d := Decide(hand, top, uno.ColorRed)
	assert.False(t, d.Draw)
	assert.Equal(t, "c1", d.Card.ID, "wilds are conserved when a plain card is legal")
}

func TestDecideFallsBackToWild(t *testing.T) {
	top := card("t1", uno.ColorRed, "5")
	hand := []uno.Card{
		card("c1", uno.ColorBlue, "9"),
		card("c2", uno.ColorBlue, "3"),
		card("c3", uno.ColorGreen, "1"),
		card("w1", uno.ColorWild, uno.ValueWild),
	}
	d := Decide(hand, top, uno.ColorRed)
	assert.False(t, d.Draw)
	assert.Equal(t, "w1", d.Card.ID)
	assert.Equal(t, uno.ColorBlue, d.ChosenColor, "the majority color of the rest of the hand")
}

func TestDecideWildColorTieBreaksByEnumerationOrder(t *testing.T) {
	top := card("t1", uno.ColorRed, "5")
	hand := []uno.Card{
		card("c1", uno.ColorGreen, "9"),
		card("c2", uno.ColorBlue, "3"),
		card("w1", uno.ColorWild, uno.ValueWild),
	}
	d := Decide(hand, top, uno.ColorYellow)
	assert.Equal(t, "w1", d.Card.ID)
	assert.Equal(t, uno.ColorBlue, d.ChosenColor, "blue precedes green in enumeration order")
}

func TestDecideWildOnlyHandDefaultsRed(t *testing.T) {
	top := card("t1", uno.ColorRed, "5")
	hand := []uno.Card{card("w1", uno.ColorWild, uno.ValueWild)}
	d := Decide(hand, top, uno.ColorBlue)
	assert.Equal(t, uno.ColorRed, d.ChosenColor)
}

func TestDecideDrawsWhenNothingLegal(t *testing.T) {
	top := card("t1", uno.ColorRed, "5")
	hand := []uno.Card{
		card("c1", uno.ColorBlue, "9"),
		card("c2", uno.ColorGreen, "3"),
	}
	d := Decide(hand, top, uno.ColorRed)
	assert.True(t, d.Draw)
}

func newBotFixture(t *testing.T) (*Store, *TurnTimers, *BotRunner, *Match) {
	t.Helper()
	store := NewStore(newFakeReplica(), 0, testLogger())
	timers := NewTurnTimers(store, 0, testLogger())
	bots := NewBotRunner(store, timers, time.Millisecond, testLogger())
	t.Cleanup(timers.StopAll)

	m := store.Create(context.Background(), "room-1")
	require.True(t, m.AddParticipant("b1", "Bot 1", true))
	require.True(t, m.AddParticipant("p1", "Player 1", false))
	require.True(t, m.Start())
	return store, timers, bots, m
}

func TestBotPlaysLegalCard(t *testing.T) {
	_, _, bots, m := newBotFixture(t)
	setTable(m, 0, uno.ColorRed,
		[]uno.Card{card("d1", uno.ColorGreen, "1")},
		[]uno.Card{card("t1", uno.ColorRed, "5")},
		[]uno.Card{card("c1", uno.ColorRed, "7"), card("c2", uno.ColorBlue, "9")},
		[]uno.Card{card("c3", uno.ColorRed, "1")},
	)

	bots.playTurn("room-1")

	view := m.PublicView()
	assert.Equal(t, "c1", view.DiscardTop.ID)
	assert.Equal(t, "p1", view.Current)
	assert.Len(t, m.HandOf("b1"), 1)
}

func TestBotServesForcedDraw(t *testing.T) {
	_, _, bots, m := newBotFixture(t)
	setTable(m, 0, uno.ColorRed,
		[]uno.Card{card("d1", uno.ColorGreen, "1"), card("d2", uno.ColorGreen, "2")},
		[]uno.Card{card("t1", uno.ColorRed, "5")},
		[]uno.Card{card("c1", uno.ColorRed, "7")},
		[]uno.Card{card("c2", uno.ColorRed, "1")},
	)
	m.Mu.Lock()
	m.PendingDraw = 2
	m.Mu.Unlock()

	bots.playTurn("room-1")

	view := m.PublicView()
	assert.Equal(t, 0, view.PendingDraw)
	assert.Equal(t, "p1", view.Current, "serving the debt ends the bot's turn")
	assert.Len(t, m.HandOf("b1"), 3, "the full pending amount is drawn, not played through")
}

func TestBotWinReportsMatchEnd(t *testing.T) {
	_, _, bots, m := newBotFixture(t)
	setTable(m, 0, uno.ColorRed,
		[]uno.Card{card("d1", uno.ColorGreen, "1")},
		[]uno.Card{card("t1", uno.ColorRed, "5")},
		[]uno.Card{card("c1", uno.ColorRed, "7")},
		[]uno.Card{card("c2", uno.ColorRed, "1")},
	)

	var mu sync.Mutex
	var gotRoom, gotWinner string
	bots.OnMatchEnd = func(roomID, winnerID string) {
		mu.Lock()
		gotRoom, gotWinner = roomID, winnerID
		mu.Unlock()
	}

	bots.playTurn("room-1")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "room-1", gotRoom)
	assert.Equal(t, "b1", gotWinner)
	assert.Equal(t, "b1", m.PublicView().Winner)
}

func TestBotIgnoresHumanTurn(t *testing.T) {
	_, _, bots, m := newBotFixture(t)
	setTable(m, 1, uno.ColorRed,
		[]uno.Card{card("d1", uno.ColorGreen, "1")},
		[]uno.Card{card("t1", uno.ColorRed, "5")},
		[]uno.Card{card("c1", uno.ColorRed, "7")},
		[]uno.Card{card("c2", uno.ColorRed, "1")},
	)

	bots.playTurn("room-1")

	view := m.PublicView()
	assert.Equal(t, "p1", view.Current, "a bot callback on a human turn must not act")
	assert.Len(t, m.HandOf("p1"), 1)
}

func TestBotChainStopsAtHumanTurn(t *testing.T) {
	store := NewStore(newFakeReplica(), 0, testLogger())
	timers := NewTurnTimers(store, 0, testLogger())
	bots := NewBotRunner(store, timers, time.Millisecond, testLogger())
	t.Cleanup(timers.StopAll)

	m := store.Create(context.Background(), "room-1")
	require.True(t, m.AddParticipant("b1", "Bot 1", true))
	require.True(t, m.AddParticipant("b2", "Bot 2", true))
	require.True(t, m.AddParticipant("p1", "Player 1", false))
	require.True(t, m.Start())
	setTable(m, 0, uno.ColorRed,
		[]uno.Card{card("d1", uno.ColorGreen, "1"), card("d2", uno.ColorGreen, "2")},
		[]uno.Card{card("t1", uno.ColorRed, "5")},
		[]uno.Card{card("c1", uno.ColorRed, "7"), card("x1", uno.ColorBlue, "1")},
		[]uno.Card{card("c2", uno.ColorRed, "8"), card("x2", uno.ColorBlue, "2")},
		[]uno.Card{card("c3", uno.ColorRed, "1")},
	)

	bots.Schedule("room-1")

	require.Eventually(t, func() bool {
		return m.CurrentParticipant() == "p1"
	}, time.Second, 5*time.Millisecond)
	view := m.PublicView()
	assert.Equal(t, "c2", view.DiscardTop.ID, "both bots acted in order")
}
