// internal/handlers/server_test.go
package handlers

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uno-server/internal/game"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newServerFixture(t *testing.T, turnClock time.Duration) (*Server, *game.Store, *game.TurnTimers) {
	t.Helper()
	log := testLogger()
	store := game.NewStore(nil, 0, log)
	timers := game.NewTurnTimers(store, turnClock, log)
	bots := game.NewBotRunner(store, timers, time.Millisecond, log)
	srv := NewServer(store, timers, bots, nil, time.Minute, log)
	store.Bind = srv.BindMatch
	timers.OnBotTurn = bots.Schedule
	t.Cleanup(timers.StopAll)
	return srv, store, timers
}

func TestSendPreservesQueueOrder(t *testing.T) {
	srv, _, _ := newServerFixture(t, time.Minute)
	sess := &session{out: make(chan []byte, 8), done: make(chan struct{})}

	for i := 0; i < 5; i++ {
		srv.send(sess, game.Event{Type: game.EventGameState, Payload: map[string]interface{}{"seq": i}})
	}
	for i := 0; i < 5; i++ {
		select {
		case data := <-sess.out:
			assert.Contains(t, string(data), fmt.Sprintf(`"seq":%d`, i),
				"events must leave the queue in emit order")
		default:
			t.Fatalf("event %d missing from the queue", i)
		}
	}
}

func TestSendDropsWhenQueueFull(t *testing.T) {
	srv, _, _ := newServerFixture(t, time.Minute)
	sess := &session{out: make(chan []byte, 2), done: make(chan struct{})}

	for i := 0; i < 5; i++ {
		srv.send(sess, game.Event{Type: game.EventGameState})
	}
	assert.Len(t, sess.out, 2, "a slow client loses events instead of blocking the sender")
}

func TestSendAfterStopIsNoOp(t *testing.T) {
	srv, _, _ := newServerFixture(t, time.Minute)
	sess := &session{out: make(chan []byte), done: make(chan struct{})}
	sess.stop()
	sess.stop() // idempotent

	srv.send(sess, game.Event{Type: game.EventGameState}) // must not block or panic
}

func TestResumeIfStalledKicksBotTurn(t *testing.T) {
	srv, store, _ := newServerFixture(t, time.Minute)

	m := store.Create(context.Background(), "room-1")
	require.True(t, m.AddParticipant("b1", "Bot 1", true))
	require.True(t, m.AddParticipant("p1", "Player 1", false))
	require.True(t, m.Start())
	require.Equal(t, "b1", m.CurrentParticipant())

	srv.resumeIfStalled("room-1", m)

	require.Eventually(t, func() bool {
		return m.CurrentParticipant() == "p1"
	}, time.Second, 5*time.Millisecond, "the stalled bot turn must be driven without any human action")
}

func TestResumeIfStalledArmsHumanClock(t *testing.T) {
	srv, store, timers := newServerFixture(t, time.Minute)

	m := store.Create(context.Background(), "room-1")
	require.True(t, m.AddParticipant("p1", "Player 1", false))
	require.True(t, m.AddParticipant("p2", "Player 2", false))
	require.True(t, m.Start())
	require.False(t, timers.Armed("room-1"))

	srv.resumeIfStalled("room-1", m)
	assert.True(t, timers.Armed("room-1"))

	// A second resume against a running clock must not restart it.
	started := m.PublicView().TurnStartedAt
	time.Sleep(5 * time.Millisecond)
	srv.resumeIfStalled("room-1", m)
	assert.Equal(t, started, m.PublicView().TurnStartedAt)
}

func TestResumeIfStalledIgnoresFinishedAndUnstarted(t *testing.T) {
	srv, store, timers := newServerFixture(t, time.Minute)

	m := store.Create(context.Background(), "room-1")
	require.True(t, m.AddParticipant("p1", "Player 1", false))
	require.True(t, m.AddParticipant("p2", "Player 2", false))

	srv.resumeIfStalled("room-1", m)
	assert.False(t, timers.Armed("room-1"), "nothing to drive before start")

	require.True(t, m.Start())
	m.Mu.Lock()
	m.Winner = "p1"
	m.Mu.Unlock()
	srv.resumeIfStalled("room-1", m)
	assert.False(t, timers.Armed("room-1"), "a decided match gets no clock")
}
