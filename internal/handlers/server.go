// internal/handlers/server.go
package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"uno-server/internal/auth"
	"uno-server/internal/database"
	"uno-server/internal/game"
)

// Outbound events owned by the transport layer (the game package owns the
// in-match events).
const (
	evError              game.EventType = "error"
	evConnected          game.EventType = "connected"
	evRoomCreated        game.EventType = "room_created"
	evRoomExists         game.EventType = "room_exists"
	evPlayerDisconnected game.EventType = "player_disconnected"
	evPlayerReconnected  game.EventType = "player_reconnected"
	evReconnectionResult game.EventType = "reconnection_result"
	evReconnectionFailed game.EventType = "reconnection_failed"
	evGameRestored       game.EventType = "game_restored"
	evPong               game.EventType = "pong"
)

const (
	outboundQueueSize = 64
	writeTimeout      = 3 * time.Second
)

// session is one live websocket connection bound to an authenticated
// identity and at most one room. Outbound events go through a buffered
// queue drained by a single writer goroutine, so per-connection delivery
// order matches emit order.
type session struct {
	id     string
	ident  auth.Identity
	conn   *websocket.Conn
	roomID string // guarded by Server.mu

	out      chan []byte
	done     chan struct{}
	stopOnce sync.Once
}

func newSession(ident auth.Identity, conn *websocket.Conn) *session {
	return &session{
		id:    uuid.NewString(),
		ident: ident,
		conn:  conn,
		out:   make(chan []byte, outboundQueueSize),
		done:  make(chan struct{}),
	}
}

// stop releases the writer goroutine. Idempotent; safe concurrently with
// enqueues.
func (sess *session) stop() {
	sess.stopOnce.Do(func() { close(sess.done) })
}

// Server owns the live connections and the room registry, and wires client
// events to the game core. A failure in one room's handler is always
// surfaced to the originating connection only and never disturbs other
// rooms.
type Server struct {
	Store   *game.Store
	Timers  *game.TurnTimers
	Bots    *game.BotRunner
	Rooms   *RoomRegistry
	History *database.Historian

	grace time.Duration
	log   *logrus.Logger

	mu       sync.Mutex
	sessions map[string]*session            // connection id -> session
	rooms    map[string]map[string]*session // room id -> connection id -> session
}

// NewServer wires the transport around the game services. grace is how long
// a finished room stays up before teardown.
func NewServer(store *game.Store, timers *game.TurnTimers, bots *game.BotRunner, hist *database.Historian, grace time.Duration, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		Store:    store,
		Timers:   timers,
		Bots:     bots,
		Rooms:    NewRoomRegistry(),
		History:  hist,
		grace:    grace,
		log:      log,
		sessions: make(map[string]*session),
		rooms:    make(map[string]map[string]*session),
	}
}

// BindMatch attaches the broadcast functions to a match entering memory.
// Store.Bind points here so created and rehydrated matches both get wired.
func (s *Server) BindMatch(m *game.Match) {
	roomID := m.RoomID
	m.BroadcastFn = func(ev game.Event) {
		s.broadcast(roomID, ev)
	}
	m.BroadcastToParticipantFn = func(participantID string, ev game.Event) {
		s.sendToParticipant(roomID, participantID, ev)
	}
}

// broadcast sends an event to every connection bound to the room. The
// writes happen off the calling goroutine so game logic (often holding the
// match lock) is never blocked by a slow client.
func (s *Server) broadcast(roomID string, ev game.Event) {
	s.mu.Lock()
	targets := make([]*session, 0, len(s.rooms[roomID]))
	for _, sess := range s.rooms[roomID] {
		targets = append(targets, sess)
	}
	s.mu.Unlock()
	for _, sess := range targets {
		s.send(sess, ev)
	}
}

// sendToParticipant delivers a private event to every connection the
// participant currently holds in the room.
func (s *Server) sendToParticipant(roomID, participantID string, ev game.Event) {
	s.mu.Lock()
	var targets []*session
	for _, sess := range s.rooms[roomID] {
		if sess.ident.UserID == participantID {
			targets = append(targets, sess)
		}
	}
	s.mu.Unlock()
	for _, sess := range targets {
		s.send(sess, ev)
	}
}

// send marshals one event onto the session's outbound queue. A full queue
// (slow client) drops the event for that connection only; game state is
// never blocked on a write.
func (s *Server) send(sess *session, ev game.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.log.WithError(err).WithField("event", ev.Type).Error("marshal event failed")
		return
	}
	select {
	case sess.out <- data:
	case <-sess.done:
	default:
		s.log.WithFields(logrus.Fields{
			"user":  sess.ident.UserID,
			"event": ev.Type,
		}).Debug("outbound queue full, dropping event")
	}
}

// writeLoop is the session's single writer: it drains the outbound queue
// in order until the session stops or a write fails.
func (s *Server) writeLoop(sess *session) {
	for {
		select {
		case <-sess.done:
			return
		case data := <-sess.out:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := sess.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.log.WithError(err).WithField("user", sess.ident.UserID).
					Debug("websocket write failed")
				return
			}
		}
	}
}

// sendError surfaces a failure to the originating connection only.
func (s *Server) sendError(sess *session, message string, shouldReconnect bool) {
	payload := map[string]interface{}{"message": message}
	if shouldReconnect {
		payload["shouldReconnect"] = true
	}
	s.send(sess, game.Event{Type: evError, Payload: payload})
}

// register adds a fresh connection.
func (s *Server) register(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.id] = sess
}

// unregister drops a connection and its room binding.
func (s *Server) unregister(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess.id)
	s.unbindLocked(sess)
}

// bindRoom attaches the connection to a room's broadcast group.
func (s *Server) bindRoom(sess *session, roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unbindLocked(sess)
	sess.roomID = roomID
	if s.rooms[roomID] == nil {
		s.rooms[roomID] = make(map[string]*session)
	}
	s.rooms[roomID][sess.id] = sess
}

// unbindRoom detaches the connection from its room, if any.
func (s *Server) unbindRoom(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unbindLocked(sess)
}

func (s *Server) unbindLocked(sess *session) {
	if sess.roomID == "" {
		return
	}
	if group, ok := s.rooms[sess.roomID]; ok {
		delete(group, sess.id)
		if len(group) == 0 {
			delete(s.rooms, sess.roomID)
		}
	}
	sess.roomID = ""
}

// roomOf reads the connection's current room binding.
func (s *Server) roomOf(sess *session) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sess.roomID
}

// FinishMatch handles a declared winner: the turn clock stops, the match is
// recorded to the history sink, and the room is torn down after a grace
// period so clients can show the result.
func (s *Server) FinishMatch(roomID, winnerID string) {
	s.Timers.Clear(roomID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if m := s.Store.Get(ctx, roomID); m != nil && s.History != nil {
		code := ""
		if room := s.Rooms.Get(roomID); room != nil {
			code = room.Code
		}
		s.History.RecordMatch(m.Snapshot(), code)
	}
	s.log.WithFields(logrus.Fields{"room": roomID, "winner": winnerID}).Info("match finished")

	time.AfterFunc(s.grace, func() {
		// A rematch may have started during the grace window.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if m := s.Store.Get(ctx, roomID); m != nil {
			if v := m.PublicView(); v.Started && v.Winner == "" {
				return
			}
		}
		s.Teardown(roomID, "This room has closed. Thanks for playing!")
	})
}

// NotifyRoomClosing is the store's eviction hook: members are warned and
// connections unbound before the store deletes the match.
func (s *Server) NotifyRoomClosing(roomID string) {
	s.broadcast(roomID, game.Event{Type: game.EventRoomClosing, Payload: map[string]interface{}{
		"message": "This room was closed due to inactivity.",
	}})
	s.Timers.Clear(roomID)
	s.dropRoomBindings(roomID)
	s.Rooms.Delete(roomID)
}

// Teardown closes a room explicitly: notice, timers, store, registry,
// connection bindings.
func (s *Server) Teardown(roomID, message string) {
	s.broadcast(roomID, game.Event{Type: game.EventRoomClosing, Payload: map[string]interface{}{
		"message": message,
	}})
	s.Timers.Clear(roomID)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Store.Delete(ctx, roomID)
	s.dropRoomBindings(roomID)
	s.Rooms.Delete(roomID)
}

func (s *Server) dropRoomBindings(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.rooms[roomID] {
		sess.roomID = ""
	}
	delete(s.rooms, roomID)
}
