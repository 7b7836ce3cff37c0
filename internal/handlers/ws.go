// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"uno-server/internal/auth"
	"uno-server/internal/game"
)

// clientMessage is the envelope for every inbound event.
type clientMessage struct {
	Type        string `json:"type"`
	RoomID      string `json:"roomId,omitempty"`
	RoomName    string `json:"roomName,omitempty"`
	PlayerName  string `json:"playerName,omitempty"`
	MaxPlayers  int    `json:"maxPlayers,omitempty"`
	CardID      string `json:"cardId,omitempty"`
	ChosenColor string `json:"chosenColor,omitempty"`
}

// HandleWS upgrades the connection, resolves the caller's identity (a valid
// session token, or a freshly minted guest), and runs the read loop. The
// identity layer runs entirely before the game core: every message handler
// sees a populated user id and name.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	var ident auth.Identity
	if token := r.URL.Query().Get("token"); token != "" {
		var err error
		ident, err = auth.VerifyToken(token)
		if err != nil {
			s.log.WithError(err).Debug("session token rejected, issuing guest identity")
			ident = auth.NewGuest(r.URL.Query().Get("name"))
		}
	} else {
		ident = auth.NewGuest(r.URL.Query().Get("name"))
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.WithError(err).Warn("websocket accept failed")
		return
	}
	defer c.Close(websocket.StatusInternalError, "server closing connection")

	sess := newSession(ident, c)
	s.register(sess)
	go s.writeLoop(sess)
	s.log.WithFields(logrus.Fields{
		"user":   ident.UserID,
		"name":   ident.Name,
		"remote": r.RemoteAddr,
	}).Info("websocket connected")

	// Hand the client its stable identity and a token to resume it with.
	token, err := auth.CreateToken(ident)
	if err != nil {
		s.log.WithError(err).Warn("mint session token failed")
	}
	s.send(sess, game.Event{Type: evConnected, Payload: map[string]interface{}{
		"userId":   ident.UserID,
		"username": ident.Name,
		"token":    token,
	}})

	s.readLoop(r.Context(), sess)

	s.handleDisconnect(sess)
	s.unregister(sess)
	sess.stop()
	s.log.WithField("user", ident.UserID).Info("websocket disconnected")
	c.Close(websocket.StatusNormalClosure, "")
}

// readLoop reads and dispatches messages until the connection drops.
func (s *Server) readLoop(ctx context.Context, sess *session) {
	for {
		msgType, data, err := sess.conn.Read(ctx)
		if err != nil {
			return
		}
		if msgType != websocket.MessageText {
			continue
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(sess, "Invalid message format.", false)
			continue
		}
		s.dispatch(sess, msg)
	}
}

// dispatch routes one inbound event. Rule violations are converted to the
// error event here and never escape the handler.
func (s *Server) dispatch(sess *session, msg clientMessage) {
	s.log.WithFields(logrus.Fields{
		"user": sess.ident.UserID,
		"type": msg.Type,
	}).Debug("inbound event")

	switch msg.Type {
	case "create_room":
		s.handleCreateRoom(sess, msg)
	case "join_room":
		s.handleJoinRoom(sess, msg)
	case "start_game":
		s.handleStartGame(sess)
	case "play_card":
		s.handlePlayCard(sess, msg)
	case "draw_card":
		s.handleDrawCard(sess)
	case "add_bot":
		s.handleAddBot(sess)
	case "leave_room":
		s.handleLeaveRoom(sess)
	case "check_room_exists":
		s.handleCheckRoomExists(sess, msg)
	case "check_reconnection":
		s.handleCheckReconnection(sess)
	case "reconnect_to_game":
		s.handleReconnect(sess, msg)
	case "request_game_state":
		s.handleRequestGameState(sess, msg)
	case "ping":
		s.send(sess, game.Event{Type: evPong})
	default:
		s.sendError(sess, "Unknown event type: "+msg.Type, false)
	}
}

// handleDisconnect runs when a connection's read loop exits. Dropping
// mid-match never frees the seat: only the connection binding goes, so the
// participant can reconnect. Before start the seat opens up again.
func (s *Server) handleDisconnect(sess *session) {
	roomID := s.roomOf(sess)
	if roomID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m := s.Store.Get(ctx, roomID)
	if m == nil {
		return
	}
	view := m.PublicView()
	if view.Started && view.Winner == "" {
		m.SetConnected(sess.ident.UserID, false)
		s.broadcast(roomID, game.Event{Type: evPlayerDisconnected, Payload: map[string]interface{}{
			"playerId":   sess.ident.UserID,
			"playerName": sess.ident.Name,
		}})
		s.Store.Save(ctx, roomID)
		return
	}
	// Not started (or already decided): free the seat.
	m.RemoveParticipant(sess.ident.UserID)
	s.broadcast(roomID, game.Event{Type: evPlayerDisconnected, Payload: map[string]interface{}{
		"playerId":   sess.ident.UserID,
		"playerName": sess.ident.Name,
	}})
	s.afterRosterChange(ctx, roomID, sess.ident.UserID)
}
