// internal/handlers/reconnect.go
package handlers

import (
	"uno-server/internal/game"
)

// handleCheckReconnection answers "do I have a live game somewhere?". The
// lookup goes through the replica's reverse index so it works across process
// restarts, when the in-memory map has nothing for this identity.
func (s *Server) handleCheckReconnection(sess *session) {
	ctx, cancel := opCtx()
	defer cancel()

	roomID := s.Store.FindRoomByParticipant(ctx, sess.ident.UserID)
	if roomID == "" {
		s.send(sess, game.Event{Type: evReconnectionResult, Payload: map[string]interface{}{
			"canReconnect": false,
		}})
		return
	}
	m := s.Store.Get(ctx, roomID)
	if m == nil || !m.HasParticipant(sess.ident.UserID) {
		s.send(sess, game.Event{Type: evReconnectionResult, Payload: map[string]interface{}{
			"canReconnect": false,
		}})
		return
	}
	view := m.PublicView()
	if view.Winner != "" {
		s.send(sess, game.Event{Type: evReconnectionResult, Payload: map[string]interface{}{
			"canReconnect": false,
		}})
		return
	}
	s.send(sess, game.Event{Type: evReconnectionResult, Payload: map[string]interface{}{
		"canReconnect": true,
		"roomId":       roomID,
		"gameState":    view,
	}})
}

// handleReconnect re-seats an identity into its live match: the connection
// is bound to the room, the seat is marked connected again, and the full
// state plus private hand is replayed to the caller.
func (s *Server) handleReconnect(sess *session, msg clientMessage) {
	ctx, cancel := opCtx()
	defer cancel()

	roomID := msg.RoomID
	if roomID == "" {
		roomID = s.Store.FindRoomByParticipant(ctx, sess.ident.UserID)
	}
	if roomID == "" {
		s.send(sess, game.Event{Type: evReconnectionFailed, Payload: map[string]interface{}{
			"message": "No game found to reconnect to.",
		}})
		return
	}
	m := s.Store.Get(ctx, roomID)
	if m == nil {
		s.send(sess, game.Event{Type: evReconnectionFailed, Payload: map[string]interface{}{
			"message": "That game no longer exists.",
		}})
		return
	}
	if !m.HasParticipant(sess.ident.UserID) {
		s.send(sess, game.Event{Type: evReconnectionFailed, Payload: map[string]interface{}{
			"message": "You are not a participant in that game.",
		}})
		return
	}
	if v := m.PublicView(); v.Winner != "" {
		s.send(sess, game.Event{Type: evReconnectionFailed, Payload: map[string]interface{}{
			"message": "That game has already finished.",
		}})
		return
	}

	s.bindRoom(sess, roomID)
	s.Rooms.Ensure(roomID)
	m.SetConnected(sess.ident.UserID, true)
	s.Store.Save(ctx, roomID)

	view := m.PublicView()
	s.send(sess, game.Event{Type: evGameRestored, Payload: map[string]interface{}{
		"roomId":    roomID,
		"gameState": view,
		"yourHand":  m.HandOf(sess.ident.UserID),
		"message":   "Welcome back!",
	}})
	s.broadcast(roomID, game.Event{Type: evPlayerReconnected, Payload: map[string]interface{}{
		"playerId":   sess.ident.UserID,
		"playerName": sess.ident.Name,
	}})

	// A rehydrated match has no running clock and no scheduled bot turn,
	// whoever came back first.
	s.resumeIfStalled(roomID, m)
}
