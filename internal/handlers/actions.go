// internal/handlers/actions.go
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"uno-server/internal/game"
	"uno-server/internal/uno"
)

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (s *Server) handleCreateRoom(sess *session, msg clientMessage) {
	if s.roomOf(sess) != "" {
		s.sendError(sess, "You are already in a room.", false)
		return
	}
	ctx, cancel := opCtx()
	defer cancel()

	room := s.Rooms.Create(msg.RoomName, msg.MaxPlayers, sess.ident.UserID)
	m := s.Store.Create(ctx, room.ID)
	name := msg.PlayerName
	if name == "" {
		name = sess.ident.Name
	}
	m.AddParticipant(sess.ident.UserID, name, false)
	s.bindRoom(sess, room.ID)
	s.Store.Save(ctx, room.ID)

	s.send(sess, game.Event{Type: evRoomCreated, Payload: room})
	s.broadcast(room.ID, game.Event{Type: game.EventGameState, Payload: m.PublicView()})
}

func (s *Server) handleJoinRoom(sess *session, msg clientMessage) {
	if s.roomOf(sess) != "" {
		s.sendError(sess, "You are already in a room.", false)
		return
	}
	if msg.RoomID == "" {
		s.sendError(sess, "A room id is required to join.", false)
		return
	}
	ctx, cancel := opCtx()
	defer cancel()

	roomID := msg.RoomID
	if room := s.Rooms.GetByCode(msg.RoomID); room != nil {
		roomID = room.ID
	}
	m := s.Store.Get(ctx, roomID)
	if m == nil {
		s.sendError(sess, "Room not found.", false)
		return
	}
	room := s.Rooms.Ensure(roomID)

	view := m.PublicView()
	if view.Started {
		s.sendError(sess, "That game has already started.", false)
		return
	}
	if len(view.Participants) >= room.MaxPlayers {
		s.sendError(sess, "That room is full.", false)
		return
	}
	name := msg.PlayerName
	if name == "" {
		name = sess.ident.Name
	}
	if !m.AddParticipant(sess.ident.UserID, name, false) {
		s.sendError(sess, "Unable to join that room.", false)
		return
	}
	s.bindRoom(sess, roomID)
	s.Store.Save(ctx, roomID)
	s.broadcast(roomID, game.Event{Type: game.EventGameState, Payload: m.PublicView()})
}

func (s *Server) handleAddBot(sess *session) {
	roomID := s.roomOf(sess)
	if roomID == "" {
		s.sendError(sess, "You are not in a room.", false)
		return
	}
	room := s.Rooms.Get(roomID)
	if room == nil || room.HostID != sess.ident.UserID {
		s.sendError(sess, "Only the host can add bots.", false)
		return
	}
	ctx, cancel := opCtx()
	defer cancel()
	m := s.Store.Get(ctx, roomID)
	if m == nil {
		s.sendError(sess, "Room not found.", true)
		return
	}
	view := m.PublicView()
	if view.Started {
		s.sendError(sess, "Bots cannot join a started game.", false)
		return
	}
	if len(view.Participants) >= room.MaxPlayers {
		s.sendError(sess, "That room is full.", false)
		return
	}
	bots := 0
	for _, p := range view.Participants {
		if p.IsBot {
			bots++
		}
	}
	if !m.AddParticipant(uuid.NewString(), fmt.Sprintf("Bot %d", bots+1), true) {
		s.sendError(sess, "Unable to add a bot.", false)
		return
	}
	s.Store.Save(ctx, roomID)
	s.broadcast(roomID, game.Event{Type: game.EventGameState, Payload: m.PublicView()})
}

func (s *Server) handleStartGame(sess *session) {
	roomID := s.roomOf(sess)
	if roomID == "" {
		s.sendError(sess, "You are not in a room.", false)
		return
	}
	room := s.Rooms.Get(roomID)
	if room == nil || room.HostID != sess.ident.UserID {
		s.sendError(sess, "Only the host can start the game.", false)
		return
	}
	ctx, cancel := opCtx()
	defer cancel()
	m := s.Store.Get(ctx, roomID)
	if m == nil {
		s.sendError(sess, "Room not found.", true)
		return
	}
	// A decided match restarts as a rematch for the same roster.
	if v := m.PublicView(); v.Winner != "" {
		m.Reset()
	}
	if !m.Start() {
		s.sendError(sess, "At least 2 players are needed to start.", false)
		return
	}
	s.Store.Save(ctx, roomID)
	s.afterTurnChange(roomID, m)
}

func (s *Server) handlePlayCard(sess *session, msg clientMessage) {
	roomID := s.roomOf(sess)
	if roomID == "" {
		s.sendError(sess, "You are not in a room.", false)
		return
	}
	if msg.CardID == "" {
		s.sendError(sess, "A card id is required.", false)
		return
	}
	ctx, cancel := opCtx()
	defer cancel()
	m := s.Store.Get(ctx, roomID)
	if m == nil {
		s.sendError(sess, "Room not found.", true)
		return
	}
	res, err := m.PlayCard(sess.ident.UserID, msg.CardID, uno.Color(msg.ChosenColor))
	if err != nil {
		s.sendError(sess, err.Error(), false)
		return
	}
	s.Store.Save(ctx, roomID)
	if res.Winner != "" {
		s.FinishMatch(roomID, res.Winner)
		return
	}
	s.afterTurnChange(roomID, m)
}

func (s *Server) handleDrawCard(sess *session) {
	roomID := s.roomOf(sess)
	if roomID == "" {
		s.sendError(sess, "You are not in a room.", false)
		return
	}
	ctx, cancel := opCtx()
	defer cancel()
	m := s.Store.Get(ctx, roomID)
	if m == nil {
		s.sendError(sess, "Room not found.", true)
		return
	}
	if _, err := m.DrawCard(sess.ident.UserID); err != nil {
		s.sendError(sess, err.Error(), false)
		return
	}
	s.Store.Save(ctx, roomID)
	s.afterTurnChange(roomID, m)
}

func (s *Server) handleLeaveRoom(sess *session) {
	roomID := s.roomOf(sess)
	if roomID == "" {
		s.sendError(sess, "You are not in a room.", false)
		return
	}
	ctx, cancel := opCtx()
	defer cancel()
	m := s.Store.Get(ctx, roomID)
	s.unbindRoom(sess)
	if m == nil {
		return
	}
	m.RemoveParticipant(sess.ident.UserID)
	s.broadcast(roomID, game.Event{Type: evPlayerDisconnected, Payload: map[string]interface{}{
		"playerId":   sess.ident.UserID,
		"playerName": sess.ident.Name,
	}})
	s.afterRosterChange(ctx, roomID, sess.ident.UserID)
}

// afterRosterChange re-settles a room after a seat was freed: empty or
// bot-only rooms close, the host seat moves to the first remaining human,
// and a live match gets its clock re-armed for the (possibly reassigned)
// current turn.
func (s *Server) afterRosterChange(ctx context.Context, roomID, leftID string) {
	m := s.Store.Get(ctx, roomID)
	if m == nil {
		return
	}
	view := m.PublicView()
	humans := 0
	firstHuman := ""
	for _, p := range view.Participants {
		if !p.IsBot {
			humans++
			if firstHuman == "" {
				firstHuman = p.ID
			}
		}
	}
	if len(view.Participants) == 0 || humans == 0 {
		s.Teardown(roomID, "This room has closed.")
		return
	}
	if room := s.Rooms.Get(roomID); room != nil && room.HostID == leftID {
		s.Rooms.SetHost(roomID, firstHuman)
	}
	s.Store.Save(ctx, roomID)
	s.broadcast(roomID, game.Event{Type: game.EventGameState, Payload: m.PublicView()})
	if view.Started && view.Winner == "" {
		s.afterTurnChange(roomID, m)
	}
}

// afterTurnChange re-arms the clock for the current turn and kicks the bot
// process when a bot holds it. Invoked after every successful mutation so
// the clock never reflects a stale turn.
func (s *Server) afterTurnChange(roomID string, m *game.Match) {
	s.Timers.Reset(roomID)
	cur := m.CurrentParticipant()
	if cur == "" {
		return
	}
	view := m.PublicView()
	for _, pv := range view.Participants {
		if pv.ID == cur && pv.IsBot {
			s.Bots.Schedule(roomID)
			return
		}
	}
}

// resumeIfStalled restores turn-driving for a live match with no armed
// clock. A rehydrated match has neither a countdown nor a scheduled bot
// turn until something kicks it; without this, a restored room whose turn
// belongs to a bot or to a not-yet-returned human would sit dead until
// idle eviction.
func (s *Server) resumeIfStalled(roomID string, m *game.Match) {
	view := m.PublicView()
	if !view.Started || view.Winner != "" || s.Timers.Armed(roomID) {
		return
	}
	s.afterTurnChange(roomID, m)
}

func (s *Server) handleCheckRoomExists(sess *session, msg clientMessage) {
	if msg.RoomID == "" {
		s.sendError(sess, "A room id is required.", false)
		return
	}
	ctx, cancel := opCtx()
	defer cancel()
	roomID := msg.RoomID
	if room := s.Rooms.GetByCode(msg.RoomID); room != nil {
		roomID = room.ID
	}
	m := s.Store.Get(ctx, roomID)
	payload := map[string]interface{}{
		"roomId": roomID,
		"exists": m != nil,
	}
	if m != nil {
		view := m.PublicView()
		payload["started"] = view.Started
		payload["playerCount"] = len(view.Participants)
		if room := s.Rooms.Get(roomID); room != nil {
			payload["maxPlayers"] = room.MaxPlayers
			payload["roomName"] = room.Name
		}
	}
	s.send(sess, game.Event{Type: evRoomExists, Payload: payload})
}

func (s *Server) handleRequestGameState(sess *session, msg clientMessage) {
	roomID := msg.RoomID
	if roomID == "" {
		roomID = s.roomOf(sess)
	}
	if roomID == "" {
		s.sendError(sess, "You are not in a room.", false)
		return
	}
	ctx, cancel := opCtx()
	defer cancel()
	m := s.Store.Get(ctx, roomID)
	if m == nil {
		s.sendError(sess, "Room not found.", true)
		return
	}
	s.send(sess, game.Event{Type: game.EventGameState, Payload: m.PublicView()})
	if hand := m.HandOf(sess.ident.UserID); hand != nil {
		s.send(sess, game.Event{Type: game.EventHandUpdate, Payload: map[string]interface{}{"hand": hand}})
	}
	s.resumeIfStalled(roomID, m)
}
