// internal/handlers/room.go
package handlers

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Room is the lobby-level metadata for a room: consumed by the game core,
// owned here.
type Room struct {
	ID         string    `json:"roomId"`
	Name       string    `json:"roomName"`
	Code       string    `json:"roomCode"`
	MaxPlayers int       `json:"maxPlayers"`
	HostID     string    `json:"hostId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// RoomRegistry keeps room metadata and join codes.
type RoomRegistry struct {
	mu     sync.Mutex
	rooms  map[string]*Room
	byCode map[string]*Room
}

// NewRoomRegistry builds an empty registry.
func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms:  make(map[string]*Room),
		byCode: make(map[string]*Room),
	}
}

// Create registers a new room with a fresh id and join code. maxPlayers is
// clamped to the 2-4 seat range.
func (rr *RoomRegistry) Create(name string, maxPlayers int, hostID string) *Room {
	if maxPlayers < 2 {
		maxPlayers = 2
	}
	if maxPlayers > 4 {
		maxPlayers = 4
	}
	if name == "" {
		name = "Game room"
	}
	rr.mu.Lock()
	defer rr.mu.Unlock()
	room := &Room{
		ID:         uuid.NewString(),
		Name:       name,
		Code:       rr.newCodeLocked(),
		MaxPlayers: maxPlayers,
		HostID:     hostID,
		CreatedAt:  time.Now(),
	}
	rr.rooms[room.ID] = room
	rr.byCode[room.Code] = room
	return room
}

// Get resolves a room by id, nil when absent.
func (rr *RoomRegistry) Get(roomID string) *Room {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return rr.rooms[roomID]
}

// GetByCode resolves a room by join code, case-insensitively.
func (rr *RoomRegistry) GetByCode(code string) *Room {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return rr.byCode[strings.ToUpper(code)]
}

// Ensure returns the room, registering a placeholder when a match was
// rehydrated from the replica after a restart and the metadata is gone.
func (rr *RoomRegistry) Ensure(roomID string) *Room {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if room, ok := rr.rooms[roomID]; ok {
		return room
	}
	room := &Room{
		ID:         roomID,
		Name:       "Restored room",
		Code:       rr.newCodeLocked(),
		MaxPlayers: 4,
		CreatedAt:  time.Now(),
	}
	rr.rooms[roomID] = room
	rr.byCode[room.Code] = room
	return room
}

// SetHost reassigns the room host, for when the host leaves.
func (rr *RoomRegistry) SetHost(roomID, hostID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if room, ok := rr.rooms[roomID]; ok {
		room.HostID = hostID
	}
}

// Delete removes a room and frees its code.
func (rr *RoomRegistry) Delete(roomID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if room, ok := rr.rooms[roomID]; ok {
		delete(rr.byCode, room.Code)
		delete(rr.rooms, roomID)
	}
}

// newCodeLocked generates an unused 4-letter join code. Assumes the lock is
// held.
func (rr *RoomRegistry) newCodeLocked() string {
	for {
		code := make([]byte, 4)
		for i := range code {
			code[i] = 'A' + byte(rand.Intn(26))
		}
		if _, used := rr.byCode[string(code)]; !used {
			return string(code)
		}
	}
}
