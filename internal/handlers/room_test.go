// internal/handlers/room_test.go
package handlers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomRegistryCreate(t *testing.T) {
	rr := NewRoomRegistry()
	room := rr.Create("Friday night", 3, "host-1")

	assert.NotEmpty(t, room.ID)
	assert.Equal(t, "Friday night", room.Name)
	assert.Equal(t, 3, room.MaxPlayers)
	assert.Equal(t, "host-1", room.HostID)
	assert.Len(t, room.Code, 4)
	assert.Equal(t, strings.ToUpper(room.Code), room.Code)

	assert.Same(t, room, rr.Get(room.ID))
}

func TestRoomRegistryClampsSeats(t *testing.T) {
	rr := NewRoomRegistry()
	assert.Equal(t, 2, rr.Create("a", 0, "h").MaxPlayers)
	assert.Equal(t, 2, rr.Create("b", 1, "h").MaxPlayers)
	assert.Equal(t, 4, rr.Create("c", 9, "h").MaxPlayers)
}

func TestRoomRegistryCodeLookupIsCaseInsensitive(t *testing.T) {
	rr := NewRoomRegistry()
	room := rr.Create("a", 4, "h")

	assert.Same(t, room, rr.GetByCode(room.Code))
	assert.Same(t, room, rr.GetByCode(strings.ToLower(room.Code)))
	assert.Nil(t, rr.GetByCode("????"))
}

func TestRoomRegistryDeleteFreesCode(t *testing.T) {
	rr := NewRoomRegistry()
	room := rr.Create("a", 4, "h")
	code := room.Code

	rr.Delete(room.ID)
	assert.Nil(t, rr.Get(room.ID))
	assert.Nil(t, rr.GetByCode(code))
}

func TestRoomRegistryEnsure(t *testing.T) {
	rr := NewRoomRegistry()

	// Unknown id: a placeholder appears, for matches rehydrated after a
	// process restart.
	room := rr.Ensure("restored-room")
	require.NotNil(t, room)
	assert.Equal(t, "restored-room", room.ID)
	assert.Equal(t, 4, room.MaxPlayers)
	assert.Len(t, room.Code, 4)

	// Known id: the existing entry is returned untouched.
	assert.Same(t, room, rr.Ensure("restored-room"))
}

func TestRoomRegistrySetHost(t *testing.T) {
	rr := NewRoomRegistry()
	room := rr.Create("a", 4, "h1")

	rr.SetHost(room.ID, "h2")
	assert.Equal(t, "h2", rr.Get(room.ID).HostID)

	rr.SetHost("missing", "h3") // no panic
}
