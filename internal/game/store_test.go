// internal/game/store_test.go
package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReplica is an in-memory stand-in for the Redis replica, keyed the same
// way: snapshots by room id, a reverse index by participant id.
type fakeReplica struct {
	mu    sync.Mutex
	snaps map[string][]byte
	index map[string]string
	saves int
}

func newFakeReplica() *fakeReplica {
	return &fakeReplica{
		snaps: make(map[string][]byte),
		index: make(map[string]string),
	}
}

func (f *fakeReplica) SaveMatch(ctx context.Context, snap *Snapshot) error {
	data, err := snap.Encode()
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps[snap.RoomID] = data
	for _, pid := range snap.ParticipantIDs() {
		f.index[pid] = snap.RoomID
	}
	f.saves++
	return nil
}

func (f *fakeReplica) LoadMatch(ctx context.Context, roomID string) (*Snapshot, error) {
	f.mu.Lock()
	data, ok := f.snaps[roomID]
	f.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return DecodeSnapshot(data)
}

func (f *fakeReplica) DeleteMatch(ctx context.Context, roomID string, participantIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.snaps, roomID)
	for _, pid := range participantIDs {
		delete(f.index, pid)
	}
	return nil
}

func (f *fakeReplica) FindRoomByParticipant(ctx context.Context, participantID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.index[participantID], nil
}

func (f *fakeReplica) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func TestStoreCreateIsIdempotent(t *testing.T) {
	store := NewStore(newFakeReplica(), 0, testLogger())
	ctx := context.Background()

	m1 := store.Create(ctx, "room-1")
	m1.AddParticipant("p1", "Player 1", false)
	m2 := store.Create(ctx, "room-1")

	assert.Same(t, m1, m2, "a second create must not overwrite the live match")
	assert.True(t, m2.HasParticipant("p1"))
}

func TestStoreWritesThroughToReplica(t *testing.T) {
	replica := newFakeReplica()
	store := NewStore(replica, 0, testLogger())
	ctx := context.Background()

	m := store.Create(ctx, "room-1")
	m.AddParticipant("p1", "Player 1", false)
	m.AddParticipant("p2", "Player 2", false)
	store.Save(ctx, "room-1")

	snap, err := replica.LoadMatch(ctx, "room-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.ElementsMatch(t, []string{"p1", "p2"}, snap.ParticipantIDs())
	assert.Equal(t, "room-1", store.FindRoomByParticipant(ctx, "p1"))
}

func TestStoreRehydratesFromReplica(t *testing.T) {
	replica := newFakeReplica()
	ctx := context.Background()

	first := NewStore(replica, 0, testLogger())
	m := first.Create(ctx, "room-1")
	m.AddParticipant("p1", "Player 1", false)
	m.AddParticipant("p2", "Player 2", false)
	require.True(t, m.Start())
	first.Save(ctx, "room-1")
	wantView := m.PublicView()
	wantHand := m.HandOf("p1")

	// A fresh store simulates a process restart: memory is empty, the
	// replica is not.
	bound := 0
	second := NewStore(replica, 0, testLogger())
	second.Bind = func(*Match) { bound++ }

	restored := second.Get(ctx, "room-1")
	require.NotNil(t, restored)
	assert.Equal(t, 1, bound, "rehydrated matches must be rebound to the transport")

	gotView := restored.PublicView()
	assert.Equal(t, wantView.Current, gotView.Current)
	assert.Equal(t, wantView.DeckSize, gotView.DeckSize)
	assert.Equal(t, wantView.ActiveColor, gotView.ActiveColor)
	assert.Equal(t, wantView.DiscardTop.ID, gotView.DiscardTop.ID)
	assert.Equal(t, wantHand, restored.HandOf("p1"))

	// Humans come back disconnected until they run the reconnection flow.
	for _, p := range gotView.Participants {
		assert.False(t, p.Connected)
	}
}

func TestStoreGetMissingRoom(t *testing.T) {
	store := NewStore(newFakeReplica(), 0, testLogger())
	assert.Nil(t, store.Get(context.Background(), "nope"))
}

func TestStoreDeleteRemovesReplicaRecords(t *testing.T) {
	replica := newFakeReplica()
	store := NewStore(replica, 0, testLogger())
	ctx := context.Background()

	m := store.Create(ctx, "room-1")
	m.AddParticipant("p1", "Player 1", false)
	store.Save(ctx, "room-1")

	require.True(t, store.Delete(ctx, "room-1"))
	assert.Nil(t, store.Get(ctx, "room-1"))
	assert.Empty(t, store.FindRoomByParticipant(ctx, "p1"))
	assert.False(t, store.Delete(ctx, "room-1"), "second delete finds nothing")
}

func TestStoreIdleEviction(t *testing.T) {
	replica := newFakeReplica()
	store := NewStore(replica, 25*time.Millisecond, testLogger())

	var mu sync.Mutex
	var evicted []string
	store.OnEvict = func(roomID string) {
		mu.Lock()
		evicted = append(evicted, roomID)
		mu.Unlock()
	}

	ctx := context.Background()
	store.Create(ctx, "room-1")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(evicted) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "room-1", evicted[0])
	assert.Nil(t, store.Get(ctx, "room-1"))
}

func TestStoreActivityDefersEviction(t *testing.T) {
	store := NewStore(newFakeReplica(), 60*time.Millisecond, testLogger())
	store.OnEvict = func(string) { t.Error("room evicted despite activity") }

	ctx := context.Background()
	store.Create(ctx, "room-1")
	for i := 0; i < 5; i++ {
		time.Sleep(25 * time.Millisecond)
		require.NotNil(t, store.Get(ctx, "room-1"), "touching the room re-arms the window")
	}
	store.Shutdown()
}

func TestStoreSaveCountsEveryMutation(t *testing.T) {
	replica := newFakeReplica()
	store := NewStore(replica, 0, testLogger())
	ctx := context.Background()

	store.Create(ctx, "room-1")
	before := replica.saveCount()
	store.Save(ctx, "room-1")
	store.Save(ctx, "room-1")
	assert.Equal(t, before+2, replica.saveCount())
}
