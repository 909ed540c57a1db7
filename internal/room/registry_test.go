package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radixapp/radix/internal/domain"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry(passingJudge(0), testLogger())
	t.Cleanup(func() {
		reg.mu.Lock()
		entries := make([]*Mailbox, 0, len(reg.rooms))
		for _, entry := range reg.rooms {
			entries = append(entries, entry.mailbox)
		}
		reg.mu.Unlock()
		for _, m := range entries {
			stopRoom(t, m)
		}
	})
	return reg
}

func TestRegistry_DuplicateName(t *testing.T) {
	reg := newTestRegistry(t)
	u1, u2 := testUser("U1"), testUser("U2")

	require.NoError(t, reg.CreateRoom(u1, "r", false, nil))
	assert.ErrorIs(t, reg.CreateRoom(u2, "r", false, nil), domain.ErrRoomNameTaken)
}

func TestRegistry_CreateWhileConnected(t *testing.T) {
	reg := newTestRegistry(t)
	u1 := testUser("U1")

	require.NoError(t, reg.CreateRoom(u1, "r", false, nil))
	_, err := reg.Join(u1.ID, "r")
	require.NoError(t, err)

	assert.ErrorIs(t, reg.CreateRoom(u1, "r2", false, nil), domain.ErrAlreadyConnected)
}

func TestRegistry_SingleRoomPerUser(t *testing.T) {
	reg := newTestRegistry(t)
	u1 := testUser("U1")

	require.NoError(t, reg.CreateRoom(u1, "a", false, nil))
	require.NoError(t, reg.CreateRoom(testUser("U2"), "b", false, nil))

	_, err := reg.Join(u1.ID, "a")
	require.NoError(t, err)

	_, err = reg.Join(u1.ID, "b")
	assert.ErrorIs(t, err, domain.ErrAlreadyConnected)

	reg.Leave(u1.ID)
	_, err = reg.Join(u1.ID, "b")
	assert.NoError(t, err)
}

func TestRegistry_JoinUnknownRoom(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.Join(testUser("U1").ID, "nope")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestRegistry_LeaveIsIdempotent(t *testing.T) {
	reg := newTestRegistry(t)
	u1 := testUser("U1")
	reg.Leave(u1.ID)
	reg.Leave(u1.ID)
}

func TestRegistry_CanConnect(t *testing.T) {
	reg := newTestRegistry(t)
	u1, u2 := testUser("U1"), testUser("U2")
	require.NoError(t, reg.CreateRoom(u1, "r", false, nil))

	ok, reason := reg.CanConnect(u2.ID, "r")
	assert.True(t, ok)
	assert.Empty(t, reason)

	ok, reason = reg.CanConnect(u2.ID, "missing")
	assert.False(t, ok)
	assert.Equal(t, "does not exist", reason)

	_, err := reg.Join(u2.ID, "r")
	require.NoError(t, err)
	ok, reason = reg.CanConnect(u2.ID, "r")
	assert.False(t, ok)
	assert.Equal(t, "already connected", reason)
}

func TestRegistry_ListShowsOnlyPublicRooms(t *testing.T) {
	reg := newTestRegistry(t)
	u1, u2 := testUser("U1"), testUser("U2")

	require.NoError(t, reg.CreateRoom(u1, "public-room", true, nil))
	require.NoError(t, reg.CreateRoom(u2, "private-room", false, nil))

	listings := reg.List()
	require.Len(t, listings, 1)
	assert.Equal(t, "public-room", listings[0].Name)
	assert.Equal(t, "U1", listings[0].Owner.Name)
}

func TestRegistry_RoomExitRemovesEntry(t *testing.T) {
	reg := newTestRegistry(t)
	u1, u2 := testUser("U1"), testUser("U2")
	require.NoError(t, reg.CreateRoom(u1, "r", false, nil))

	mailbox, err := reg.Join(u2.ID, "r")
	require.NoError(t, err)
	reg.Leave(u2.ID)

	stopRoom(t, mailbox)

	require.Eventually(t, func() bool {
		_, reason := reg.CanConnect(u2.ID, "r")
		return reason == "does not exist"
	}, time.Second, 10*time.Millisecond)
}
