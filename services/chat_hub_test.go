package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvEvent(t *testing.T, ch <-chan ChatMessage) ChatMessage {
	t.Helper()
	select {
	case got := <-ch:
		return got
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for chat event")
		return ChatMessage{}
	}
}

func TestChatJoinSendHistory(t *testing.T) {
	hub := NewChatHub(nil)

	require.NoError(t, hub.Join(GlobalRoom, "u1", "alice"))
	require.NoError(t, hub.Join(GlobalRoom, "u2", "bob"))

	msg, err := hub.Send(GlobalRoom, "u1", "alice", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Body)
	assert.Equal(t, EventMessage, msg.Type)

	history, err := hub.History(GlobalRoom, "u2")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "u1", history[0].SenderID)
	assert.Equal(t, "alice", history[0].SenderName)

	// non-members cannot read the backlog
	_, err = hub.History(GlobalRoom, "outsider")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestChatSendRequiresMembership(t *testing.T) {
	hub := NewChatHub(nil)

	_, err := hub.Send(GlobalRoom, "stranger", "x", "hi")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = hub.Send("game-123", "u1", "x", "hi")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, hub.Join(GlobalRoom, "u1", "alice"))
	_, err = hub.Send(GlobalRoom, "u1", "x", "   ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestChatHistoryCap(t *testing.T) {
	hub := NewChatHub(nil)
	require.NoError(t, hub.Join(GlobalRoom, "u1", "alice"))

	for i := 0; i < 101; i++ {
		_, err := hub.Send(GlobalRoom, "u1", "alice", fmt.Sprintf("msg-%d", i))
		require.NoError(t, err)
	}

	history, err := hub.History(GlobalRoom, "u1")
	require.NoError(t, err)
	require.Len(t, history, 100)
	// oldest message dropped, order preserved
	assert.Equal(t, "msg-1", history[0].Body)
	assert.Equal(t, "msg-100", history[99].Body)
}

func TestChatJoinReplaysHistoryToJoiner(t *testing.T) {
	hub := NewChatHub(nil)
	require.NoError(t, hub.Join(GlobalRoom, "u1", "alice"))
	for i := 0; i < 3; i++ {
		_, err := hub.Send(GlobalRoom, "u1", "alice", fmt.Sprintf("old-%d", i))
		require.NoError(t, err)
	}

	ch, cancel := hub.Subscribe("u2")
	defer cancel()
	require.NoError(t, hub.Join(GlobalRoom, "u2", "bob"))

	// backlog arrives first, oldest first, then the presence update
	for i := 0; i < 3; i++ {
		got := recvEvent(t, ch)
		assert.Equal(t, EventMessage, got.Type)
		assert.Equal(t, fmt.Sprintf("old-%d", i), got.Body)
	}
	got := recvEvent(t, ch)
	assert.Equal(t, EventPresence, got.Type)
	assert.Equal(t, 2, got.Count)
}

func TestChatJoinNotifiesExistingMembers(t *testing.T) {
	hub := NewChatHub(nil)
	require.NoError(t, hub.Join(GlobalRoom, "u1", "alice"))

	ch, cancel := hub.Subscribe("u1")
	defer cancel()

	require.NoError(t, hub.Join(GlobalRoom, "u2", "bob"))

	got := recvEvent(t, ch)
	assert.Equal(t, EventSystem, got.Type)
	assert.Equal(t, "bob joined", got.Body)

	got = recvEvent(t, ch)
	assert.Equal(t, EventPresence, got.Type)
	assert.Equal(t, 2, got.Count)

	// the system notice is broadcast-only
	history, err := hub.History(GlobalRoom, "u1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestChatLeaveBroadcastsPresence(t *testing.T) {
	hub := NewChatHub(nil)
	require.NoError(t, hub.Join(GlobalRoom, "u1", "alice"))
	require.NoError(t, hub.Join(GlobalRoom, "u2", "bob"))

	ch, cancel := hub.Subscribe("u1")
	defer cancel()

	require.NoError(t, hub.Leave(GlobalRoom, "u2"))

	got := recvEvent(t, ch)
	assert.Equal(t, EventPresence, got.Type)
	assert.Equal(t, 1, got.Count)
}

func TestChatStreamDeliversToMembersIncludingSender(t *testing.T) {
	hub := NewChatHub(nil)
	require.NoError(t, hub.Join(GlobalRoom, "u1", "alice"))
	require.NoError(t, hub.Join(GlobalRoom, "u2", "bob"))

	ch1, cancel1 := hub.Subscribe("u1")
	defer cancel1()
	ch2, cancel2 := hub.Subscribe("u2")
	defer cancel2()

	_, err := hub.Send(GlobalRoom, "u1", "alice", "ping")
	require.NoError(t, err)

	for _, ch := range []<-chan ChatMessage{ch1, ch2} {
		got := recvEvent(t, ch)
		assert.Equal(t, "ping", got.Body)
	}
}

func TestChatStreamSkipsNonMembers(t *testing.T) {
	hub := NewChatHub(nil)
	require.NoError(t, hub.Join(GlobalRoom, "u1", "alice"))

	ch, cancel := hub.Subscribe("outsider")
	defer cancel()

	_, err := hub.Send(GlobalRoom, "u1", "alice", "secret")
	require.NoError(t, err)

	select {
	case <-ch:
		t.Fatal("non-member received a room message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPrivateRoomLifecycle(t *testing.T) {
	hub := NewChatHub(nil)

	room := PrivateRoom("u2", "u1")
	assert.Equal(t, PrivateRoom("u1", "u2"), room) // order-independent

	require.NoError(t, hub.Join(room, "u1", "alice"))
	require.NoError(t, hub.Join(room, "u2", "bob"))
	assert.Equal(t, 2, hub.Members(room))

	_, err := hub.Send(room, "u1", "alice", "psst")
	require.NoError(t, err)

	require.NoError(t, hub.Leave(room, "u1"))
	assert.Equal(t, 1, hub.Members(room))

	// last member out deletes the room and its history
	require.NoError(t, hub.Leave(room, "u2"))
	_, err = hub.History(room, "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPrivateRoomRejectsOutsiders(t *testing.T) {
	hub := NewChatHub(nil)
	room := PrivateRoom("alice-id", "bob-id")
	require.NoError(t, hub.Join(room, "alice-id", "alice"))
	require.NoError(t, hub.Join(room, "bob-id", "bob"))
	_, err := hub.Send(room, "alice-id", "alice", "psst")
	require.NoError(t, err)

	// not one of the pair, so no join and no backlog
	assert.ErrorIs(t, hub.Join(room, "mallory-id", "mallory"), ErrForbidden)
	_, err = hub.History(room, "mallory-id")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, 2, hub.Members(room))
}

func TestGlobalRoomSurvivesEmpty(t *testing.T) {
	hub := NewChatHub(nil)
	require.NoError(t, hub.Join(GlobalRoom, "u1", "alice"))
	_, err := hub.Send(GlobalRoom, "u1", "alice", "hello")
	require.NoError(t, err)
	require.NoError(t, hub.Leave(GlobalRoom, "u1"))

	// room and backlog are still there for the next joiner
	require.NoError(t, hub.Join(GlobalRoom, "u2", "bob"))
	history, err := hub.History(GlobalRoom, "u2")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestGameRoomHistorySurvivesEmpty(t *testing.T) {
	hub := NewChatHub(nil)
	room := GameRoom("m1")
	require.NoError(t, hub.Join(room, "u1", "alice"))
	_, err := hub.Send(room, "u1", "alice", "gg soon")
	require.NoError(t, err)

	// briefly empty, e.g. a reconnecting player mid-match
	require.NoError(t, hub.Leave(room, "u1"))

	require.NoError(t, hub.Join(room, "u1", "alice"))
	history, err := hub.History(room, "u1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "gg soon", history[0].Body)
}

func TestChatJoinRefcount(t *testing.T) {
	hub := NewChatHub(nil)
	room := GameRoom("m1")

	// two tabs, one user
	require.NoError(t, hub.Join(room, "u1", "alice"))
	require.NoError(t, hub.Join(room, "u1", "alice"))
	assert.Equal(t, 1, hub.Members(room))

	require.NoError(t, hub.Leave(room, "u1"))
	assert.Equal(t, 1, hub.Members(room)) // still one tab open

	require.NoError(t, hub.Leave(room, "u1"))
	assert.Equal(t, 0, hub.Members(room))

	// leaving again is an error
	err := hub.Leave(room, "u1")
	assert.Error(t, err)
}

func TestChatRoomNameValidation(t *testing.T) {
	hub := NewChatHub(nil)
	assert.ErrorIs(t, hub.Join("lobby", "u1", "alice"), ErrValidation)
	assert.NoError(t, hub.Join(GameRoom("abc"), "u1", "alice"))
	assert.NoError(t, hub.Join(PrivateRoom("a", "b"), "u1", "alice"))
}
