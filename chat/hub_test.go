package chat

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomNames(t *testing.T) {
	assert.Equal(t, "dm:3-7", DMRoom(7, 3))
	assert.Equal(t, "dm:3-7", DMRoom(3, 7))
	assert.Equal(t, "team:12", TeamRoom(12))
	assert.Equal(t, "game:9", GameRoom(9))
	assert.Equal(t, "user:5", UserRoom(5))
}

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func register(t *testing.T, hub *Hub, room string, userID int) *Client {
	t.Helper()
	client := NewClient(hub, nil, room, userID, "tester", true)
	select {
	case hub.register <- client:
	case <-time.After(time.Second):
		t.Fatal("hub did not accept registration")
	}
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return hub.rooms[room][client]
	}, time.Second, time.Millisecond)
	return client
}

func TestBroadcastToRoomReachesOnlyThatRoom(t *testing.T) {
	hub := newTestHub()
	go hub.Run()

	inRoom := register(t, hub, TeamRoom(1), 10)
	otherRoom := register(t, hub, TeamRoom(2), 11)

	hub.BroadcastToRoom(TeamRoom(1), TypeNotification, map[string]string{"hello": "there"})

	select {
	case raw := <-inRoom.send:
		var envelope Envelope
		require.NoError(t, json.Unmarshal(raw, &envelope))
		assert.Equal(t, TypeNotification, envelope.Type)
		assert.Equal(t, TeamRoom(1), envelope.Room)
	case <-time.After(time.Second):
		t.Fatal("expected a message in the target room")
	}

	select {
	case <-otherRoom.send:
		t.Fatal("message leaked into another room")
	default:
	}
}

func TestBroadcastToEmptyRoomIsNoOp(t *testing.T) {
	hub := newTestHub()
	go hub.Run()

	hub.BroadcastToRoom(GameRoom(99), TypeChatMessage, ChatMessage{Message: "anyone?"})
}

func TestUnregisterClosesSendAndDropsRoom(t *testing.T) {
	hub := newTestHub()
	go hub.Run()

	client := register(t, hub, TeamRoom(1), 10)
	hub.unregister <- client

	select {
	case _, open := <-client.send:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed on unregister")
	}

	// A broadcast after the last client left must not panic or deliver.
	hub.BroadcastToRoom(TeamRoom(1), TypeChatMessage, ChatMessage{Message: "late"})
}

func TestSlowClientDoesNotBlockBroadcast(t *testing.T) {
	hub := newTestHub()
	go hub.Run()

	client := register(t, hub, TeamRoom(1), 10)
	for i := 0; i < cap(client.send)+10; i++ {
		hub.BroadcastToRoom(TeamRoom(1), TypeChatMessage, ChatMessage{Message: "flood"})
	}
	assert.Equal(t, cap(client.send), len(client.send))
}
