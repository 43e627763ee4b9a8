// Package chat is the realtime layer: a room-based websocket hub carrying
// direct messages, team chat, game chat, and server-pushed notifications.
// Delivery within a room is fan-out, at-most-once; a slow client's backlog is
// dropped rather than blocking the room.
package chat

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Room name builders. A DM room is keyed by the sorted user id pair so both
// parties resolve the same room.

func DMRoom(userID1, userID2 int) string {
	lo, hi := userID1, userID2
	if lo > hi {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("dm:%d-%d", lo, hi)
}

func TeamRoom(teamID int) string { return fmt.Sprintf("team:%d", teamID) }

func GameRoom(gameID int) string { return fmt.Sprintf("game:%d", gameID) }

// UserRoom is the private notification channel of a single user.
func UserRoom(userID int) string { return fmt.Sprintf("user:%d", userID) }

// Envelope is the wire format for every server→client message.
type Envelope struct {
	Type    string      `json:"type"`
	Room    string      `json:"room,omitempty"`
	Payload interface{} `json:"payload"`
}

type Hub struct {
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	mu         sync.RWMutex
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.room]; !ok {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.logger.Debug("client joined room",
				slog.String("room", client.room), slog.Int("user_id", client.userID))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.room]; ok {
				if _, present := clients[client]; present {
					client.closeSend()
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.rooms, client.room)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToRoom fans a message out to every client currently in the room.
// No recipients is not an error: a disconnected user discovers the change by
// re-fetching state.
func (h *Hub) BroadcastToRoom(room string, messageType string, payload interface{}) {
	message, err := json.Marshal(Envelope{Type: messageType, Room: room, Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal room message",
			slog.String("room", room), slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		client.trySend(message)
	}
}
