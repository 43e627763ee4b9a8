package chat

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Message types on the wire.
const (
	TypeChatMessage  = "CHAT_MESSAGE"
	TypeNotification = "NOTIFICATION"
)

// inboundMessage is what clients are allowed to send; everything else on the
// envelope is filled in server-side.
type inboundMessage struct {
	Message string `json:"message"`
}

// ChatMessage is the payload relayed to a chat room when a member posts.
type ChatMessage struct {
	From     int       `json:"from"`
	Username string    `json:"username"`
	Message  string    `json:"message"`
	SentAt   time.Time `json:"sent_at"`
}

type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	room     string
	userID   int
	username string
	canPost  bool
	closed   bool
	mu       sync.Mutex
}

// NewClient wires a freshly upgraded connection into a room. canPost is false
// for notification rooms, which are server-push only.
func NewClient(hub *Hub, conn *websocket.Conn, room string, userID int, username string, canPost bool) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		room:     room,
		userID:   userID,
		username: username,
		canPost:  canPost,
	}
}

// Start registers the client and runs both pumps. It returns immediately; the
// pumps own the connection until it closes.
func (c *Client) Start() {
	c.hub.register <- c
	go c.writePump()
	go c.readPump()
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.send)
		c.closed = true
	}
}

func (c *Client) trySend(message []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- message:
	default:
		// Slow consumer: drop rather than stall the room.
	}
}

// readPump relays inbound messages to the client's room. Messages that do not
// parse, and any message on a read-only room, are dropped without closing the
// connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket closed unexpectedly",
					slog.String("room", c.room), slog.Any("error", err))
			}
			break
		}
		if !c.canPost {
			continue
		}

		var inbound inboundMessage
		if err := json.Unmarshal(raw, &inbound); err != nil || inbound.Message == "" {
			continue
		}
		c.hub.BroadcastToRoom(c.room, TypeChatMessage, ChatMessage{
			From:     c.userID,
			Username: c.username,
			Message:  inbound.Message,
			SentAt:   time.Now().UTC(),
		})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
