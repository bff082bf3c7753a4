package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendQueueSize  = 64
)

// Client is one authenticated websocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string

	// guarded by hub.mu
	rooms  map[string]struct{}
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		userID: userID,
		rooms:  make(map[string]struct{}),
	}
}

// UserID returns the authenticated user behind the connection.
func (c *Client) UserID() string { return c.userID }

// readPump dispatches inbound frames until the connection fails.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("Realtime read failed", "user_id", c.userID, "error", err)
			}
			return
		}
		c.handle(ctx, raw)
	}
}

func (c *Client) handle(ctx context.Context, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Event == "" {
		c.sendError("", "malformed message")
		return
	}

	switch msg.Event {
	case EventJoinFamilyGroup:
		groupID := groupIDFrom(msg.Data)
		if groupID == "" {
			c.sendError(msg.Event, "familyGroupId is required")
			return
		}
		if err := c.hub.Join(ctx, c, groupID); err != nil {
			if !errors.Is(err, ErrNotMember) {
				c.hub.logger.Error("Room join failed", "user_id", c.userID, "group_id", groupID, "error", err)
			}
			c.sendError(msg.Event, ErrNotMember.Error())
			return
		}
		c.enqueue(EventJoinedFamilyGroup, map[string]string{"room": RoomName(groupID), "familyGroupId": groupID})

	case EventLeaveFamilyGroup:
		if groupID := groupIDFrom(msg.Data); groupID != "" {
			c.hub.Leave(c, groupID)
		}

	default:
		out, ok := relays[msg.Event]
		if !ok {
			c.sendError(msg.Event, "unknown event")
			return
		}
		groupID := groupIDFrom(msg.Data)
		if groupID == "" || !c.hub.InRoom(c, groupID) {
			c.sendError(msg.Event, "join the family group room first")
			return
		}
		c.hub.Broadcast(groupID, out, msg.Data)
	}
}

func (c *Client) sendError(event, message string) {
	c.enqueue(EventError, map[string]string{"event": event, "message": message})
}

// enqueue sends a frame to this connection only.
func (c *Client) enqueue(event string, data any) {
	payload, err := encode(event, data)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
