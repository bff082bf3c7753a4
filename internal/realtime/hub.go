package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mmynk/familyfunds/internal/metrics"
)

// ErrNotMember is returned when a connection asks to join a room for a group
// its user is not an active member of.
var ErrNotMember = errors.New("not an active member of this family group")

// MembershipChecker decides whether a user may join a family room.
type MembershipChecker interface {
	IsActiveMember(ctx context.Context, groupID, userID string) (bool, error)
}

// Hub owns the room table for this process.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{} // group ID -> clients
	clients map[*Client]struct{}

	members MembershipChecker
	logger  *slog.Logger
}

// NewHub creates a Hub that authorizes room joins with members.
func NewHub(members MembershipChecker, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		members: members,
		logger:  logger,
	}
}

// SetMembershipChecker replaces the checker. The server wires the hub before
// the family service exists, then sets it here.
func (h *Hub) SetMembershipChecker(members MembershipChecker) {
	h.mu.Lock()
	h.members = members
	h.mu.Unlock()
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.RealtimeConnections.Inc()
}

// unregister removes c from every room and closes its send queue.
// Safe to call more than once.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	for groupID := range c.rooms {
		h.removeFromRoom(c, groupID)
	}
	delete(h.clients, c)
	close(c.send)
	metrics.RealtimeConnections.Dec()
}

// Join adds c to the room for groupID after checking membership.
func (h *Hub) Join(ctx context.Context, c *Client, groupID string) error {
	h.mu.RLock()
	members := h.members
	h.mu.RUnlock()

	if members == nil {
		return ErrNotMember
	}
	ok, err := members.IsActiveMember(ctx, groupID, c.userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotMember
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return nil
	}
	room, exists := h.rooms[groupID]
	if !exists {
		room = make(map[*Client]struct{})
		h.rooms[groupID] = room
	}
	room[c] = struct{}{}
	c.rooms[groupID] = struct{}{}
	return nil
}

// Leave removes c from the room for groupID.
func (h *Hub) Leave(c *Client, groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(c, groupID)
}

// removeFromRoom requires h.mu held for writing.
func (h *Hub) removeFromRoom(c *Client, groupID string) {
	delete(c.rooms, groupID)
	room, ok := h.rooms[groupID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, groupID)
	}
}

// InRoom reports whether c has joined the room for groupID.
func (h *Hub) InRoom(c *Client, groupID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[groupID]
	return ok
}

// RoomSize returns how many connections are in the room for groupID.
func (h *Hub) RoomSize(groupID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[groupID])
}

// CloseRoom removes every connection from the room for groupID.
// The connections stay open.
func (h *Hub) CloseRoom(groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[groupID] {
		delete(c.rooms, groupID)
	}
	delete(h.rooms, groupID)
}

// Evict removes every connection belonging to userID from the room for
// groupID. Used when a member is removed from the group.
func (h *Hub) Evict(groupID, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[groupID] {
		if c.userID == userID {
			h.removeFromRoom(c, groupID)
		}
	}
}

// Broadcast sends event with data to every connection in the group's room.
func (h *Hub) Broadcast(groupID, event string, data any) {
	payload, err := encode(event, data)
	if err != nil {
		h.logger.Error("Broadcast encode failed", "event", event, "group_id", groupID, "error", err)
		return
	}
	h.publish(groupID, event, payload)
}

// publish queues payload on each client in the room without blocking.
// Clients whose queue is full are disconnected.
func (h *Hub) publish(groupID, event string, payload []byte) {
	var slow []*Client

	h.mu.RLock()
	for c := range h.rooms[groupID] {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	metrics.RealtimeBroadcasts.WithLabelValues(event).Inc()

	for _, c := range slow {
		h.logger.Warn("Dropping slow realtime client", "user_id", c.userID, "group_id", groupID)
		metrics.RealtimeDropped.Inc()
		h.unregister(c)
	}
}
