// Package realtime pushes chat messages and notifications to WebSocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"sunnyapi/internal/events"
)

const sendBuffer = 32

// Client is one connection's outbound queue.
type Client struct {
	UserID string
	send   chan []byte
}

func NewClient(userID string) *Client {
	return &Client{UserID: userID, send: make(chan []byte, sendBuffer)}
}

// Outbound is drained by the connection's write pump. It is closed when the client leaves its room.
func (c *Client) Outbound() <-chan []byte { return c.send }

// trySend enqueues without blocking and reports whether the frame was accepted.
func (c *Client) trySend(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Hub keeps the clients of every room on this instance.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	log   *zap.Logger
}

var (
	_ events.Sink        = (*Hub)(nil)
	_ events.Broadcaster = (*Hub)(nil)
)

func NewHub(log *zap.Logger) *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{}), log: log.Named("hub")}
}

func (h *Hub) Join(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.rooms[room]
	if !ok {
		clients = make(map[*Client]struct{})
		h.rooms[room] = clients
	}
	clients[c] = struct{}{}
}

// Leave removes c from room and closes its outbound queue.
func (h *Hub) Leave(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.rooms[room]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.rooms, room)
	}
	close(c.send)
}

// Size returns the number of clients in room.
func (h *Hub) Size(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Deliver queues payload for every client in room. Frames for clients with a full queue are dropped.
func (h *Hub) Deliver(room string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		if !c.trySend(payload) {
			h.log.Warn("ws_frame_dropped", zap.String("room", room), zap.String("user_id", c.UserID))
		}
	}
}

// Broadcast delivers ev to local clients only. Multi-instance deployments use the NATS broadcaster instead.
func (h *Hub) Broadcast(_ context.Context, room string, ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	h.Deliver(room, payload)
	return nil
}
