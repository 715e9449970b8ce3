// Package realtime pushes lead lifecycle events to connected browsers over
// Server-Sent Events, fanned out across API instances through Redis pub/sub.
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"leadflow_backend/platform/logger"
)

// Message is one event delivered to a room.
type Message struct {
	Room    string          `json:"room"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	SentAt  time.Time       `json:"sentAt"`
}

type client struct {
	rooms  []string
	events chan Message
}

// Hub holds the connections of this instance, keyed by room.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*client]struct{}
	buffer int
	log    *logger.Logger
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*client]struct{}),
		buffer: 32,
		log:    log,
	}
}

func (h *Hub) join(rooms ...string) *client {
	c := &client{rooms: rooms, events: make(chan Message, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range rooms {
		members, ok := h.rooms[room]
		if !ok {
			members = make(map[*client]struct{})
			h.rooms[room] = members
		}
		members[c] = struct{}{}
	}
	return c
}

func (h *Hub) leave(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range c.rooms {
		delete(h.rooms[room], c)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	close(c.events)
}

// Deliver hands msg to every local client of its room. Slow clients drop messages.
func (h *Hub) Deliver(msg Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.rooms[msg.Room] {
		select {
		case c.events <- msg:
			delivered++
		default:
			h.log.Warn("realtime buffer full, dropping event", "room", msg.Room, "event", msg.Event)
		}
	}
	return delivered
}

// Connections counts the local clients in room.
func (h *Hub) Connections(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
