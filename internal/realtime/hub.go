// Package realtime pushes transaction status events to connected clients.
// The hub is a presence cache: purely in-memory, lost on restart, clients
// re-register on reconnect.
package realtime

import (
	"log"
	"sync"
)

// EventTransactionUpdate carries pipeline stage transitions to the owner.
const EventTransactionUpdate = "transaction:update"

// EventAdminAlert is broadcast when a settlement needs manual review.
const EventAdminAlert = "admin:alert"

// Conn is the minimal connection surface the hub writes to. Satisfied by
// *websocket.Conn.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Envelope is the wire shape of every emitted event.
type Envelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// Broadcaster is the emit-side interface consumed by the pipeline and the
// notification dispatcher.
type Broadcaster interface {
	EmitToUser(userID uint, event string, payload interface{})
	EmitToRoom(room, event string, payload interface{})
	Broadcast(event string, payload interface{})
}

// Hub maps user ids to their live connections. A user may hold several open
// sessions at once; events go to all of them.
type Hub struct {
	mu    sync.RWMutex
	users map[uint]map[Conn]struct{}
	rooms map[string]map[Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		users: make(map[uint]map[Conn]struct{}),
		rooms: make(map[string]map[Conn]struct{}),
	}
}

// Register associates a connection with a user.
func (h *Hub) Register(userID uint, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users[userID] == nil {
		h.users[userID] = make(map[Conn]struct{})
	}
	h.users[userID][conn] = struct{}{}
}

// Unregister removes a connection everywhere it appears. Called on disconnect.
func (h *Hub) Unregister(userID uint, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.users[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.users, userID)
		}
	}
	for room, conns := range h.rooms {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Join adds a connection to a named room.
func (h *Hub) Join(room string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[Conn]struct{})
	}
	h.rooms[room][conn] = struct{}{}
}

// ConnectionCount reports the live connections for a user.
func (h *Hub) ConnectionCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// EmitToUser sends an event to every connection of one user.
func (h *Hub) EmitToUser(userID uint, event string, payload interface{}) {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.users[userID]))
	for conn := range h.users[userID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()
	h.write(conns, event, payload)
}

// EmitToRoom sends an event to every connection in a room.
func (h *Hub) EmitToRoom(room, event string, payload interface{}) {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.rooms[room]))
	for conn := range h.rooms[room] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()
	h.write(conns, event, payload)
}

// Broadcast sends an event to every live connection.
func (h *Hub) Broadcast(event string, payload interface{}) {
	h.mu.RLock()
	seen := make(map[Conn]struct{})
	for _, conns := range h.users {
		for conn := range conns {
			seen[conn] = struct{}{}
		}
	}
	conns := make([]Conn, 0, len(seen))
	for conn := range seen {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()
	h.write(conns, event, payload)
}

func (h *Hub) write(conns []Conn, event string, payload interface{}) {
	env := Envelope{Event: event, Payload: payload}
	for _, conn := range conns {
		if err := conn.WriteJSON(env); err != nil {
			log.Printf("realtime write failed: %v", err)
		}
	}
}
