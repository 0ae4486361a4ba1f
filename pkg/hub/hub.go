// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern. Each bot session
// owns one hub; browsers subscribe to it for status and transcript events.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"

	logx "github.com/teslashibe/go-voicebot/internal/log"
)

// Hub maintains the set of active clients and broadcasts session events
// to them.
type Hub struct {
	// Session ID, for logging.
	session string

	logger *slog.Logger

	// Registered clients.
	clients map[*Client]bool

	// Inbound events to broadcast.
	broadcast chan []byte

	// Register requests from clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when the session ends; stops the run loop.
	done chan struct{}

	closeOnce sync.Once

	// Mutex for client count (read-only access from outside).
	mu sync.RWMutex
}

// New creates a hub for the given session.
func New(session string) *Hub {
	return &Hub{
		session:    session,
		logger:     logx.Component("hub"),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop.
// This should be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", "session", h.session, "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", "session", h.session, "clients", count)

		case event := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- event:
				default:
					// Client's buffer is full, they are too slow.
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("dropped slow client", "session", h.session)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Close stops the run loop and disconnects all clients. Safe to call
// more than once.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Broadcast sends a pre-encoded event to all connected clients.
func (h *Hub) Broadcast(event []byte) {
	select {
	case h.broadcast <- event:
	case <-h.done:
	default:
		h.logger.Warn("broadcast channel full, dropping event", "session", h.session)
	}
}

// BroadcastJSON encodes and broadcasts an event.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// Session returns the session ID this hub serves.
func (h *Hub) Session() string { return h.session }

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
