// Package hub provides a thread-safe WebSocket broadcast hub using the
// channel-based fan-out pattern. Each telemetry topic (joint states,
// stiffness, diagnostics) runs its own hub; the control loop broadcasts
// without ever blocking on a subscriber.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/asterworks/go-aster/internal/log"
)

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	// Topic name, used for logging and by the web layer for routing.
	topic string

	clients map[*Client]bool

	// Inbound messages to broadcast
	broadcast chan Message

	// Register and unregister requests from clients
	register   chan *Client
	unregister chan *Client

	// done stops Run; closed at most once via Close
	done      chan struct{}
	closeOnce sync.Once

	// Mutex for client count (read-only access from outside)
	mu sync.RWMutex

	logger *slog.Logger
}

// New creates a hub for the given topic. The queue depth bounds both the
// broadcast channel and each client's send buffer.
func New(topic string, queue int) *Hub {
	if queue <= 0 {
		queue = 1
	}
	return &Hub{
		topic:      topic,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, queue),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     log.Component("hub").With("topic", topic),
	}
}

// Topic returns the hub's topic name.
func (h *Hub) Topic() string {
	return h.topic
}

// Run executes the hub's main loop until Close is called.
// This should be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client connected", "client", client.id, "total", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client disconnected", "client", client.id, "remaining", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client buffer full: they are too slow, drop them
					// rather than backpressure the control loop.
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("dropped slow client", "client", client.id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Close stops the hub loop and disconnects all clients. Safe to call more
// than once.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Broadcast queues a message for all connected clients. It never blocks:
// when the queue is full the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	default:
		h.logger.Warn("broadcast queue full, dropping message")
	}
}

// BroadcastJSON encodes v and broadcasts it as a JSON message.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(NewJSONMessage(data))
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
