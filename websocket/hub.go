// Package websocket implements a supplemental, non-core dashboard channel:
// clients connect to /ws/queue and receive a full QueueState snapshot
// every time the scheduler's state changes. This is separate from the
// per-download progress stream on /progress/{id}, which is Server-Sent
// Events, not a websocket.
package websocket

import (
	"log"
	"sync"
	"time"

	"mediapipe/types"
)

// Hub manages the set of connected dashboard clients and fans out queue
// snapshots to all of them.
type Hub interface {
	Run()
	Broadcast(state types.QueueState)
	RegisterClient(client *Client)
	UnregisterClient(client *Client)
}

type hub struct {
	clients map[*Client]bool

	broadcast  chan types.QueueBroadcast
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex
}

// NewHub creates a new dashboard hub.
func NewHub() Hub {
	return &hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan types.QueueBroadcast, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's main event loop. Intended to run in its own goroutine
// for the lifetime of the process.
func (h *hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("websocket: dashboard client connected (%d total)", h.clientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("websocket: dashboard client disconnected (%d total)", h.clientCount())

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast pushes a queue-state snapshot to every connected client.
// Non-blocking: a full broadcast channel drops the update, since the next
// scheduler mutation will emit a fresher one shortly after.
func (h *hub) Broadcast(state types.QueueState) {
	msg := types.QueueBroadcast{Type: "snapshot", State: state, Timestamp: time.Now()}
	select {
	case h.broadcast <- msg:
	default:
		log.Printf("websocket: dashboard broadcast channel full, dropping snapshot")
	}
}

// RegisterClient registers a new client with the hub.
func (h *hub) RegisterClient(client *Client) {
	h.register <- client
}

// UnregisterClient unregisters a client from the hub.
func (h *hub) UnregisterClient(client *Client) {
	h.unregister <- client
}
