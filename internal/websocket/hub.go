package websocket

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// GlobalScope is the subscription key for clients that want every event,
// regardless of which world it concerns.
const GlobalScope = "global"

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	// mu guards clients and subscriptions. Run mutates them on the hub
	// goroutine while BroadcastTo reads them on event-producing goroutines.
	mu sync.Mutex

	// Registered clients.
	clients map[*Client]bool

	// Inbound messages for global broadcast to every client.
	Broadcast chan []byte

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// A map of world names to the set of clients subscribed to them.
	subscriptions map[string]map[*Client]bool
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		Broadcast:     make(chan []byte),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

// Run starts the Hub's message processing loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			if client.Scope != "" {
				h.addSubscription(client, client.Scope)
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Info().Int("total_clients", total).Msg("Client connected")
		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.dropClient(client)
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Info().Int("total_clients", total).Msg("Client disconnected")
		case message := <-h.Broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					h.dropClient(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastTo sends a message to all clients subscribed to a specific world
// (or to GlobalScope). Safe to call from any goroutine.
func (h *Hub) BroadcastTo(scope string, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.subscriptions[scope] {
		select {
		case client.Send <- message:
		default:
			h.dropClient(client)
		}
	}
}

// dropClient removes the client everywhere and closes its send channel.
// Callers must hold mu.
func (h *Hub) dropClient(client *Client) {
	delete(h.clients, client)
	close(client.Send)
	h.removeSubscription(client)
}

// addSubscription records a client's interest in a scope. Callers must hold mu.
func (h *Hub) addSubscription(client *Client, scope string) {
	if h.subscriptions[scope] == nil {
		h.subscriptions[scope] = make(map[*Client]bool)
	}
	h.subscriptions[scope][client] = true
}

// removeSubscription clears a client from every scope. Callers must hold mu.
func (h *Hub) removeSubscription(client *Client) {
	for scope, subs := range h.subscriptions {
		if _, ok := subs[client]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.subscriptions, scope)
			}
		}
	}
}
