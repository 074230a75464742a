package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/cafe-pos/api/internal/enum"
	"github.com/cafe-pos/api/internal/notify"
)

// ErrHubFull is returned by Publish when the broadcast queue is saturated.
var ErrHubFull = errors.New("websocket hub queue is full")

// topicRoles lists the roles allowed to subscribe to each topic.
var topicRoles = map[string][]string{
	notify.TopicOrders: {enum.UserRoleCourier, enum.UserRoleCashier, enum.UserRoleBarista, enum.UserRoleManager},
	notify.TopicStock:  {enum.UserRoleManager},
}

// CanSubscribe reports whether role may join topic.
func CanSubscribe(topic, role string) bool {
	for _, r := range topicRoles[topic] {
		if r == role {
			return true
		}
	}
	return false
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by topic
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	// Outbound events to broadcast
	broadcast chan notify.Event

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan notify.Event, 256),
	}
}

// Run starts the hub's main loop and returns when ctx is cancelled.
// This should be called as a goroutine: go hub.Run(ctx)
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.topic] == nil {
				h.rooms[client.topic] = make(map[*Client]bool)
			}
			h.rooms[client.topic][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			// Marshal event to JSON once
			message, err := json.Marshal(event)
			if err != nil {
				log.Printf("ERROR: marshal %s for websocket: %v", event.Type, err)
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[event.Topic] {
				select {
				case client.send <- message:
				default:
					// Slow consumer, drop it
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with h.mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.topic]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.topic)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.rooms {
		for client := range clients {
			h.remove(client)
		}
	}
}

// Publish queues e for every client subscribed to e.Topic. It never blocks
// on slow clients; a saturated queue drops the event.
func (h *Hub) Publish(ctx context.Context, e notify.Event) error {
	select {
	case h.broadcast <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrHubFull
	}
}

// Subscribers returns the number of clients in topic's room.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[topic])
}
