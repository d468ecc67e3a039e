// Package ws pushes booking events to kitchen dashboards over websocket.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mealdesk/api/internal/notify"
)

// Event is a websocket message sent to dashboards.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// kitchenEvent routes an event to one kitchen's room.
type kitchenEvent struct {
	KitchenID uuid.UUID
	Event     Event
}

// Hub maintains the set of active clients, grouped into one room per kitchen.
type Hub struct {
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *kitchenEvent
	done       chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *kitchenEvent, 256),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is done, then closes
// every client. Start it in its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for kid, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, kid)
			}
			h.mu.Unlock()
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.kitchenID] == nil {
				h.rooms[client.kitchenID] = make(map[*Client]bool)
			}
			h.rooms[client.kitchenID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event.Event)
			if err != nil {
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[event.KitchenID] {
				select {
				case client.send <- message:
				default:
					// Slow consumer; drop it rather than block the room.
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.kitchenID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.kitchenID)
	}
}

// BroadcastToKitchen queues an event for every dashboard of one kitchen.
func (h *Hub) BroadcastToKitchen(ctx context.Context, kitchenID uuid.UUID, event Event) error {
	select {
	case h.broadcast <- &kitchenEvent{KitchenID: kitchenID, Event: event}:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// BookingStatusChanged implements notify.Notifier.
func (h *Hub) BookingStatusChanged(ctx context.Context, e notify.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return h.BroadcastToKitchen(ctx, e.KitchenID, Event{Type: e.Type, Payload: payload})
}
