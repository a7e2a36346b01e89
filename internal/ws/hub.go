// internal/ws/hub.go
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"jikoni-service/internal/domain/schedule"

	"go.uber.org/zap"
)

// EventType identifies a schedule lifecycle event pushed to clients.
type EventType string

const (
	EventOrderCreated   EventType = "order.created"
	EventOrderUpdated   EventType = "order.updated"
	EventOrderPaused    EventType = "order.paused"
	EventOrderResumed   EventType = "order.resumed"
	EventOrderCancelled EventType = "order.cancelled"
	EventOrderExecuted  EventType = "order.executed"
	EventOrderExpired   EventType = "order.expired"
	EventOrderDue       EventType = "order.due"
)

// Event is the wire payload broadcast to a customer's connected clients.
type Event struct {
	Type           EventType            `json:"type"`
	OrderID        int64                `json:"order_id"`
	OrderReference string               `json:"order_reference"`
	Status         schedule.OrderStatus `json:"status"`
	Timestamp      time.Time            `json:"timestamp"`
	Data           interface{}          `json:"data,omitempty"`
}

type targetedEvent struct {
	identityID int64
	event      Event
}

// Hub fans schedule events out to the websocket clients of each customer.
// The scheduling core stays pure; this is the publish side of the explicit
// boundary between the core and its UI consumers.
type Hub struct {
	clients map[int64]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan targetedEvent
	done       chan struct{}

	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan targetedEvent, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Release pump goroutines blocked on register/unregister before
			// tearing the connections down.
			close(h.done)
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.identityID] == nil {
				h.clients[client.identityID] = make(map[*Client]bool)
			}
			h.clients[client.identityID][client] = true
			h.mu.Unlock()
			h.logger.Debug("ws client registered", zap.Int64("identity_id", client.identityID))

		case client := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.clients[client.identityID]; ok {
				if conns[client] {
					delete(conns, client)
					close(client.send)
					if len(conns) == 0 {
						delete(h.clients, client.identityID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg.event)
			if err != nil {
				h.logger.Error("failed to marshal ws event", zap.Error(err))
				continue
			}

			h.mu.RLock()
			for client := range h.clients[msg.identityID] {
				select {
				case client.send <- data:
				default:
					// Slow consumer, drop the event rather than block the hub.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish queues an event for every connection of the given customer.
func (h *Hub) Publish(identityID int64, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	select {
	case h.broadcast <- targetedEvent{identityID: identityID, event: ev}:
	default:
		h.logger.Warn("ws broadcast buffer full, dropping event",
			zap.String("type", string(ev.Type)),
			zap.Int64("identity_id", identityID),
		)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conns := range h.clients {
		for client := range conns {
			close(client.send)
		}
	}
	h.clients = make(map[int64]map[*Client]bool)
}
