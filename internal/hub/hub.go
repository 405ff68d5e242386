package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// maxPending caps the number of events buffered for a suspended client.
const maxPending = 64

type Subscription struct {
	DoctorID string
}

type Client struct {
	ID           string
	Send         chan []byte
	Subscription Subscription

	suspended bool
	pending   [][]byte
}

// Event is the wire envelope pushed to subscribed clients.
type Event struct {
	Type      string          `json:"type"`
	DoctorID  string          `json:"doctor_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

const (
	EventQueueUpdated = "queue_updated"
	EventReset        = "reset"
)

type Hub struct {
	mu      sync.Mutex
	clients map[string]*Client
	logger  *slog.Logger
}

type SubscribeMessage struct {
	Action   string `json:"action"`
	DoctorID string `json:"doctor_id"`
}

func New(logger *slog.Logger) *Hub {
	return &Hub{clients: make(map[string]*Client), logger: logger}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) UpdateSubscription(client *Client, sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.Subscription = sub
}

// Suspend defers delivery for the client. Events arriving while suspended
// are buffered in order, up to maxPending.
func (h *Hub) Suspend(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.suspended = true
}

// Resume flushes the buffered events in arrival order and restores live
// delivery.
func (h *Hub) Resume(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.suspended = false
	for _, msg := range client.pending {
		h.deliver(client, msg)
	}
	client.pending = nil
}

// BroadcastQueueUpdated notifies clients watching the given doctor's queue.
func (h *Hub) BroadcastQueueUpdated(doctorID string, payload json.RawMessage) {
	event := Event{Type: EventQueueUpdated, DoctorID: doctorID, Payload: payload, CreatedAt: time.Now().UTC()}
	msg, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.clients {
		if client.Subscription.DoctorID != "" && client.Subscription.DoctorID != doctorID {
			continue
		}
		h.send(client, msg)
	}
}

// BroadcastReset notifies every connected client regardless of subscription.
func (h *Hub) BroadcastReset() {
	event := Event{Type: EventReset, CreatedAt: time.Now().UTC()}
	msg, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.clients {
		h.send(client, msg)
	}
}

func (h *Hub) send(client *Client, msg []byte) {
	if client.suspended {
		if len(client.pending) >= maxPending {
			h.logger.Warn("drop buffered event for suspended client", "client_id", client.ID)
			return
		}
		client.pending = append(client.pending, msg)
		return
	}
	h.deliver(client, msg)
}

func (h *Hub) deliver(client *Client, msg []byte) {
	select {
	case client.Send <- msg:
	default:
		h.logger.Warn("drop event for slow client", "client_id", client.ID)
	}
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	switch msg.Action {
	case "subscribe", "unsubscribe", "suspend", "resume":
		return msg, true
	}
	return SubscribeMessage{}, false
}
