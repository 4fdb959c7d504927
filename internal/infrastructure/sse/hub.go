package sse

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Mr-houngbo/Colit/internal/domain/notification"
)

// EventNotification is the event name of notification messages.
const EventNotification = "notification"

var _ notification.Sender = (*Hub)(nil)

// Hub manages SSE clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger.With().Str("component", "sse_hub").Logger(),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.clients[client.ClientID]; ok {
		old.Close()
	}
	h.clients[client.ClientID] = client
}

func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[clientID]; ok {
		c.Close()
		delete(h.clients, clientID)
	}
}

func (h *Hub) GetClient(clientID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[clientID]
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastToUser queues message on every stream of userID and returns how
// many streams accepted it.
func (h *Hub) BroadcastToUser(userID string, message *Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for _, c := range h.clients {
		if c.UserID == userID && trySend(c, message) {
			sent++
		}
	}
	return sent
}

func (h *Hub) SendToClient(clientID string, message *Message) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c := h.clients[clientID]
	if c == nil {
		return ErrClientNotFound
	}
	if !trySend(c, message) {
		return ErrChannelFull
	}
	return nil
}

// Send pushes a notification to the recipient's open streams. A recipient
// with no open stream is not an error; the record stays readable.
func (h *Hub) Send(ctx context.Context, n *notification.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := NewMessage(EventNotification, n)
	if err != nil {
		return err
	}
	sent := h.BroadcastToUser(n.RecipientID, msg)
	h.logger.Debug().
		Str("recipient_id", n.RecipientID).
		Str("type", string(n.Type)).
		Int("streams", sent).
		Msg("notification pushed")
	return nil
}

func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.Close()
		delete(h.clients, id)
	}
}

func trySend(c *Client, msg *Message) bool {
	select {
	case c.MessageChan <- msg:
		return true
	default:
		return false
	}
}
