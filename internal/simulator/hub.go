package simulator

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-sync/internal/model"
	"github.com/capitalize-ai/inbox-sync/pkg/logger"
	"github.com/capitalize-ai/inbox-sync/pkg/metrics"
)

// Mirror receives every broadcast envelope, for fan-out beyond the
// connected websocket clients.
type Mirror interface {
	Publish(env model.Envelope)
}

// Hub fans push envelopes out to all connected websocket clients.
type Hub struct {
	logger *logger.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	mirror  Mirror
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		logger:  log,
		clients: make(map[*wsClient]struct{}),
	}
}

// SetMirror attaches an optional secondary publisher. Must be called before
// the first broadcast.
func (h *Hub) SetMirror(m Mirror) {
	h.mirror = m
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.SimulatorWSClients.Set(float64(n))
	h.logger.Info("websocket client connected", zap.Int("clients", n))
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.closeSend()
	metrics.SimulatorWSClients.Set(float64(n))
	h.logger.Info("websocket client disconnected", zap.Int("clients", n))
}

// Broadcast sends env to every connected client. Clients that cannot keep
// up are dropped rather than allowed to stall the rest.
func (h *Hub) Broadcast(env model.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("failed to encode broadcast", zap.Error(err))
		return
	}
	metrics.SimulatorBroadcastsTotal.WithLabelValues(string(env.Type)).Inc()

	h.mu.RLock()
	stalled := make([]*wsClient, 0)
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			stalled = append(stalled, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stalled {
		h.logger.Warn("dropping stalled websocket client")
		h.unregister(c)
	}

	if h.mirror != nil {
		h.mirror.Publish(env)
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Envelope constructors for the push frame shapes the client understands.

func newMessageEnvelope(msg *model.Message) model.Envelope {
	raw, _ := json.Marshal(msg)
	return model.Envelope{Type: model.EventNewMessage, Message: raw}
}

func newConversationEnvelope(conv *model.Conversation) model.Envelope {
	raw, _ := json.Marshal(conv)
	return model.Envelope{Type: model.EventNewConversation, Conversation: raw}
}

func conversationUpdatedEnvelope(conv *model.Conversation) model.Envelope {
	raw, _ := json.Marshal(conv)
	return model.Envelope{Type: model.EventConversationUpdated, Conversation: raw}
}

func conversationsListEnvelope(list []model.Conversation) model.Envelope {
	raw, _ := json.Marshal(list)
	return model.Envelope{Type: model.EventConversationsList, Conversations: raw}
}

func errorEnvelope(text string) model.Envelope {
	return model.Envelope{Type: model.EventError, Error: text}
}
