package simulator

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-sync/internal/auth"
	"github.com/capitalize-ai/inbox-sync/internal/model"
	"github.com/capitalize-ai/inbox-sync/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsClient is one connected websocket consumer.
type wsClient struct {
	hub    *Hub
	store  *Store
	conn   *websocket.Conn
	logger *logger.Logger
	user   *model.User

	send     chan []byte
	sendDone chan struct{}
}

// ServeWS upgrades the request and starts the client pumps. Connections
// authenticate with the token query parameter; when the secret is empty the
// endpoint is open.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	var user *model.User
	if s.jwtSecret != "" {
		claims, err := auth.Verify(s.jwtSecret, r.URL.Query().Get("token"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		user = &model.User{ID: claims.UserID, Username: claims.Username}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &wsClient{
		hub:      s.hub,
		store:    s.store,
		conn:     conn,
		logger:   s.logger,
		user:     user,
		send:     make(chan []byte, sendBuffer),
		sendDone: make(chan struct{}),
	}
	s.hub.register(c)

	// Every connection starts with the current inbox state.
	list, _ := s.store.ListConversations(1)
	c.enqueue(conversationsListEnvelope(list))

	go c.writePump()
	go c.readPump()
}

func (c *wsClient) closeSend() {
	select {
	case <-c.sendDone:
	default:
		close(c.sendDone)
	}
}

// enqueue serializes env onto the client's send queue, dropping it if the
// queue is full.
func (c *wsClient) enqueue(env model.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.handleCommand(data)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.sendDone:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		}
	}
}

// inboundCommand is a client-to-server frame.
type inboundCommand struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	IsInternal     bool   `json:"is_internal"`
}

func (c *wsClient) handleCommand(data []byte) {
	var cmd inboundCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		c.enqueue(errorEnvelope("invalid command"))
		return
	}

	switch cmd.Type {
	case model.CommandSendMessage:
		c.handleSendMessage(cmd)
	case model.CommandGetConversations:
		list, _ := c.store.ListConversations(1)
		c.enqueue(conversationsListEnvelope(list))
	case model.CommandGetConversation:
		conv, err := c.store.GetConversation(cmd.ConversationID)
		if err != nil {
			c.enqueue(errorEnvelope("Conversation not found"))
			return
		}
		c.enqueue(conversationUpdatedEnvelope(conv))
	default:
		c.enqueue(errorEnvelope("unknown command"))
	}
}

func (c *wsClient) handleSendMessage(cmd inboundCommand) {
	msg, _, err := c.store.AddMessage(cmd.ConversationID, model.DirectionSent, cmd.Content, cmd.IsInternal, c.user)
	switch {
	case err == nil:
		// The sender sees its own message through the broadcast, same as
		// every other client.
		c.hub.Broadcast(newMessageEnvelope(msg))
	case err == ErrConversationClosed:
		c.enqueue(errorEnvelope("Conversation is closed"))
	case err == ErrConversationNotFound:
		c.enqueue(errorEnvelope("Conversation not found"))
	case err == ErrEmptyContent:
		c.enqueue(errorEnvelope("Message content is required"))
	default:
		c.logger.Error("send_message failed", zap.Error(err))
		c.enqueue(errorEnvelope("internal error"))
	}
}
