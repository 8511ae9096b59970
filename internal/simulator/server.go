package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-sync/internal/auth"
	"github.com/capitalize-ai/inbox-sync/internal/model"
	"github.com/capitalize-ai/inbox-sync/pkg/logger"
)

// Server owns the simulator HTTP surface: the REST API, the websocket push
// endpoint, the webhook ingress, and token minting.
type Server struct {
	store     *Store
	hub       *Hub
	logger    *logger.Logger
	jwtSecret string
}

// NewServer creates a Server. An empty jwtSecret disables authentication on
// every endpoint.
func NewServer(store *Store, hub *Hub, jwtSecret string, log *logger.Logger) *Server {
	return &Server{
		store:     store,
		hub:       hub,
		logger:    log,
		jwtSecret: jwtSecret,
	}
}

// Router builds the chi router with the full middleware chain.
func (s *Server) Router(rateLimitRequests int, rateLimitWindow time.Duration) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logging(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/auth/token", s.MintToken)
	r.Get("/ws", s.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(Auth(s.jwtSecret))
		r.Use(RateLimit(rateLimitRequests, rateLimitWindow))

		r.Post("/webhook/", s.Webhook)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", s.ListConversations)
			r.Post("/", s.CreateConversation)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/messages/", s.ConversationMessages)
				r.Post("/close/", s.CloseConversation)
			})
		})

		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", s.ListContacts)
			r.Post("/", s.CreateContact)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.GetContact)
				r.Put("/", s.UpdateContact)
				r.Delete("/", s.DeleteContact)
			})
		})
	})

	return r
}

// Health reports liveness.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

// MintToken issues a signed token for development use.
func (s *Server) MintToken(w http.ResponseWriter, r *http.Request) {
	if s.jwtSecret == "" {
		writeError(w, http.StatusNotFound, "authentication disabled")
		return
	}

	var req struct {
		UserID   string `json:"user_id"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	token, err := auth.Mint(s.jwtSecret, req.UserID, req.Username, 24*time.Hour)
	if err != nil {
		s.logger.Error("token mint failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to mint token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// ListConversations serves one page of the inbox, most recent first.
func (s *Server) ListConversations(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
		page = n
	}

	results, total := s.store.ListConversations(page)

	resp := model.ConversationPage{Results: results, Count: total}
	if page*PageSize < total {
		next := fmt.Sprintf("/conversations/?page=%d", page+1)
		resp.Next = &next
	}
	if page > 1 {
		previous := fmt.Sprintf("/conversations/?page=%d", page-1)
		resp.Previous = &previous
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateConversation creates a conversation and broadcasts it.
func (s *Server) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req model.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, err := s.store.CreateConversation(req.ContactID, req.Content)
	if err == ErrContactNotFound {
		writeError(w, http.StatusBadRequest, "contact not found")
		return
	}
	if err != nil {
		s.logger.Error("create conversation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	s.hub.Broadcast(newConversationEnvelope(conv))
	writeJSON(w, http.StatusCreated, conv)
}

// ConversationMessages serves a conversation with its full history.
func (s *Server) ConversationMessages(w http.ResponseWriter, r *http.Request) {
	conv, err := s.store.GetConversation(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// CloseConversation closes a conversation and broadcasts the update.
func (s *Server) CloseConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.store.CloseConversation(chi.URLParam(r, "id"))
	switch err {
	case nil:
	case ErrConversationNotFound:
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	case ErrConversationClosed:
		writeError(w, http.StatusConflict, "conversation is already closed")
		return
	default:
		s.logger.Error("close conversation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to close conversation")
		return
	}

	s.hub.Broadcast(conversationUpdatedEnvelope(conv))
	writeJSON(w, http.StatusOK, conv)
}

// webhookPayload is the external event ingress format.
type webhookPayload struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      struct {
		ID             string `json:"id"`
		ConversationID string `json:"conversation_id"`
		Direction      string `json:"direction"`
		Content        string `json:"content"`
	} `json:"data"`
}

// Webhook ingests external NEW_CONVERSATION and NEW_MESSAGE events and
// replays them to connected clients.
func (s *Server) Webhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Data.ID == "" {
		writeError(w, http.StatusBadRequest, "data.id is required")
		return
	}

	switch payload.Type {
	case "NEW_CONVERSATION":
		conv, err := s.store.ImportConversation(payload.Data.ID, payload.Timestamp)
		if err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.hub.Broadcast(newConversationEnvelope(conv))
		writeJSON(w, http.StatusCreated, conv)

	case "NEW_MESSAGE":
		direction := model.MessageDirection(payload.Data.Direction)
		if direction != model.DirectionSent && direction != model.DirectionReceived {
			writeError(w, http.StatusBadRequest, "invalid direction")
			return
		}
		msg, _, err := s.store.ImportMessage(
			payload.Data.ConversationID, payload.Data.ID, direction, payload.Data.Content, payload.Timestamp)
		switch err {
		case nil:
		case ErrConversationNotFound:
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		case ErrConversationClosed:
			writeError(w, http.StatusBadRequest, "conversation is closed")
			return
		default:
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.hub.Broadcast(newMessageEnvelope(msg))
		writeJSON(w, http.StatusCreated, msg)

	default:
		writeError(w, http.StatusBadRequest, "unknown event type")
	}
}

// ListContacts serves all contacts.
func (s *Server) ListContacts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.ListContacts())
}

// CreateContact stores a new contact.
func (s *Server) CreateContact(w http.ResponseWriter, r *http.Request) {
	var req model.ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	writeJSON(w, http.StatusCreated, s.store.CreateContact(&req))
}

// GetContact serves one contact.
func (s *Server) GetContact(w http.ResponseWriter, r *http.Request) {
	contact, err := s.store.GetContact(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "contact not found")
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// UpdateContact applies a partial update to a contact.
func (s *Server) UpdateContact(w http.ResponseWriter, r *http.Request) {
	var req model.ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	contact, err := s.store.UpdateContact(chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, http.StatusNotFound, "contact not found")
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// DeleteContact removes a contact.
func (s *Server) DeleteContact(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteContact(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, "contact not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListenAndServe runs srv until ctx is canceled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, srv *http.Server, log *logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("simulator listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down simulator")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
