// Package engine implements the client-side reconciliation state machine:
// it applies push events and HTTP results to the in-memory conversation
// store and the active conversation view, maintains derived fields (unread
// counts, last message, message counts), and exposes both as observable
// state.
//
// The engine is single-writer: Run owns the store and the view, and every
// mutation happens on the loop goroutine. Public methods post closures onto
// the loop; asynchronous HTTP results are applied the same way, so handlers
// never race and no locks guard the store.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-sync/internal/model"
	"github.com/capitalize-ai/inbox-sync/pkg/logger"
	"github.com/capitalize-ai/inbox-sync/pkg/metrics"
	"github.com/capitalize-ai/inbox-sync/pkg/observe"
)

// ErrNotConnected is returned by SendMessage while the push transport is
// down. The command is dropped, never queued.
var ErrNotConnected = errors.New("not connected")

// Backend is the HTTP collaborator surface the engine depends on.
type Backend interface {
	ListConversations(ctx context.Context, page int) (*model.ConversationPage, error)
	ConversationDetail(ctx context.Context, id string) (*model.Conversation, error)
	CloseConversation(ctx context.Context, id string) (*model.Conversation, error)
	CreateConversation(ctx context.Context, req *model.CreateConversationRequest) (*model.Conversation, error)
}

// Sender is the outbound command surface of the push transport.
type Sender interface {
	Send(v any) error
	IsConnected() bool
}

// Level classifies a user-facing notification.
type Level string

const (
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

// Notification is a user-facing message emitted by the engine.
type Notification struct {
	Level   Level
	Message string
}

// User-facing notification texts.
const (
	noteLoadConversationsFailed = "Failed to load conversations"
	noteLoadConversationFailed  = "Failed to load conversation"
	noteCloseFailed             = "Failed to close conversation"
	noteCreateFailed            = "Failed to create conversation"
	noteCreated                 = "Conversation created"
	noteClosed                  = "Conversation closed"
	noteNotConnected            = "Not connected"
	noteSendFailed              = "Failed to send message"
)

// Engine reconciles push events and HTTP responses into the conversation
// store and the active view.
type Engine struct {
	backend Backend
	sender  Sender
	logger  *logger.Logger

	events <-chan model.Envelope
	cmds   chan func()

	store    *Store
	activeID string

	page    int
	hasMore bool
	loading bool

	conversations *observe.Value[[]model.Conversation]
	active        *observe.Value[*model.Conversation]
	notifications *observe.Stream[Notification]

	runCtx context.Context
}

// New creates an engine consuming push envelopes from events.
func New(backend Backend, sender Sender, events <-chan model.Envelope, log *logger.Logger) *Engine {
	return &Engine{
		backend:       backend,
		sender:        sender,
		logger:        log,
		events:        events,
		cmds:          make(chan func(), 128),
		store:         NewStore(),
		page:          1,
		conversations: observe.NewValue[[]model.Conversation](),
		active:        observe.NewValue[*model.Conversation](),
		notifications: observe.NewStream[Notification](),
	}
}

// Conversations exposes the ordered conversation list.
func (e *Engine) Conversations() *observe.Value[[]model.Conversation] {
	return e.conversations
}

// Active exposes the currently open conversation, or nil.
func (e *Engine) Active() *observe.Value[*model.Conversation] {
	return e.active
}

// Notifications exposes user-facing success/error notifications.
func (e *Engine) Notifications() *observe.Stream[Notification] {
	return e.notifications
}

// Run processes events and posted commands until ctx is canceled. All store
// and view mutations happen here, strictly in arrival order.
func (e *Engine) Run(ctx context.Context) {
	e.runCtx = ctx
	events := e.events
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-e.cmds:
			fn()
		case env, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			e.handle(env)
		}
	}
}

// do posts fn onto the event loop.
func (e *Engine) do(fn func()) {
	e.cmds <- fn
}

func (e *Engine) notify(level Level, message string) {
	e.notifications.Publish(Notification{Level: level, Message: message})
}

// publish pushes fresh snapshots of the list and, if set, the active view.
func (e *Engine) publish() {
	e.conversations.Set(e.store.Snapshot())
	if e.activeID == "" {
		return
	}
	if target := e.store.Get(e.activeID); target != nil {
		copied := *target
		e.active.Set(&copied)
	}
}

// --- push event handling ---

func (e *Engine) handle(env model.Envelope) {
	switch env.Type {
	case model.EventNewMessage:
		e.handleNewMessage(env)
	case model.EventNewConversation:
		e.handleNewConversation(env)
	case model.EventConversationUpdated:
		e.handleConversationUpdated(env)
	case model.EventConversationsList:
		e.handleConversationsList(env)
	case model.EventError:
		if text := env.ErrorText(); text != "" {
			e.notify(LevelError, text)
		}
	default:
		// Forward-compatible servers may push types we don't know yet.
		metrics.PushEventsDroppedTotal.Inc()
	}
}

func (e *Engine) handleNewMessage(env model.Envelope) {
	if len(env.Message) == 0 {
		return
	}
	var msg model.Message
	if err := json.Unmarshal(env.Message, &msg); err != nil {
		e.logger.Debug("dropping undecodable new_message", zap.Error(err))
		return
	}
	if msg.ConversationID == "" {
		return
	}
	target := e.store.Get(msg.ConversationID)
	if target == nil {
		e.logger.Debug("new_message for unknown conversation",
			zap.String("conversation_id", msg.ConversationID))
		return
	}

	// Display counter: counts every observed event, duplicates included.
	target.MessageCount++
	target.LastMessage = &msg

	isActive := e.activeID == target.ID

	// The message list stays live for the active conversation and for any
	// conversation that already carries a cached history from a prior
	// activation. Appends are id-deduplicated; arrival order is kept.
	if isActive || len(target.Messages) > 0 {
		if !containsMessage(target.Messages, msg.ID) {
			target.Messages = append(target.Messages, msg)
		}
	}

	if isActive {
		target.UnreadCount = 0
	} else if msg.Direction == model.DirectionReceived {
		target.UnreadCount++
	}

	e.publish()
}

func (e *Engine) handleNewConversation(env model.Envelope) {
	if len(env.Conversation) == 0 {
		return
	}
	var conv model.Conversation
	if err := json.Unmarshal(env.Conversation, &conv); err != nil {
		e.logger.Debug("dropping undecodable new_conversation", zap.Error(err))
		return
	}
	if conv.ID == "" {
		return
	}
	e.store.Prepend(conv)
	e.publish()
}

func (e *Engine) handleConversationUpdated(env model.Envelope) {
	if len(env.Conversation) == 0 {
		return
	}
	var conv model.Conversation
	if err := json.Unmarshal(env.Conversation, &conv); err != nil {
		e.logger.Debug("dropping undecodable conversation_updated", zap.Error(err))
		return
	}
	if conv.ID == "" || !e.store.Replace(conv.ID, conv) {
		return
	}
	e.publish()

	// The terse update payload can lag behind the full detail view; refetch
	// rather than merge when the updated conversation is on screen.
	if e.activeID == conv.ID {
		go e.fetchDetail(conv.ID)
	}
}

func (e *Engine) handleConversationsList(env model.Envelope) {
	if len(env.Conversations) == 0 {
		return
	}
	var list []model.Conversation
	if err := json.Unmarshal(env.Conversations, &list); err != nil {
		e.logger.Debug("dropping undecodable conversations_list", zap.Error(err))
		return
	}
	e.store.Seed(list)
	e.publish()
}

// --- operations ---

// LoadConversations fetches the first page and replaces the store with it.
func (e *Engine) LoadConversations() {
	e.do(func() {
		if e.loading {
			return
		}
		e.loading = true
		go e.fetchPage(1, true)
	})
}

// LoadMore fetches the next page and appends it. Re-entry is gated by the
// loading flag; a failed fetch rolls the page counter back so the same page
// can be retried.
func (e *Engine) LoadMore() {
	e.do(func() {
		if e.loading || !e.hasMore {
			return
		}
		e.loading = true
		e.page++
		go e.fetchPage(e.page, false)
	})
}

func (e *Engine) fetchPage(page int, replace bool) {
	resp, err := e.backend.ListConversations(e.runCtx, page)
	e.do(func() {
		e.loading = false
		if err != nil {
			if !replace {
				e.page--
			}
			e.logger.Error("conversation page fetch failed",
				zap.Int("page", page), zap.Error(err))
			e.notify(LevelError, noteLoadConversationsFailed)
			return
		}
		if replace {
			e.store.Seed(resp.Results)
			e.page = 1
		} else {
			e.store.AppendPage(resp.Results)
		}
		e.hasMore = resp.Next != nil
		e.publish()
	})
}

// OpenConversation makes id the active conversation. The unread count is
// zeroed immediately, before the detail fetch resolves.
func (e *Engine) OpenConversation(id string) {
	e.do(func() {
		if target := e.store.Get(id); target != nil {
			target.UnreadCount = 0
		}
		e.activeID = id
		e.publish()
		go e.fetchDetail(id)
	})
}

// fetchDetail loads full message history for id and merges it into the
// store and the view. The originating id travels with the request: if the
// active conversation changed while the fetch was in flight, the stale
// response is discarded.
func (e *Engine) fetchDetail(id string) {
	detail, err := e.backend.ConversationDetail(e.runCtx, id)
	e.do(func() {
		if e.activeID != id {
			return
		}
		if err != nil {
			e.logger.Error("conversation detail fetch failed",
				zap.String("conversation_id", id), zap.Error(err))
			e.notify(LevelError, noteLoadConversationFailed)
			return
		}

		merged := *detail
		if target := e.store.Get(id); target != nil {
			// The store's cached references and any message list kept
			// live by push events are richer than the detail response.
			if target.Contact != nil {
				merged.Contact = target.Contact
			}
			if target.AssignedUser != nil {
				merged.AssignedUser = target.AssignedUser
			}
			if len(target.Messages) > 0 {
				merged.Messages = target.Messages
			}
			if merged.MessageCount < target.MessageCount {
				merged.MessageCount = target.MessageCount
			}
			if merged.LastMessage == nil {
				merged.LastMessage = target.LastMessage
			}
		}
		if merged.MessageCount < len(merged.Messages) {
			merged.MessageCount = len(merged.Messages)
		}
		if merged.LastMessage == nil && len(merged.Messages) > 0 {
			merged.LastMessage = &merged.Messages[len(merged.Messages)-1]
		}
		merged.UnreadCount = 0

		if !e.store.Replace(id, merged) {
			e.store.Prepend(merged)
		}
		e.publish()
	})
}

// CloseActive closes the currently open conversation, if any.
func (e *Engine) CloseActive() {
	e.do(func() {
		if e.activeID != "" {
			go e.closeConversation(e.activeID)
		}
	})
}

// CloseConversation closes id via HTTP. On success the status transitions
// to CLOSED in both store and view; the transition is terminal.
func (e *Engine) CloseConversation(id string) {
	e.do(func() {
		go e.closeConversation(id)
	})
}

func (e *Engine) closeConversation(id string) {
	resp, err := e.backend.CloseConversation(e.runCtx, id)
	e.do(func() {
		if err != nil {
			e.logger.Error("close failed", zap.String("conversation_id", id), zap.Error(err))
			e.notify(LevelError, noteCloseFailed)
			return
		}
		if target := e.store.Get(id); target != nil {
			target.Status = model.StatusClosed
			target.ClosedAt = resp.ClosedAt
			target.UpdatedAt = resp.UpdatedAt
		}
		e.publish()
		e.notify(LevelSuccess, noteClosed)
	})
}

// CreateConversation creates a conversation via HTTP and folds the result
// back by reloading the first page.
func (e *Engine) CreateConversation(content, contactID string) {
	req := &model.CreateConversationRequest{Content: content, ContactID: contactID}
	e.do(func() {
		go func() {
			_, err := e.backend.CreateConversation(e.runCtx, req)
			e.do(func() {
				if err != nil {
					e.logger.Error("create failed", zap.Error(err))
					e.notify(LevelError, noteCreateFailed)
					return
				}
				e.notify(LevelSuccess, noteCreated)
				if !e.loading {
					e.loading = true
					go e.fetchPage(1, true)
				}
			})
		}()
	})
}

// Acknowledge explicitly zeroes the unread count of a conversation without
// opening it.
func (e *Engine) Acknowledge(id string) {
	e.do(func() {
		if target := e.store.Get(id); target != nil && target.UnreadCount != 0 {
			target.UnreadCount = 0
			e.publish()
		}
	})
}

// SendMessage sends a message over the push transport. Blank content is a
// silent no-op. While disconnected the command is dropped and a "not
// connected" notification is emitted; there is no optimistic local append —
// the message reaches the view only via the echoed new_message event.
func (e *Engine) SendMessage(conversationID, content string, isInternal bool) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil
	}
	if !e.sender.IsConnected() {
		e.notify(LevelError, noteNotConnected)
		return ErrNotConnected
	}
	cmd := model.SendMessageCommand{
		Type:           model.CommandSendMessage,
		ConversationID: conversationID,
		Content:        trimmed,
		IsInternal:     isInternal,
	}
	if err := e.sender.Send(cmd); err != nil {
		e.notify(LevelError, noteSendFailed)
		return err
	}
	metrics.CommandsSentTotal.WithLabelValues(model.CommandSendMessage).Inc()
	return nil
}

func containsMessage(msgs []model.Message, id string) bool {
	for i := range msgs {
		if msgs[i].ID == id {
			return true
		}
	}
	return false
}
