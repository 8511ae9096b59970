// Package simulator implements an inbox backend for local development and
// end-to-end testing: the HTTP API, the websocket push endpoint, and a
// traffic generator that plays both sides of a customer conversation.
package simulator

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/inbox-sync/internal/model"
)

// PageSize is the conversation list page size.
const PageSize = 10

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationClosed   = errors.New("conversation is closed")
	ErrContactNotFound      = errors.New("contact not found")
	ErrEmptyContent         = errors.New("message content is required")
)

// Store is the in-memory backing state of the simulator.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
	contacts      map[string]*model.Contact
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		conversations: make(map[string]*model.Conversation),
		contacts:      make(map[string]*model.Contact),
	}
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// CreateConversation creates an open conversation, optionally seeded with
// an initial RECEIVED message and linked to a contact.
func (s *Store) CreateConversation(contactID, content string) (*model.Conversation, error) {
	now := time.Now().UTC()
	conv := &model.Conversation{
		ID:        newID(),
		Status:    model.StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if contactID != "" {
		contact, ok := s.contacts[contactID]
		if !ok {
			return nil, ErrContactNotFound
		}
		copied := *contact
		conv.Contact = &copied
	}

	if content = strings.TrimSpace(content); content != "" {
		msg := model.Message{
			ID:             newID(),
			ConversationID: conv.ID,
			Direction:      model.DirectionReceived,
			Content:        content,
			Timestamp:      now,
			CreatedAt:      now,
		}
		conv.Messages = []model.Message{msg}
		conv.MessageCount = 1
		conv.LastMessage = &conv.Messages[0]
	}

	s.conversations[conv.ID] = conv
	return snapshotConversation(conv), nil
}

// ImportConversation inserts a conversation with a caller-chosen id, as
// delivered by webhook payloads. Duplicate ids are rejected.
func (s *Store) ImportConversation(id string, createdAt time.Time) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[id]; exists {
		return nil, errors.New("conversation already exists")
	}
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	conv := &model.Conversation{
		ID:        id,
		Status:    model.StatusOpen,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	s.conversations[id] = conv
	return snapshotConversation(conv), nil
}

// GetConversation returns a conversation with its full message history.
func (s *Store) GetConversation(id string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return snapshotConversation(conv), nil
}

// ListConversations returns one page of conversations ordered by most
// recent activity, without message bodies, plus the total count.
func (s *Store) ListConversations(page int) ([]model.Conversation, int) {
	if page < 1 {
		page = 1
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*model.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		all = append(all, conv)
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		}
		return all[i].ID > all[j].ID
	})

	total := len(all)
	start := (page - 1) * PageSize
	if start > total {
		start = total
	}
	end := start + PageSize
	if end > total {
		end = total
	}

	out := make([]model.Conversation, 0, end-start)
	for _, conv := range all[start:end] {
		summary := *snapshotConversation(conv)
		summary.Messages = nil
		out = append(out, summary)
	}
	return out, total
}

// AddMessage appends a message to an open conversation and returns both the
// stored message and the updated conversation summary.
func (s *Store) AddMessage(conversationID string, direction model.MessageDirection, content string, isInternal bool, author *model.User) (*model.Message, *model.Conversation, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil, ErrEmptyContent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil, nil, ErrConversationNotFound
	}
	if conv.IsClosed() {
		return nil, nil, ErrConversationClosed
	}

	now := time.Now().UTC()
	msg := model.Message{
		ID:             newID(),
		ConversationID: conversationID,
		Direction:      direction,
		Content:        content,
		Timestamp:      now,
		CreatedAt:      now,
		IsInternal:     isInternal,
		AuthorUser:     author,
	}

	conv.Messages = append(conv.Messages, msg)
	conv.MessageCount = len(conv.Messages)
	conv.LastMessage = &conv.Messages[len(conv.Messages)-1]
	conv.UpdatedAt = now

	stored := msg
	return &stored, snapshotConversation(conv), nil
}

// ImportMessage appends a webhook-delivered message with a caller-chosen id.
func (s *Store) ImportMessage(conversationID, messageID string, direction model.MessageDirection, content string, at time.Time) (*model.Message, *model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil, nil, ErrConversationNotFound
	}
	if conv.IsClosed() {
		return nil, nil, ErrConversationClosed
	}
	for i := range conv.Messages {
		if conv.Messages[i].ID == messageID {
			return nil, nil, errors.New("message already exists")
		}
	}

	if at.IsZero() {
		at = time.Now().UTC()
	}
	msg := model.Message{
		ID:             messageID,
		ConversationID: conversationID,
		Direction:      direction,
		Content:        content,
		Timestamp:      at,
		CreatedAt:      at,
	}
	conv.Messages = append(conv.Messages, msg)
	conv.MessageCount = len(conv.Messages)
	conv.LastMessage = &conv.Messages[len(conv.Messages)-1]
	conv.UpdatedAt = at

	stored := msg
	return &stored, snapshotConversation(conv), nil
}

// CloseConversation marks a conversation CLOSED. Closing is terminal:
// closing an already closed conversation fails.
func (s *Store) CloseConversation(id string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	if conv.IsClosed() {
		return nil, ErrConversationClosed
	}

	now := time.Now().UTC()
	conv.Status = model.StatusClosed
	conv.ClosedAt = &now
	conv.UpdatedAt = now
	return snapshotConversation(conv), nil
}

// RandomOpenConversation picks any open conversation, or nil when there is
// none. pick receives the number of candidates and returns an index.
func (s *Store) RandomOpenConversation(pick func(n int) int) *model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	open := make([]*model.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		if conv.IsOpen() {
			open = append(open, conv)
		}
	}
	if len(open) == 0 {
		return nil
	}
	return snapshotConversation(open[pick(len(open))])
}

// CreateContact stores a new contact.
func (s *Store) CreateContact(req *model.ContactRequest) *model.Contact {
	now := time.Now().UTC()
	contact := &model.Contact{
		ID:        newID(),
		Name:      req.Name,
		Phone:     req.Phone,
		Email:     req.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.contacts[contact.ID] = contact
	s.mu.Unlock()

	copied := *contact
	return &copied
}

// GetContact returns a contact by id.
func (s *Store) GetContact(id string) (*model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contact, ok := s.contacts[id]
	if !ok {
		return nil, ErrContactNotFound
	}
	copied := *contact
	return &copied, nil
}

// ListContacts returns all contacts ordered by name.
func (s *Store) ListContacts() []model.Contact {
	s.mu.RLock()
	out := make([]model.Contact, 0, len(s.contacts))
	for _, contact := range s.contacts {
		out = append(out, *contact)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// UpdateContact applies non-empty fields of req to a contact.
func (s *Store) UpdateContact(id string, req *model.ContactRequest) (*model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contact, ok := s.contacts[id]
	if !ok {
		return nil, ErrContactNotFound
	}
	if req.Name != "" {
		contact.Name = req.Name
	}
	if req.Phone != "" {
		contact.Phone = req.Phone
	}
	if req.Email != "" {
		contact.Email = req.Email
	}
	contact.UpdatedAt = time.Now().UTC()

	copied := *contact
	return &copied, nil
}

// DeleteContact removes a contact. Existing conversations keep their copy.
func (s *Store) DeleteContact(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contacts[id]; !ok {
		return ErrContactNotFound
	}
	delete(s.contacts, id)
	return nil
}

// snapshotConversation copies a conversation so callers never share memory
// with the store. Callers must hold at least a read lock.
func snapshotConversation(conv *model.Conversation) *model.Conversation {
	copied := *conv
	if len(conv.Messages) > 0 {
		copied.Messages = append([]model.Message(nil), conv.Messages...)
		copied.LastMessage = &copied.Messages[len(copied.Messages)-1]
	} else if conv.LastMessage != nil {
		last := *conv.LastMessage
		copied.LastMessage = &last
	}
	if conv.Contact != nil {
		contact := *conv.Contact
		copied.Contact = &contact
	}
	if conv.AssignedUser != nil {
		user := *conv.AssignedUser
		copied.AssignedUser = &user
	}
	return &copied
}
