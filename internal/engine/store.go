package engine

import (
	"github.com/capitalize-ai/inbox-sync/internal/model"
)

// Store is the in-memory ordered conversation list, most-recent-first. It is
// owned exclusively by the engine's event loop; nothing else mutates it.
type Store struct {
	order []*model.Conversation
	byID  map[string]*model.Conversation
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{byID: make(map[string]*model.Conversation)}
}

// Get returns the conversation with the given id, or nil.
func (s *Store) Get(id string) *model.Conversation {
	return s.byID[id]
}

// Len returns the number of conversations held.
func (s *Store) Len() int {
	return len(s.order)
}

// Prepend inserts a new conversation at the head of the list. A conversation
// whose id is already present is ignored (duplicate push delivery).
func (s *Store) Prepend(c model.Conversation) {
	if _, ok := s.byID[c.ID]; ok {
		return
	}
	entry := &c
	s.order = append([]*model.Conversation{entry}, s.order...)
	s.byID[c.ID] = entry
}

// AppendPage appends a later page to the list. Entries whose id is already
// present are skipped: pushed conversations can shift server pagination, so
// page boundaries may overlap what the client already holds.
func (s *Store) AppendPage(page []model.Conversation) {
	for i := range page {
		c := page[i]
		if _, ok := s.byID[c.ID]; ok {
			continue
		}
		entry := &c
		s.order = append(s.order, entry)
		s.byID[c.ID] = entry
	}
}

// Replace swaps the stored summary for id with c wholesale; no field-level
// merge is performed. It reports whether an entry was replaced.
func (s *Store) Replace(id string, c model.Conversation) bool {
	old, ok := s.byID[id]
	if !ok {
		return false
	}
	*old = c
	return true
}

// Seed replaces the whole list. Client-derived state (unread counts and
// cached message lists) for ids already present is carried over, since the
// server list does not know about it.
func (s *Store) Seed(list []model.Conversation) {
	prev := s.byID
	s.order = make([]*model.Conversation, 0, len(list))
	s.byID = make(map[string]*model.Conversation, len(list))
	for i := range list {
		c := list[i]
		if old, ok := prev[c.ID]; ok {
			c.UnreadCount = old.UnreadCount
			if len(old.Messages) > 0 {
				c.Messages = old.Messages
			}
			if c.MessageCount < old.MessageCount {
				c.MessageCount = old.MessageCount
			}
		}
		entry := &c
		s.order = append(s.order, entry)
		s.byID[c.ID] = entry
	}
}

// Snapshot returns value copies of the ordered list for publication to
// subscribers.
func (s *Store) Snapshot() []model.Conversation {
	out := make([]model.Conversation, len(s.order))
	for i, c := range s.order {
		out[i] = *c
	}
	return out
}
