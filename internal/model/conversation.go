// Package model defines the data structures shared by the sync engine,
// the HTTP client, and the wire envelopes.
package model

import (
	"time"
)

// ConversationStatus represents the lifecycle state of a conversation.
// The transition is monotonic: OPEN to CLOSED, never back.
type ConversationStatus string

const (
	StatusOpen   ConversationStatus = "OPEN"
	StatusClosed ConversationStatus = "CLOSED"
)

// Conversation is a conversation thread as the client sees it. UnreadCount,
// MessageCount and LastMessage are derived fields maintained by the engine;
// Messages is populated lazily when the conversation is opened.
type Conversation struct {
	ID        string             `json:"id"`
	Status    ConversationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	ClosedAt  *time.Time         `json:"closed_at,omitempty"`

	MessageCount int       `json:"message_count"`
	UnreadCount  int       `json:"unread_count"`
	LastMessage  *Message  `json:"last_message,omitempty"`
	Messages     []Message `json:"messages,omitempty"`

	Contact      *Contact `json:"contact,omitempty"`
	AssignedUser *User    `json:"assigned_user,omitempty"`
}

// IsOpen reports whether the conversation still accepts messages.
func (c *Conversation) IsOpen() bool {
	return c.Status == StatusOpen
}

// IsClosed reports whether the conversation has been closed.
func (c *Conversation) IsClosed() bool {
	return c.Status == StatusClosed
}

// ConversationPage is the paginated list response for conversations.
type ConversationPage struct {
	Results  []Conversation `json:"results"`
	Count    int            `json:"count"`
	Next     *string        `json:"next"`
	Previous *string        `json:"previous"`
}

// CreateConversationRequest is the request to create a new conversation.
type CreateConversationRequest struct {
	Content   string `json:"content"`
	ContactID string `json:"contact_id,omitempty"`
}
