package model

import (
	"encoding/json"
	"time"
)

// MessageDirection tells which side of the conversation produced a message.
type MessageDirection string

const (
	DirectionSent     MessageDirection = "SENT"
	DirectionReceived MessageDirection = "RECEIVED"
)

// Message is a single message within a conversation.
type Message struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversation_id"`
	Direction      MessageDirection `json:"direction"`
	Content        string           `json:"content"`
	Timestamp      time.Time        `json:"timestamp"`
	CreatedAt      time.Time        `json:"created_at"`
	IsInternal     bool             `json:"is_internal,omitempty"`
	AuthorUser     *User            `json:"author_user,omitempty"`
}

// messageWire mirrors Message but carries both conversation identifier
// shapes observed across server responses: some payloads name the field
// "conversation_id", others "conversation". UnmarshalJSON normalizes to
// ConversationID so the rest of the client never sees the difference.
type messageWire struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversation_id"`
	Conversation   string           `json:"conversation"`
	Direction      MessageDirection `json:"direction"`
	Content        string           `json:"content"`
	Timestamp      time.Time        `json:"timestamp"`
	CreatedAt      time.Time        `json:"created_at"`
	IsInternal     bool             `json:"is_internal"`
	AuthorUser     *User            `json:"author_user"`
}

// UnmarshalJSON decodes a message, accepting the conversation id under
// either field name.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w messageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.ID = w.ID
	m.ConversationID = w.ConversationID
	if m.ConversationID == "" {
		m.ConversationID = w.Conversation
	}
	m.Direction = w.Direction
	m.Content = w.Content
	m.Timestamp = w.Timestamp
	m.CreatedAt = w.CreatedAt
	m.IsInternal = w.IsInternal
	m.AuthorUser = w.AuthorUser
	return nil
}
