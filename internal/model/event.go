package model

import (
	"encoding/json"
)

// EventType identifies a push event variant.
type EventType string

const (
	EventNewMessage          EventType = "new_message"
	EventNewConversation     EventType = "new_conversation"
	EventConversationUpdated EventType = "conversation_updated"
	EventConversationsList   EventType = "conversations_list"
	EventError               EventType = "error"
)

// Envelope is the inbound push frame. Payload fields stay raw until the
// engine routes on Type: the "message" key holds an object for new_message
// but a plain string on error frames from some servers.
type Envelope struct {
	Type          EventType       `json:"type"`
	Conversation  json.RawMessage `json:"conversation,omitempty"`
	Conversations json.RawMessage `json:"conversations,omitempty"`
	Message       json.RawMessage `json:"message,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// ErrorText extracts the human-readable text of an error event. The "error"
// key is canonical; a bare string under "message" is accepted as a fallback.
func (e *Envelope) ErrorText() string {
	if e.Error != "" {
		return e.Error
	}
	var s string
	if err := json.Unmarshal(e.Message, &s); err == nil {
		return s
	}
	return ""
}

// SendMessageCommand is the outbound frame for sending a message.
type SendMessageCommand struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	IsInternal     bool   `json:"is_internal,omitempty"`
}

// Command types understood by the push endpoint.
const (
	CommandSendMessage      = "send_message"
	CommandGetConversations = "get_conversations"
	CommandGetConversation  = "get_conversation"
)
