package model

import (
	"encoding/json"
	"testing"
)

func TestMessageUnmarshalConversationKeys(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "conversation_id key",
			body: `{"id":"m1","conversation_id":"c1","direction":"RECEIVED","content":"oi"}`,
			want: "c1",
		},
		{
			name: "conversation key",
			body: `{"id":"m1","conversation":"c2","direction":"SENT","content":"oi"}`,
			want: "c2",
		},
		{
			name: "conversation_id wins when both present",
			body: `{"id":"m1","conversation_id":"c1","conversation":"c2","direction":"SENT","content":"oi"}`,
			want: "c1",
		},
		{
			name: "neither key",
			body: `{"id":"m1","direction":"SENT","content":"oi"}`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Message
			if err := json.Unmarshal([]byte(tt.body), &m); err != nil {
				t.Fatal(err)
			}
			if m.ConversationID != tt.want {
				t.Fatalf("ConversationID = %q, want %q", m.ConversationID, tt.want)
			}
		})
	}
}

func TestMessageUnmarshalCarriesFields(t *testing.T) {
	body := `{"id":"m1","conversation_id":"c1","direction":"RECEIVED","content":"Oi, tudo bem?","is_internal":true,"author_user":{"id":"u1","username":"ana"}}`
	var m Message
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		t.Fatal(err)
	}
	if m.Direction != DirectionReceived {
		t.Fatalf("Direction = %q", m.Direction)
	}
	if m.Content != "Oi, tudo bem?" {
		t.Fatalf("Content = %q", m.Content)
	}
	if !m.IsInternal {
		t.Fatal("IsInternal lost")
	}
	if m.AuthorUser == nil || m.AuthorUser.Username != "ana" {
		t.Fatalf("AuthorUser = %+v", m.AuthorUser)
	}
}

func TestEnvelopeErrorText(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "canonical error key",
			body: `{"type":"error","error":"Conversation is closed"}`,
			want: "Conversation is closed",
		},
		{
			name: "bare string under message",
			body: `{"type":"error","message":"Conversation not found"}`,
			want: "Conversation not found",
		},
		{
			name: "error key wins over message string",
			body: `{"type":"error","error":"first","message":"second"}`,
			want: "first",
		},
		{
			name: "object under message is not an error text",
			body: `{"type":"error","message":{"id":"m1"}}`,
			want: "",
		},
		{
			name: "no payload",
			body: `{"type":"error"}`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env Envelope
			if err := json.Unmarshal([]byte(tt.body), &env); err != nil {
				t.Fatal(err)
			}
			if got := env.ErrorText(); got != tt.want {
				t.Fatalf("ErrorText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnvelopePayloadsStayRaw(t *testing.T) {
	body := `{"type":"new_message","message":{"id":"m1","conversation":"c1","direction":"SENT","content":"oi"}}`
	var env Envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != EventNewMessage {
		t.Fatalf("Type = %q", env.Type)
	}
	var m Message
	if err := json.Unmarshal(env.Message, &m); err != nil {
		t.Fatal(err)
	}
	if m.ConversationID != "c1" {
		t.Fatalf("ConversationID = %q", m.ConversationID)
	}
}

func TestConversationStatusHelpers(t *testing.T) {
	c := Conversation{Status: StatusOpen}
	if !c.IsOpen() || c.IsClosed() {
		t.Fatal("OPEN conversation misreports status")
	}
	c.Status = StatusClosed
	if c.IsOpen() || !c.IsClosed() {
		t.Fatal("CLOSED conversation misreports status")
	}
}
