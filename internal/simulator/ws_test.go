package simulator

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/capitalize-ai/inbox-sync/internal/model"
)

func dialWS(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) model.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var env model.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatal(err)
	}
	return env
}

// readUntil skips frames until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want model.EventType) model.Envelope {
	t.Helper()
	for i := 0; i < 10; i++ {
		env := readEnvelope(t, conn)
		if env.Type == want {
			return env
		}
	}
	t.Fatalf("never received %q", want)
	return model.Envelope{}
}

func TestWSConnectSendsConversationsList(t *testing.T) {
	ts, store, _ := newTestServer(t, "")
	store.CreateConversation("", "Olá!")

	conn := dialWS(t, ts, "")

	env := readEnvelope(t, conn)
	if env.Type != model.EventConversationsList {
		t.Fatalf("first frame = %q, want conversations_list", env.Type)
	}
	var list []model.Conversation
	if err := json.Unmarshal(env.Conversations, &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("list length = %d", len(list))
	}
}

func TestWSSendMessageEchoesBroadcast(t *testing.T) {
	ts, store, _ := newTestServer(t, "")
	conv, _ := store.CreateConversation("", "Olá!")

	conn := dialWS(t, ts, "")
	readEnvelope(t, conn) // conversations_list

	if err := conn.WriteJSON(model.SendMessageCommand{
		Type:           model.CommandSendMessage,
		ConversationID: conv.ID,
		Content:        "Boa tarde!",
	}); err != nil {
		t.Fatal(err)
	}

	env := readUntil(t, conn, model.EventNewMessage)
	var msg model.Message
	if err := json.Unmarshal(env.Message, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.ConversationID != conv.ID || msg.Content != "Boa tarde!" {
		t.Fatalf("message = %+v", msg)
	}
	if msg.Direction != model.DirectionSent {
		t.Fatalf("direction = %q", msg.Direction)
	}
}

func TestWSSendToClosedConversation(t *testing.T) {
	ts, store, _ := newTestServer(t, "")
	conv, _ := store.CreateConversation("", "Olá!")
	store.CloseConversation(conv.ID)

	conn := dialWS(t, ts, "")
	readEnvelope(t, conn) // conversations_list

	conn.WriteJSON(model.SendMessageCommand{
		Type:           model.CommandSendMessage,
		ConversationID: conv.ID,
		Content:        "oi",
	})

	env := readUntil(t, conn, model.EventError)
	if got := env.ErrorText(); got != "Conversation is closed" {
		t.Fatalf("error = %q", got)
	}
}

func TestWSGetConversationsCommand(t *testing.T) {
	ts, store, _ := newTestServer(t, "")
	conn := dialWS(t, ts, "")
	readEnvelope(t, conn) // initial list, empty

	store.CreateConversation("", "Olá!")

	conn.WriteJSON(map[string]string{"type": model.CommandGetConversations})
	env := readUntil(t, conn, model.EventConversationsList)
	var list []model.Conversation
	if err := json.Unmarshal(env.Conversations, &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("refreshed list length = %d", len(list))
	}
}

func TestWSRejectsBadToken(t *testing.T) {
	ts, _, _ := newTestServer(t, "test-secret")

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial succeeded with a bad token")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Fatalf("response = %+v", resp)
	}
}

func TestBroadcastReachesAllClients(t *testing.T) {
	ts, store, hub := newTestServer(t, "")

	a := dialWS(t, ts, "")
	b := dialWS(t, ts, "")
	readEnvelope(t, a)
	readEnvelope(t, b)

	waitClients(t, hub, 2)

	conv, _ := store.CreateConversation("", "")
	hub.Broadcast(newConversationEnvelope(conv))

	for _, conn := range []*websocket.Conn{a, b} {
		env := readUntil(t, conn, model.EventNewConversation)
		var got model.Conversation
		if err := json.Unmarshal(env.Conversation, &got); err != nil {
			t.Fatal(err)
		}
		if got.ID != conv.ID {
			t.Fatalf("broadcast id = %q, want %q", got.ID, conv.ID)
		}
	}
}

func waitClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.ClientCount(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
