package simulator

import (
	"fmt"
	"testing"
	"time"

	"github.com/capitalize-ai/inbox-sync/internal/model"
)

func TestCreateConversationWithInitialMessage(t *testing.T) {
	s := NewStore()
	conv, err := s.CreateConversation("", "Olá, tudo bem?")
	if err != nil {
		t.Fatal(err)
	}
	if !conv.IsOpen() {
		t.Fatalf("status = %q", conv.Status)
	}
	if conv.MessageCount != 1 || len(conv.Messages) != 1 {
		t.Fatalf("counts: %d / %d", conv.MessageCount, len(conv.Messages))
	}
	if conv.Messages[0].Direction != model.DirectionReceived {
		t.Fatalf("direction = %q", conv.Messages[0].Direction)
	}
	if conv.LastMessage == nil || conv.LastMessage.Content != "Olá, tudo bem?" {
		t.Fatalf("last message = %+v", conv.LastMessage)
	}
}

func TestCreateConversationUnknownContact(t *testing.T) {
	s := NewStore()
	if _, err := s.CreateConversation("ghost", "oi"); err != ErrContactNotFound {
		t.Fatalf("err = %v, want ErrContactNotFound", err)
	}
}

func TestAddMessageRules(t *testing.T) {
	s := NewStore()
	conv, err := s.CreateConversation("", "")
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := s.AddMessage(conv.ID, model.DirectionSent, "   ", false, nil); err != ErrEmptyContent {
		t.Fatalf("blank content: err = %v, want ErrEmptyContent", err)
	}
	if _, _, err := s.AddMessage("ghost", model.DirectionSent, "oi", false, nil); err != ErrConversationNotFound {
		t.Fatalf("unknown conversation: err = %v", err)
	}

	msg, updated, err := s.AddMessage(conv.ID, model.DirectionSent, "  oi  ", true, &model.User{ID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if msg.Content != "oi" {
		t.Fatalf("content = %q, want trimmed", msg.Content)
	}
	if !msg.IsInternal || msg.AuthorUser == nil {
		t.Fatalf("message = %+v", msg)
	}
	if updated.MessageCount != 1 {
		t.Fatalf("MessageCount = %d", updated.MessageCount)
	}
}

func TestCloseIsTerminal(t *testing.T) {
	s := NewStore()
	conv, _ := s.CreateConversation("", "oi")

	closed, err := s.CloseConversation(conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !closed.IsClosed() || closed.ClosedAt == nil {
		t.Fatalf("closed = %+v", closed)
	}

	if _, err := s.CloseConversation(conv.ID); err != ErrConversationClosed {
		t.Fatalf("second close: err = %v, want ErrConversationClosed", err)
	}
	if _, _, err := s.AddMessage(conv.ID, model.DirectionSent, "oi", false, nil); err != ErrConversationClosed {
		t.Fatalf("message after close: err = %v, want ErrConversationClosed", err)
	}
}

func TestListConversationsPagination(t *testing.T) {
	s := NewStore()
	for i := 0; i < PageSize+3; i++ {
		if _, err := s.CreateConversation("", fmt.Sprintf("mensagem %d", i)); err != nil {
			t.Fatal(err)
		}
	}

	page1, total := s.ListConversations(1)
	if total != PageSize+3 {
		t.Fatalf("total = %d", total)
	}
	if len(page1) != PageSize {
		t.Fatalf("page 1 length = %d, want %d", len(page1), PageSize)
	}
	for _, c := range page1 {
		if c.Messages != nil {
			t.Fatal("list leaked message bodies")
		}
		if c.LastMessage == nil {
			t.Fatal("list summary missing last message")
		}
	}

	page2, _ := s.ListConversations(2)
	if len(page2) != 3 {
		t.Fatalf("page 2 length = %d, want 3", len(page2))
	}

	page3, _ := s.ListConversations(3)
	if len(page3) != 0 {
		t.Fatalf("page 3 length = %d, want 0", len(page3))
	}
}

func TestListConversationsMostRecentFirst(t *testing.T) {
	s := NewStore()
	a, _ := s.CreateConversation("", "primeira")
	b, _ := s.CreateConversation("", "segunda")

	// Activity on a moves it back to the top.
	if _, _, err := s.AddMessage(a.ID, model.DirectionReceived, "mais uma", false, nil); err != nil {
		t.Fatal(err)
	}

	list, _ := s.ListConversations(1)
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Fatalf("order = %v, want [%s %s]", []string{list[0].ID, list[1].ID}, a.ID, b.ID)
	}
}

func TestImportConversationAndMessage(t *testing.T) {
	s := NewStore()
	conv, err := s.ImportConversation("ext-1", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if conv.ID != "ext-1" {
		t.Fatalf("id = %q", conv.ID)
	}
	if _, err := s.ImportConversation("ext-1", time.Time{}); err == nil {
		t.Fatal("duplicate import accepted")
	}

	msg, updated, err := s.ImportMessage("ext-1", "msg-1", model.DirectionReceived, "oi", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != "msg-1" || updated.MessageCount != 1 {
		t.Fatalf("msg = %+v count = %d", msg, updated.MessageCount)
	}
	if _, _, err := s.ImportMessage("ext-1", "msg-1", model.DirectionReceived, "oi", time.Time{}); err == nil {
		t.Fatal("duplicate message import accepted")
	}
}

func TestContactCRUD(t *testing.T) {
	s := NewStore()
	created := s.CreateContact(&model.ContactRequest{Name: "Ana", Phone: "+5511999999999"})

	got, err := s.GetContact(created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Ana" {
		t.Fatalf("contact = %+v", got)
	}

	updated, err := s.UpdateContact(created.ID, &model.ContactRequest{Email: "ana@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != "Ana" || updated.Email != "ana@example.com" {
		t.Fatalf("partial update wrong: %+v", updated)
	}

	if len(s.ListContacts()) != 1 {
		t.Fatal("list length wrong")
	}
	if err := s.DeleteContact(created.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetContact(created.ID); err != ErrContactNotFound {
		t.Fatalf("err = %v after delete", err)
	}
}

func TestRandomOpenConversationSkipsClosed(t *testing.T) {
	s := NewStore()
	a, _ := s.CreateConversation("", "oi")
	s.CloseConversation(a.ID)

	if got := s.RandomOpenConversation(func(n int) int { return 0 }); got != nil {
		t.Fatalf("got %+v, want nil with only closed conversations", got)
	}

	b, _ := s.CreateConversation("", "oi")
	got := s.RandomOpenConversation(func(n int) int { return n - 1 })
	if got == nil || got.ID != b.ID {
		t.Fatalf("got %+v, want %s", got, b.ID)
	}
}
