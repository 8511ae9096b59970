// Package api implements the HTTP collaborator contract of the inbox
// backend: paginated conversation listing, conversation detail, close,
// create, and contact CRUD.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/capitalize-ai/inbox-sync/internal/model"
	"github.com/capitalize-ai/inbox-sync/pkg/metrics"
)

// ErrNotFound is returned when the backend reports 404 for an entity.
var ErrNotFound = errors.New("not found")

// Client talks to the inbox HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a new API client. baseURL has no trailing slash; token may be
// empty for anonymous access.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// ListConversations fetches one page of the conversation list,
// most-recent-first. Pages are 1-based.
func (c *Client) ListConversations(ctx context.Context, page int) (*model.ConversationPage, error) {
	if page < 1 {
		page = 1
	}
	var out model.ConversationPage
	err := c.do(ctx, "list_conversations", http.MethodGet,
		"/conversations/?page="+strconv.Itoa(page), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ConversationDetail fetches a conversation with its full message history.
func (c *Client) ConversationDetail(ctx context.Context, id string) (*model.Conversation, error) {
	var out model.Conversation
	err := c.do(ctx, "conversation_detail", http.MethodGet,
		"/conversations/"+id+"/messages/", nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CloseConversation closes a conversation and returns the updated record,
// including the server-assigned closed_at.
func (c *Client) CloseConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var out model.Conversation
	err := c.do(ctx, "close_conversation", http.MethodPost,
		"/conversations/"+id+"/close/", nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateConversation creates a new conversation seeded with an initial
// message.
func (c *Client) CreateConversation(ctx context.Context, req *model.CreateConversationRequest) (*model.Conversation, error) {
	var out model.Conversation
	err := c.do(ctx, "create_conversation", http.MethodPost, "/conversations/", req, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListContacts fetches all contacts.
func (c *Client) ListContacts(ctx context.Context) ([]model.Contact, error) {
	var out []model.Contact
	if err := c.do(ctx, "list_contacts", http.MethodGet, "/contacts/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetContact fetches one contact by id.
func (c *Client) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	var out model.Contact
	if err := c.do(ctx, "get_contact", http.MethodGet, "/contacts/"+id+"/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateContact creates a contact.
func (c *Client) CreateContact(ctx context.Context, req *model.ContactRequest) (*model.Contact, error) {
	var out model.Contact
	if err := c.do(ctx, "create_contact", http.MethodPost, "/contacts/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateContact updates a contact.
func (c *Client) UpdateContact(ctx context.Context, id string, req *model.ContactRequest) (*model.Contact, error) {
	var out model.Contact
	if err := c.do(ctx, "update_contact", http.MethodPut, "/contacts/"+id+"/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteContact deletes a contact.
func (c *Client) DeleteContact(ctx context.Context, id string) error {
	return c.do(ctx, "delete_contact", http.MethodDelete, "/contacts/"+id+"/", nil, nil)
}

func (c *Client) do(ctx context.Context, operation, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordAPIRequest(operation, "error", time.Since(start).Seconds())
		return fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()
	metrics.RecordAPIRequest(operation, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", operation, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: unexpected status %d", operation, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", operation, err)
	}
	return nil
}
