package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// MessagesService is the inbox proxy.
type MessagesService struct {
	c *Client
}

// MessagesQuery narrows an inbox listing.
type MessagesQuery struct {
	UnreadOnly bool
	Limit      int
}

// List returns inbox messages for the calling user, newest first.
func (s *MessagesService) List(ctx context.Context, q MessagesQuery) ([]Message, error) {
	query := url.Values{}
	if q.UnreadOnly {
		query.Set("unread", "true")
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}

	var out []Message
	if err := s.c.do(ctx, "messages.list", http.MethodGet, "/v1/messages", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Send queues a message to another user or persona.
func (s *MessagesService) Send(ctx context.Context, recipient, subject, body string) (*Message, error) {
	req := struct {
		Recipient string `json:"recipient"`
		Subject   string `json:"subject,omitempty"`
		Body      string `json:"body"`
	}{recipient, subject, body}

	var out Message
	if err := s.c.do(ctx, "messages.send", http.MethodPost, "/v1/messages", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead flags a message as read.
func (s *MessagesService) MarkRead(ctx context.Context, key string) error {
	return s.c.do(ctx, "messages.read", http.MethodPost, "/v1/messages/"+url.PathEscape(key)+"/read", nil, nil, nil)
}

// WorkSessionsService lists tracked work sessions.
type WorkSessionsService struct {
	c *Client
}

// List returns work sessions overlapping the window starting at since.
func (s *WorkSessionsService) List(ctx context.Context, since time.Time, limit int) ([]WorkSession, error) {
	query := url.Values{}
	if !since.IsZero() {
		query.Set("since", since.UTC().Format(time.RFC3339))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var out []WorkSession
	if err := s.c.do(ctx, "worksessions.list", http.MethodGet, "/v1/work-sessions", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
