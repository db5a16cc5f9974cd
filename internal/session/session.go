// Package session manages server-side browser sessions. The browser holds
// only an opaque session ID cookie; the backend bearer token and the user it
// belongs to stay server-side, keyed by that ID, so tokens never reach
// client-side storage.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/diptoe/collective-memory-sub000/internal/api"
)

// ErrNotFound is returned for unknown or expired session IDs.
var ErrNotFound = errors.New("session: not found")

// Session is the server-side state behind one signed-in browser.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	User      api.User  `json:"user"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session has passed its lifetime.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Store persists sessions. Implementations must be safe for concurrent use
// and must return ErrNotFound for unknown IDs.
type Store interface {
	Put(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}
