package session

import (
	"context"
	"net/http"
	"time"
)

// User is the signed-in account as reported by the backend.
type User struct {
	ID    string
	Name  string
	Email string
	Role  string
}

// Session is read-only once created.
type Session struct {
	ID        string
	Token     string // backend bearer token
	User      User
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const sessionContextKey contextKey = "session"

// FromContext returns the session stored in ctx, or nil.
func FromContext(ctx context.Context) *Session {
	s, ok := ctx.Value(sessionContextKey).(*Session)
	if !ok {
		return nil
	}
	return s
}

// FromRequest returns the session of the request, or nil.
func FromRequest(r *http.Request) *Session {
	return FromContext(r.Context())
}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}
