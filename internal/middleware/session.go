// Package middleware contains HTTP middleware for the JSSP console.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/SanmishaTech/jssp-sub001/internal/handler"
	"github.com/SanmishaTech/jssp-sub001/internal/session"
)

// =============================================================================
// Session Middleware
// =============================================================================

// SessionStore is the part of the session store the middleware reads.
type SessionStore interface {
	Get(id string) (*session.Session, bool)
}

// SessionMiddleware loads the injected session of a request and guards the
// screens that need one.
type SessionMiddleware struct {
	store    SessionStore
	logger   *slog.Logger
	isSecure bool // Whether to set Secure flag on cookies (true in production)
}

// NewSessionMiddleware creates a new SessionMiddleware instance.
func NewSessionMiddleware(store SessionStore, logger *slog.Logger, isSecure bool) *SessionMiddleware {
	return &SessionMiddleware{
		store:    store,
		logger:   logger,
		isSecure: isSecure,
	}
}

// Load reads the session cookie and, when it names a live session, stores the
// session in the request context. It always calls the next handler.
//
//	Request -> Load -> Handler
//	           |
//	           +-> Read cookie
//	           +-> Look up session (if cookie exists)
//	           +-> Set session in context (if live)
func (m *SessionMiddleware) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := session.IDFromRequest(r)
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}

		sess, ok := m.store.Get(id)
		if !ok {
			// Expired or unknown session
			session.ClearCookie(w, m.isSecure)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
	})
}

// Require rejects requests without a session. It must run after Load.
//
// API requests get a 401 JSON error; htmx requests get a 401 with an
// HX-Redirect to the login page; page requests are redirected to
// /login?return_to=<original path>.
func (m *SessionMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if session.FromRequest(r) != nil {
			next.ServeHTTP(w, r)
			return
		}

		if isAPIRequest(r) {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		handler.RedirectToLogin(w, r)
	})
}

// =============================================================================
// Request Helpers
// =============================================================================

// isAPIRequest determines if the request expects a JSON response.
//
// Checks:
// 1. HX-Request header is NOT present (htmx wants HTML)
// 2. Accept header contains application/json
// 3. Content-Type is application/json
func isAPIRequest(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return false
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
//	stack := Stack(sessions.Load, logging.Handler, sessions.Require)
//	mux.Handle("GET /staff", stack(staffHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

var (
	_ func(http.Handler) http.Handler = (&SessionMiddleware{}).Load
	_ func(http.Handler) http.Handler = (&SessionMiddleware{}).Require
)
