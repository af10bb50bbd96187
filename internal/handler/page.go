// Package handler contains HTTP handlers for the JSSP console.
package handler

import (
	"net/http"

	"github.com/SanmishaTech/jssp-sub001/internal/csrf"
	"github.com/SanmishaTech/jssp-sub001/internal/form"
	"github.com/SanmishaTech/jssp-sub001/internal/screen"
	"github.com/SanmishaTech/jssp-sub001/internal/session"
)

// TemplateRenderer is the interface for rendering HTML templates.
// This interface allows for mocking in tests.
type TemplateRenderer interface {
	RenderHTTP(w http.ResponseWriter, name string, data any)
	RenderHTTPStatus(w http.ResponseWriter, status int, name string, data any)
	RenderPartial(w http.ResponseWriter, status int, name string, data any, toasts ...ToastData)
}

// =============================================================================
// Template Data Types
// =============================================================================

// Flash represents a message shown inline on a page.
//
// The Type field determines styling in templates:
// - "success" -> green background
// - "error"   -> red background
// - "info"    -> blue background
type Flash struct {
	Type    string // "success", "error", or "info"
	Message string
}

// PageData is the data every app-layout page receives.
type PageData struct {
	CurrentPath string           // Current URL path for navigation highlighting
	CSRFToken   string           // CSRF token for forms and the htmx header
	User        *session.User    // Signed-in user
	Screens     []*screen.Screen // Navigation entries
	Toasts      []ToastData      // Notifications rendered on load
}

func newPageData(r *http.Request, cat *screen.Catalogue) PageData {
	data := PageData{
		CurrentPath: r.URL.Path,
		CSRFToken:   csrf.Token(r.Context()),
		Screens:     cat.All(),
	}
	if sess := session.FromRequest(r); sess != nil {
		user := sess.User
		data.User = &user
	}
	return data
}

// noticeToasts turns dialog notices into toasts. Field notices carry the
// field label as their title.
func noticeToasts(s *screen.Screen, notices []form.Notice) []ToastData {
	toasts := make([]ToastData, 0, len(notices))
	for _, n := range notices {
		t := ToastData{Type: n.Kind, Message: n.Message}
		if n.Field != "" {
			t.Title = n.Field
			if f, ok := s.Field(n.Field); ok {
				t.Title = f.Label
			}
		}
		toasts = append(toasts, t.withDefaults())
	}
	return toasts
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
