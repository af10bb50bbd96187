package handler

// This file implements sign-in and sign-out against the backend. A successful
// sign-in creates the session that every screen reads its token from.

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/form"
	"github.com/go-playground/validator/v10"

	"github.com/SanmishaTech/jssp-sub001/internal/apiclient"
	"github.com/SanmishaTech/jssp-sub001/internal/csrf"
	"github.com/SanmishaTech/jssp-sub001/internal/domain"
	"github.com/SanmishaTech/jssp-sub001/internal/metrics"
	"github.com/SanmishaTech/jssp-sub001/internal/session"
)

// =============================================================================
// Handler Configuration
// =============================================================================

// Authenticator exchanges credentials for a backend token.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*apiclient.LoginResult, error)
}

// SessionStore creates and removes sessions.
type SessionStore interface {
	SessionDeleter
	Create(token string, user session.User) *session.Session
	TTL() time.Duration
}

// SessionCloser tears down the screen instances of a session.
type SessionCloser interface {
	CloseSession(sessionID string) int
}

// AuthHandler handles authentication-related HTTP requests.
//
// Dependencies:
// - auth: backend login endpoint
// - sessions: in-memory session store
// - screens: registry of mounted screens, torn down on logout
// - renderer: Template rendering for HTML responses
// - isSecure: Whether to set Secure flag on cookies (true in production)
//
// Routes handled:
// - GET  /login    -> ShowLogin
// - POST /login    -> Login
// - POST /logout   -> Logout
type AuthHandler struct {
	auth     Authenticator
	sessions SessionStore
	screens  SessionCloser
	renderer TemplateRenderer
	logger   *slog.Logger
	isSecure bool
}

// NewAuthHandler creates a new AuthHandler with the required dependencies.
//
// Example usage in main.go:
//
//	authHandler := handler.NewAuthHandler(client, store, registry, renderer, logger, cfg.Env != "development")
func NewAuthHandler(
	auth Authenticator,
	sessions SessionStore,
	screens SessionCloser,
	renderer TemplateRenderer,
	logger *slog.Logger,
	isSecure bool,
) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		sessions: sessions,
		screens:  screens,
		renderer: renderer,
		logger:   logger,
		isSecure: isSecure,
	}
}

// =============================================================================
// Template Data Types
// =============================================================================

// AuthPageData contains data for the login page.
type AuthPageData struct {
	CurrentPath string            // Current URL path
	CSRFToken   string            // CSRF token for form protection
	Form        map[string]string // Form field values for re-populating on error
	Errors      map[string]string // Field-level validation errors
	Flash       *Flash            // Flash message to display
	ReturnTo    string            // URL to redirect to after successful login
}

// loginForm is the posted login form.
type loginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
	ReturnTo string `form:"return_to"`
}

var (
	loginDecoder  = form.NewDecoder()
	loginValidate = validator.New()
)

var loginMessages = map[string]string{
	"Email.required":    "Email is required",
	"Email.email":       "Enter a valid email address",
	"Password.required": "Password is required",
}

// =============================================================================
// GET /login - Show Login Form
// =============================================================================

// ShowLogin renders the login form. Signed-in users go straight to the
// dashboard (or return_to).
func (h *AuthHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	returnTo := r.URL.Query().Get("return_to")

	if session.FromRequest(r) != nil {
		http.Redirect(w, r, safeReturnTo(returnTo), http.StatusSeeOther)
		return
	}

	var flash *Flash
	if r.URL.Query().Get("logout") == "1" {
		flash = &Flash{Type: "success", Message: "You have been signed out."}
	}

	h.renderer.RenderHTTP(w, "auth/login", AuthPageData{
		CurrentPath: r.URL.Path,
		CSRFToken:   csrf.Token(r.Context()),
		Form:        make(map[string]string),
		Errors:      make(map[string]string),
		Flash:       flash,
		ReturnTo:    returnTo,
	})
}

// =============================================================================
// POST /login - Process Login
// =============================================================================

// Login processes the login form submission.
//
// Success Flow:
// 1. Exchange the credentials for a backend token
// 2. Create the session and set its cookie
// 3. Redirect to return_to or /
//
// Failures re-render the form with a 4xx status, which the login rate
// limiter counts. The password is never re-populated or logged.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.logger.Info("failed to parse login form", "error", err)
		h.renderLoginError(w, r, http.StatusBadRequest, loginForm{}, nil, &Flash{
			Type:    "error",
			Message: "Invalid form submission. Please try again.",
		})
		return
	}

	var in loginForm
	if err := loginDecoder.Decode(&in, r.PostForm); err != nil {
		h.logger.Info("failed to decode login form", "error", err)
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if errs := validateLogin(in); len(errs) > 0 {
		metrics.LoginAttempt("invalid")
		h.renderLoginError(w, r, http.StatusUnprocessableEntity, in, errs, nil)
		return
	}

	res, err := h.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		h.loginFailed(w, r, in, err)
		return
	}

	sess := h.sessions.Create(res.Token, session.User{
		ID:    res.User.ID,
		Name:  res.User.Name,
		Email: res.User.Email,
		Role:  res.User.Role,
	})
	session.SetCookie(w, sess.ID, h.sessions.TTL(), h.isSecure)
	metrics.LoginAttempt("ok")

	h.logger.Info("user signed in", "user_id", res.User.ID)
	http.Redirect(w, r, safeReturnTo(in.ReturnTo), http.StatusSeeOther)
}

// loginFailed maps a backend failure onto the login form.
func (h *AuthHandler) loginFailed(w http.ResponseWriter, r *http.Request, in loginForm, err error) {
	e, _ := apiclient.AsError(err)
	switch {
	case e != nil && e.Kind == apiclient.KindFieldErrors:
		metrics.LoginAttempt("invalid")
		errs := make(map[string]string, len(e.Fields))
		for _, name := range e.FieldNames() {
			errs[name] = strings.Join(e.Fields[name], " ")
		}
		h.renderLoginError(w, r, http.StatusUnprocessableEntity, in, errs, nil)
	case e != nil && e.Status >= 400 && e.Status < 500:
		// Generic message; do not reveal whether the account exists.
		metrics.LoginAttempt("rejected")
		h.logger.Info("login rejected", "status", e.Status)
		h.renderLoginError(w, r, http.StatusUnauthorized, in, nil, &Flash{
			Type:    "error",
			Message: "Invalid email or password",
		})
	default:
		metrics.LoginAttempt("failed")
		h.logger.Warn("login failed", "error", err)
		h.renderLoginError(w, r, ErrorCodeToHTTPStatus(domain.ErrorCode(err)), in, nil, &Flash{
			Type:    "error",
			Message: "Sign-in is unavailable right now. Please try again shortly.",
		})
	}
}

// renderLoginError re-renders the login form with errors.
func (h *AuthHandler) renderLoginError(w http.ResponseWriter, r *http.Request, status int, in loginForm, errs map[string]string, flash *Flash) {
	if errs == nil {
		errs = make(map[string]string)
	}
	h.renderer.RenderHTTPStatus(w, status, "auth/login", AuthPageData{
		CurrentPath: "/login",
		CSRFToken:   csrf.Token(r.Context()),
		Form:        map[string]string{"email": in.Email},
		Errors:      errs,
		Flash:       flash,
		ReturnTo:    in.ReturnTo,
	})
}

// validateLogin returns one message per invalid field, keyed by form name.
func validateLogin(in loginForm) map[string]string {
	err := loginValidate.Struct(in)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"email": "Invalid form submission"}
	}

	errs := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := strings.ToLower(fe.Field())
		if _, seen := errs[name]; seen {
			continue
		}
		msg, ok := loginMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = "Invalid value"
		}
		errs[name] = msg
	}
	return errs
}

// =============================================================================
// POST /logout - Process Logout
// =============================================================================

// Logout ends the session, tears down its screens and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sess := session.FromRequest(r); sess != nil {
		closed := h.screens.CloseSession(sess.ID)
		h.sessions.Delete(sess.ID)
		h.logger.Debug("user signed out", "user_id", sess.User.ID, "screens_closed", closed)
	}
	session.ClearCookie(w, h.isSecure)

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/login?logout=1")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/login?logout=1", http.StatusSeeOther)
}

// endSession removes a session the backend stopped accepting.
func endSession(w http.ResponseWriter, id string, sessions SessionDeleter, screens SessionCloser, isSecure bool) {
	screens.CloseSession(id)
	sessions.Delete(id)
	session.ClearCookie(w, isSecure)
}

// =============================================================================
// Helper Functions
// =============================================================================

// safeReturnTo returns returnTo when it is a local path, "/" otherwise.
func safeReturnTo(returnTo string) string {
	if returnTo != "" && isSafeRedirectURL(returnTo) && !strings.HasPrefix(returnTo, "/login") {
		return returnTo
	}
	return "/"
}

// isSafeRedirectURL validates that a URL is safe for redirecting.
//
// Prevents open redirect vulnerabilities by ensuring:
// - URL starts with / (relative path)
// - URL doesn't start with // (protocol-relative URL)
// - URL doesn't contain a scheme or host
func isSafeRedirectURL(rawURL string) bool {
	// Must start with /
	if !strings.HasPrefix(rawURL, "/") {
		return false
	}

	// Must not start with // or /\ (protocol-relative URL)
	if strings.HasPrefix(rawURL, "//") || strings.HasPrefix(rawURL, "/\\") {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	// Must not have a scheme (http, https, javascript, etc.) or a host
	return parsed.Scheme == "" && parsed.Host == ""
}

// =============================================================================
// Route Registration Helper
// =============================================================================

// RegisterRoutes registers the auth routes on the provided ServeMux.
// limitLogin wraps POST /login with the login rate limiter.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, limitLogin func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /login", h.ShowLogin)
	mux.Handle("POST /login", limitLogin(http.HandlerFunc(h.Login)))
	mux.HandleFunc("POST /logout", h.Logout)
}
