// Package csrf provides CSRF protection using the double-submit cookie pattern.
//
// A random token is set in a cookie and repeated by every state-changing
// request, either in the csrf_token form field (plain forms) or in the
// X-CSRF-Token header (htmx, configured once on the page body). A cross-site
// attacker can make the browser send the cookie but cannot read it, so it
// cannot repeat the token.
package csrf

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
)

const (
	// CookieName is the name of the CSRF token cookie.
	CookieName = "csrf_token"

	// FormFieldName is the name of the CSRF token form field.
	FormFieldName = "csrf_token"

	// HeaderName is the request header htmx sends the token in.
	HeaderName = "X-CSRF-Token"

	// TokenLength is the number of random bytes for the token (32 bytes = 256 bits).
	TokenLength = 32

	// CookieMaxAge is the lifetime of the CSRF cookie (12 hours), long
	// enough for a working day on one console tab.
	CookieMaxAge = 12 * 3600
)

// GenerateToken generates a cryptographically secure random token,
// base64 URL-encoded (43 characters).
func GenerateToken() (string, error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("csrf: generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidateToken compares the cookie token with the submitted token in
// constant time.
func ValidateToken(cookieToken, submitted string) bool {
	if cookieToken == "" || submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(submitted)) == 1
}

// ValidateRequest checks the submitted token of r against its cookie. The
// header is preferred; the form field is read only when the header is absent.
func ValidateRequest(r *http.Request) bool {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return false
	}
	submitted := r.Header.Get(HeaderName)
	if submitted == "" {
		submitted = r.FormValue(FormFieldName)
	}
	return ValidateToken(cookie.Value, submitted)
}

// SetCookie sets the CSRF token cookie on the response.
func SetCookie(w http.ResponseWriter, token string, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   CookieMaxAge,
		HttpOnly: true, // read server-side and rendered into the page
		Secure:   isSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

type tokenKey struct{}

// Token returns the token of the current request, for templates.
func Token(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey{}).(string)
	return t
}

// WithToken stores a token in ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// Protector is the CSRF middleware.
type Protector struct {
	isSecure bool
	logger   *slog.Logger
	onFail   http.Handler
}

// NewProtector creates the middleware. onFail writes the rejection response;
// when nil a plain 403 is sent.
func NewProtector(isSecure bool, logger *slog.Logger, onFail http.Handler) *Protector {
	if onFail == nil {
		onFail = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Invalid or missing CSRF token", http.StatusForbidden)
		})
	}
	return &Protector{isSecure: isSecure, logger: logger, onFail: onFail}
}

// Handler makes sure every request carries a token cookie and rejects
// unsafe requests whose submitted token does not match it.
func (p *Protector) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
		default:
			if !ValidateRequest(r) {
				p.logger.Warn("csrf validation failed", "method", r.Method, "path", r.URL.Path)
				p.onFail.ServeHTTP(w, r)
				return
			}
		}

		token := ""
		if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
			token = c.Value
		} else {
			t, err := GenerateToken()
			if err != nil {
				p.logger.Error("csrf token generation failed", "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			token = t
			SetCookie(w, token, p.isSecure)
		}

		next.ServeHTTP(w, r.WithContext(WithToken(r.Context(), token)))
	})
}
