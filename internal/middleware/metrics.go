package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// MetricsAuthMiddleware guards GET /metrics with HTTP basic auth so that
// backend call volumes and session counts are only visible to the scraper.
type MetricsAuthMiddleware struct {
	enabled bool
	user    [sha256.Size]byte
	pass    [sha256.Size]byte
	logger  *slog.Logger
}

// NewMetricsAuthMiddleware creates the middleware. With both credentials
// empty, the endpoint is left open.
func NewMetricsAuthMiddleware(username, password string, logger *slog.Logger) *MetricsAuthMiddleware {
	return &MetricsAuthMiddleware{
		enabled: username != "" || password != "",
		user:    sha256.Sum256([]byte(username)),
		pass:    sha256.Sum256([]byte(password)),
		logger:  logger,
	}
}

// Enabled reports whether credentials are required.
func (m *MetricsAuthMiddleware) Enabled() bool {
	return m.enabled
}

// Handler returns middleware that requires basic authentication.
func (m *MetricsAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		// Digests have a fixed length, so the comparison time does not
		// depend on the length of the configured credentials.
		u := sha256.Sum256([]byte(user))
		p := sha256.Sum256([]byte(pass))
		match := subtle.ConstantTimeCompare(u[:], m.user[:]) & subtle.ConstantTimeCompare(p[:], m.pass[:])
		if !ok || match != 1 {
			m.logger.Warn("metrics auth failed", "ip", getClientIP(r))
			w.Header().Set("WWW-Authenticate", `Basic realm="jssp-console metrics", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
