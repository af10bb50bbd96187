package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// routeWords are the fixed segments of screen routes. Any other segment after
// the screen slug is a record id and is folded into {id}.
var routeWords = map[string]bool{
	"table":  true,
	"search": true,
	"new":    true,
	"dialog": true,
	"close":  true,
	"edit":   true,
	"delete": true,
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter for middleware compatibility
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// NormalizePath maps a request path onto its route shape so that record ids
// and asset names do not become label values:
//
//	/staff/42/edit   -> /staff/{id}/edit
//	/static/app.css  -> /static/{file}
func NormalizePath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "/"
	}
	if parts[0] == "static" {
		return "/static/{file}"
	}
	for i := 1; i < len(parts); i++ {
		if !routeWords[parts[i]] {
			parts[i] = "{id}"
		}
	}
	return "/" + strings.Join(parts, "/")
}

// Middleware records HTTP request metrics. Requests that matched no route are
// counted under a single path label.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip metrics endpoint to avoid recursion
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		path := "unmatched"
		if rw.status != http.StatusNotFound && rw.status != http.StatusMethodNotAllowed {
			path = NormalizePath(r.URL.Path)
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
