package handler

import (
	"log/slog"
	"net/http"

	"github.com/SanmishaTech/jssp-sub001/internal/screen"
)

// DashboardHandler serves the landing page, which links every configured
// screen.
type DashboardHandler struct {
	catalogue *screen.Catalogue
	renderer  TemplateRenderer
	logger    *slog.Logger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(catalogue *screen.Catalogue, renderer TemplateRenderer, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{catalogue: catalogue, renderer: renderer, logger: logger}
}

// RegisterRoutes registers the dashboard and the health check.
//
// Routes:
// - GET /        -> Show (requires a session)
// - GET /health  -> Health
func (h *DashboardHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /{$}", requireUser(http.HandlerFunc(h.Show)))
	mux.HandleFunc("GET /health", h.Health)
}

// Show renders the dashboard.
func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	h.renderer.RenderHTTP(w, "dashboard", newPageData(r, h.catalogue))
}

// Health reports that the process is serving requests.
func (h *DashboardHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
