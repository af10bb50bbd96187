package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SanmishaTech/jssp-sub001/internal"
	"github.com/SanmishaTech/jssp-sub001/internal/apiclient"
	"github.com/SanmishaTech/jssp-sub001/internal/csrf"
	"github.com/SanmishaTech/jssp-sub001/internal/handler"
	"github.com/SanmishaTech/jssp-sub001/internal/listview"
	"github.com/SanmishaTech/jssp-sub001/internal/metrics"
	"github.com/SanmishaTech/jssp-sub001/internal/middleware"
	"github.com/SanmishaTech/jssp-sub001/internal/screen"
	"github.com/SanmishaTech/jssp-sub001/internal/session"
	"github.com/SanmishaTech/jssp-sub001/web"
)

// formOverheadBytes is added to the upload limit to bound request bodies.
const formOverheadBytes = 1 << 20

func run() error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	isSecure := !cfg.IsDevelopment()

	// Screen catalogue
	var catalogue *screen.Catalogue
	if cfg.ScreensFile != "" {
		catalogue, err = screen.LoadFile(cfg.ScreensFile)
	} else {
		catalogue, err = screen.Default()
	}
	if err != nil {
		return fmt.Errorf("screen catalogue failed: %w", err)
	}
	logger.Info("Screens loaded", "count", len(catalogue.All()))

	// Backend client
	client, err := apiclient.New(apiclient.Config{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.APITimeout,
		RateLimit: cfg.APIRateLimit,
		Burst:     cfg.APIRateBurst,
	}, logger)
	if err != nil {
		return fmt.Errorf("api client initialization failed: %w", err)
	}

	// Sessions and screen instances
	store := session.NewStore(cfg.SessionTTL, logger)
	registry, err := listview.NewRegistry(listview.RegistryConfig{
		Catalogue:   catalogue,
		Client:      client,
		IdleTTL:     cfg.InstanceIdleTTL,
		MaxImageDim: cfg.ImageMaxDimension,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("screen registry initialization failed: %w", err)
	}
	store.OnExpire(func(id string) {
		registry.CloseSession(id)
	})

	// Initialize template renderer
	var templates fs.FS
	if cfg.TemplatesDir != "" {
		templates = os.DirFS(cfg.TemplatesDir)
	} else {
		templates = web.Templates()
	}
	renderer, err := handler.NewRenderer(handler.RendererConfig{
		FS:     templates,
		Logger: logger,
		IsDev:  cfg.IsDevelopment() && cfg.TemplatesDir != "",
	})
	if err != nil {
		return fmt.Errorf("renderer initialization failed: %w", err)
	}
	logger.Info("Templates loaded", "count", len(renderer.ListTemplates()))

	// Initialize middleware
	sessionMw := middleware.NewSessionMiddleware(store, logger, isSecure)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure, origin(cfg.APIBaseURL))
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword, logger)
	loginLimiter := middleware.NewLoginRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow, logger)
	protector := csrf.NewProtector(isSecure, logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.CSRFFailedResponse(w, r, logger)
	}))

	if !metricsAuth.Enabled() {
		logger.Warn("METRICS_USERNAME/METRICS_PASSWORD not set, /metrics is unprotected")
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(client, store, registry, renderer, logger, isSecure)
	dashboardHandler := handler.NewDashboardHandler(catalogue, renderer, logger)
	screenHandler := handler.NewScreenHandler(handler.ScreenHandlerConfig{
		Catalogue:      catalogue,
		Registry:       registry,
		Client:         client,
		Sessions:       store,
		Renderer:       renderer,
		Logger:         logger,
		UploadMaxBytes: cfg.UploadMaxBytes,
		IsSecure:       isSecure,
	})

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(web.Static())))

	// Metrics
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	// Auth routes (public - no session required)
	authHandler.RegisterRoutes(mux, loginLimiter.Limit)

	// Console (requires a session)
	dashboardHandler.RegisterRoutes(mux, sessionMw.Require)
	screenHandler.RegisterRoutes(mux, sessionMw.Require)

	app := middleware.Stack(
		securityMw.Handler,
		metrics.Middleware,
		middleware.MaxBodyBytes(cfg.UploadMaxBytes+formOverheadBytes),
		sessionMw.Load,
		loggingMw.Handler,
		protector.Handler,
	)(mux)

	// Background sweepers
	go store.Run(ctx, time.Minute)
	go registry.Run(ctx)
	go loginLimiter.Run(ctx)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server started", "address", server.Addr, "env", cfg.Env, "api", cfg.APIBaseURL)
	err = serve(server, sigChan, 30*time.Second, logger)

	// Stop the sweepers; the registry cancels in-flight loads of every screen.
	stop()
	registry.Shutdown()

	if err != nil {
		return err
	}
	logger.Info("Graceful shutdown complete")
	return nil
}

// serve runs server until a signal arrives on sig, then shuts it down within
// grace. It returns early with the error if the server cannot serve at all.
func serve(server *http.Server, sig <-chan os.Signal, grace time.Duration, logger *slog.Logger) error {
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for an interrupt signal or a server that could not start
	select {
	case <-sig:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	case err := <-serverErr:
		logger.Error("Server failed", "error", err)
		return fmt.Errorf("serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	return nil
}

// origin returns scheme://host of rawURL, the source images are served from.
func origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
