package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/alphagate/internal/domain"
	"github.com/alanyoungcy/alphagate/internal/server/handler"
	"github.com/alanyoungcy/alphagate/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port               int
	AdminSecret        string
	RateLimitPerMinute int
	TrustProxyHeaders  bool
	MetricsPath        string // empty disables the metrics route
	// WriteTimeout must exceed the longest venue round trip a webhook can
	// wait on. Zero means 90s.
	WriteTimeout time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health  *handler.HealthHandler
	Webhook *handler.WebhookHandler
	Admin   *handler.AdminHandler
	Metrics http.Handler
}

// Server is the HTTP front end of the gateway.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered. Admin routes sit
// behind the admin secret; every route is rate limited per client IP when a
// limiter is given.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /health", handlers.Health.HealthCheck)

	// Signal intake. Authenticated by HMAC signature inside the handler.
	mux.HandleFunc("POST /webhook", handlers.Webhook.Receive)

	// Admin endpoints.
	admin := middleware.AdminAuth(cfg.AdminSecret)
	mux.Handle("GET /status", admin(http.HandlerFunc(handlers.Admin.Status)))
	mux.Handle("GET /report", admin(http.HandlerFunc(handlers.Admin.Report)))
	mux.Handle("POST /kill", admin(http.HandlerFunc(handlers.Admin.Kill)))
	mux.Handle("POST /resume", admin(http.HandlerFunc(handlers.Admin.Resume)))

	if cfg.MetricsPath != "" && handlers.Metrics != nil {
		mux.Handle("GET "+cfg.MetricsPath, handlers.Metrics)
	}

	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 90 * time.Second
	}

	// Build the middleware chain.
	var h http.Handler = mux
	h = middleware.RateLimit(limiter, cfg.RateLimitPerMinute, time.Minute, cfg.TrustProxyHeaders, logger)(h)
	h = middleware.Recover(logger)(h)
	h = middleware.Logging(logger)(h)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		handler:    h,
		logger:     logger,
	}
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
