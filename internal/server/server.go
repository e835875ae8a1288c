package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/llm-observatory/observatory/internal/ratelimit"
	"github.com/llm-observatory/observatory/internal/storage"
)

// Server is the Observatory HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): DB.
type ServerConfig struct {
	// Required dependencies.
	Logger *slog.Logger

	// Optional dependencies (nil = disabled).
	DB          *storage.DB
	RateLimiter ratelimit.Limiter

	// ResultHooks are invoked after every validated result submission.
	ResultHooks []ResultHook

	// Middlewares are applied outermost (before routing), first-registered
	// outermost. Use for license enforcement or cross-cutting headers.
	Middlewares []func(http.Handler) http.Handler

	// OpenAPISpec is the embedded OpenAPI YAML, served at /openapi.yaml.
	OpenAPISpec []byte

	// Execution tracking settings.
	RepoName         string
	ExecutionEnforce bool

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		DB:                  cfg.DB,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		ResultHooks:         cfg.ResultHooks,
		OpenAPISpec:         cfg.OpenAPISpec,
	})

	// Intake endpoints are rate limited by client IP; reads are not.
	intakeRL := ratelimit.Middleware(cfg.RateLimiter, ratelimit.IPKeyFunc,
		func(r *http.Request) string { return RequestIDFromContext(r.Context()) })

	mux := http.NewServeMux()

	// Normalized telemetry intake.
	mux.Handle("POST /api/v1/observations", intakeRL(http.HandlerFunc(h.HandleObservation)))

	// Execution results: submission requires an established execution
	// context, reads do not.
	mux.Handle("POST /v1/executions/results", intakeRL(http.HandlerFunc(h.HandleSubmitResult)))
	mux.HandleFunc("GET /v1/executions/{execution_id}/result", h.HandleGetResult)
	mux.HandleFunc("GET /v1/executions/recent", h.HandleRecentResults)

	// API documentation.
	mux.HandleFunc("GET /openapi.yaml", h.HandleOpenAPISpec)

	// Health (exempt from execution context enforcement).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → tracing → logging → execution context → recovery → handler.
	execCfg := ExecutionConfig{
		RepoName: cfg.RepoName,
		Enforce:  cfg.ExecutionEnforce,
	}
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = executionContextMiddleware(execCfg, cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	for i := len(cfg.Middlewares) - 1; i >= 0; i-- {
		handler = cfg.Middlewares[i](handler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Handlers returns the underlying Handlers.
func (s *Server) Handlers() *Handlers {
	return s.handlers
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
