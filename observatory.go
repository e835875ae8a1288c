// Package observatory is the public API for embedding the Observatory server.
//
// Consumers import this package to construct and extend the server without
// forking it:
//
//	app, err := observatory.New(
//	    observatory.WithVersion(version),
//	    observatory.WithLogger(logger),
//	    observatory.WithResultHook(myHook),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: observatory (root)
// imports internal/*, but internal/* never imports observatory (root).
// Public types (Span, ExecutionResult) are standalone structs with no
// internal imports; conversion helpers live here because this is the only
// file that sees both sides of the boundary.
package observatory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/llm-observatory/observatory/api"
	"github.com/llm-observatory/observatory/internal/config"
	"github.com/llm-observatory/observatory/internal/execution"
	"github.com/llm-observatory/observatory/internal/ratelimit"
	"github.com/llm-observatory/observatory/internal/server"
	"github.com/llm-observatory/observatory/internal/storage"
	"github.com/llm-observatory/observatory/internal/telemetry"
	"github.com/llm-observatory/observatory/migrations"
)

// App is the Observatory server lifecycle. Construct with New(), run with Run().
// App has no public fields — use New() options to configure it.
type App struct {
	cfg          config.Config
	db           *storage.DB // nil when the result sink is disabled
	srv          *server.Server
	limiter      ratelimit.Limiter // nil when rate limiting is disabled
	otelShutdown func(context.Context) error
	logger       *slog.Logger
	version      string
}

// New initialises the Observatory server. It connects the result sink (if
// configured), runs migrations, wires all subsystems, and returns a
// ready-to-run App. It does NOT start any goroutines or accept HTTP
// connections — call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.repoName != "" {
		cfg.RepoName = o.repoName
	}
	if o.enforce != nil {
		cfg.ExecutionEnforce = *o.enforce
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("observatory starting",
		"version", version,
		"port", cfg.Port,
		"repo_name", cfg.RepoName,
		"execution_enforce", cfg.ExecutionEnforce,
	)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Connect the result sink (optional — disabled if DATABASE_URL is empty).
	var db *storage.DB
	if cfg.DatabaseURL != "" {
		db, err = storage.New(context.Background(), cfg.DatabaseURL, logger)
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("storage: %w", err)
		}

		if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("migrations: %w", err)
		}

		// Run extra migrations after the embedded ones.
		for i, extraFS := range o.extraMigrations {
			if err := db.RunMigrations(context.Background(), extraFS); err != nil {
				db.Close()
				_ = otelShutdown(context.Background())
				return nil, fmt.Errorf("extra migrations[%d]: %w", i, err)
			}
		}
		logger.Info("result sink: enabled")
	} else {
		logger.Info("result sink: disabled (no DATABASE_URL)")
	}

	// Rate limiter.
	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		logger.Info("rate limiting: disabled")
	}

	// Adapt result hooks from the public signature to the internal one.
	var resultHooks []server.ResultHook
	for _, h := range o.resultHooks {
		h := h
		resultHooks = append(resultHooks, func(ctx context.Context, r *execution.Result) {
			h(ctx, toPublicResult(r))
		})
	}

	// Adapt middlewares from observatory.Middleware to the internal form.
	var middlewares []func(http.Handler) http.Handler
	for _, mw := range o.middlewares {
		mw := mw
		middlewares = append(middlewares, func(h http.Handler) http.Handler { return mw(h) })
	}

	srv := server.New(server.ServerConfig{
		DB:                  db,
		Logger:              logger,
		RateLimiter:         limiter,
		OpenAPISpec:         api.OpenAPISpec,
		ResultHooks:         resultHooks,
		Middlewares:         middlewares,
		RepoName:            cfg.RepoName,
		ExecutionEnforce:    cfg.ExecutionEnforce,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	return &App{
		cfg:          cfg,
		db:           db,
		srv:          srv,
		limiter:      limiter,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Handler returns the root HTTP handler, for mounting the App inside an
// existing server or for tests.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

// Run starts the HTTP server and blocks until ctx is cancelled or a fatal
// server error occurs. On return, Shutdown is called automatically —
// callers should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown drains in-flight HTTP requests, then closes the rate limiter,
// the result sink, and the OTEL providers.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("observatory shutting down")

	httpCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}

	if a.limiter != nil {
		_ = a.limiter.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	_ = a.otelShutdown(context.Background())

	a.logger.Info("observatory stopped")
	return nil
}

// ── Type converters ────────────────────────────────────────────────────────────

// toPublicSpan converts an internal execution.Span to the public observatory.Span.
// Lives here because this is the only file that imports both sides of the boundary.
func toPublicSpan(s execution.Span) Span {
	return Span{
		SpanID:        s.SpanID,
		ExecutionID:   s.ExecutionID,
		ParentSpanID:  s.ParentSpanID,
		Kind:          string(s.Kind),
		RepoName:      s.RepoName,
		AgentName:     s.AgentName,
		Status:        string(s.Status),
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		DurationMs:    s.DurationMs,
		ArtifactCount: len(s.Artifacts),
		EventCount:    len(s.Events),
		ErrorMessage:  s.ErrorMessage,
	}
}

// toPublicResult converts an internal execution.Result to the public
// observatory.ExecutionResult.
func toPublicResult(r *execution.Result) ExecutionResult {
	agentSpans := make([]Span, len(r.AgentSpans))
	for i, s := range r.AgentSpans {
		agentSpans[i] = toPublicSpan(s)
	}
	return ExecutionResult{
		ExecutionID:      r.ExecutionID,
		RepoSpan:         toPublicSpan(r.RepoSpan),
		AgentSpans:       agentSpans,
		Valid:            r.Valid,
		ValidationErrors: append([]string(nil), r.ValidationErrors...),
		TotalArtifacts:   r.TotalArtifacts,
		TotalDurationMs:  r.TotalDurationMs,
	}
}
