package observatory

import (
	"io/fs"
	"log/slog"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	port            int
	databaseURL     string
	repoName        string
	enforce         *bool
	logger          *slog.Logger
	version         string
	resultHooks     []ResultHook
	middlewares     []Middleware
	extraMigrations []fs.FS
}

// WithPort overrides the TCP port from config (OBSERVATORY_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides the result sink connection string from config
// (DATABASE_URL env var).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithRepoName overrides the repo name recorded on repo-level execution
// spans (OBSERVATORY_REPO_NAME env var).
func WithRepoName(name string) Option {
	return func(o *resolvedOptions) { o.repoName = name }
}

// WithEnforcement overrides the execution context enforcement mode
// (OBSERVATORY_EXECUTION_ENFORCE env var). Enforcing rejects requests
// that do not carry execution headers; permissive lets them through
// untracked.
func WithEnforcement(enforce bool) Option {
	return func(o *resolvedOptions) { o.enforce = &enforce }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithResultHook registers a hook invoked after every validated result
// submission. Multiple hooks may be registered; all receive every result.
// Hooks run synchronously before the response is written and must not
// block for long.
func WithResultHook(hook ResultHook) Option {
	return func(o *resolvedOptions) { o.resultHooks = append(o.resultHooks, hook) }
}

// WithMiddleware registers an outermost HTTP middleware.
// Multiple middlewares may be registered. Applied in registration order:
// the first-registered middleware is outermost (called first by every request).
func WithMiddleware(mw Middleware) Option {
	return func(o *resolvedOptions) { o.middlewares = append(o.middlewares, mw) }
}

// WithExtraMigrations adds an additional SQL migration filesystem to run
// after the embedded migrations. Multiple filesystems may be registered;
// they are applied in registration order.
func WithExtraMigrations(dir fs.FS) Option {
	return func(o *resolvedOptions) { o.extraMigrations = append(o.extraMigrations, dir) }
}
