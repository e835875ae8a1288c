package observatory

import (
	"context"
	"net/http"
	"time"
)

// Span is the public representation of an execution span.
// It is a curated view of the internal span for use in extension hooks.
// No internal package imports — safe to use from outside the module.
type Span struct {
	SpanID       string
	ExecutionID  string
	ParentSpanID string
	Kind         string // "repo" or "agent"
	RepoName     string
	AgentName    *string // set only on agent spans
	Status       string  // RUNNING, COMPLETED, FAILED, CANCELLED
	StartTime    time.Time
	EndTime      *time.Time
	DurationMs   *int64

	// Counts rather than full payloads: hooks that need artifact or event
	// contents should read the persisted result from the sink.
	ArtifactCount int
	EventCount    int

	ErrorMessage *string
}

// ExecutionResult is the public representation of a validated execution
// result, as delivered to ResultHook implementations.
type ExecutionResult struct {
	ExecutionID      string
	RepoSpan         Span
	AgentSpans       []Span
	Valid            bool
	ValidationErrors []string
	TotalArtifacts   int
	TotalDurationMs  *int64
}

// ResultHook receives every validated result submission. Failures must be
// handled internally — hooks have no way to fail the originating request.
type ResultHook func(ctx context.Context, result ExecutionResult)

// Middleware wraps the root HTTP handler.
// Applied outermost (before routing), so it sees all requests including /health.
type Middleware func(http.Handler) http.Handler
