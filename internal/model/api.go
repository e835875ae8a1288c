// Package model defines the HTTP API envelope and request/response types.
package model

import (
	"time"

	"github.com/llm-observatory/observatory/internal/execution"
)

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"

	// Execution context error codes emitted by the execution middleware and
	// the context extraction boundary.
	ErrCodeMissingExecutionID      = "MISSING_EXECUTION_ID"
	ErrCodeMissingParentSpanID     = "MISSING_PARENT_SPAN_ID"
	ErrCodeSpanCreationFailed      = "EXECUTION_SPAN_CREATION_FAILED"
	ErrCodeMissingExecutionContext = "MISSING_EXECUTION_CONTEXT"
)

// ObservationEvent is the request body for POST /api/v1/observations:
// a normalized telemetry event from one of the upstream subsystems.
type ObservationEvent struct {
	Source      string         `json:"source"`
	EventType   string         `json:"event_type"`
	ExecutionID string         `json:"execution_id"`
	Timestamp   time.Time      `json:"timestamp"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// ObservationResponse acknowledges an accepted observation.
type ObservationResponse struct {
	Status      string `json:"status"`
	ExecutionID string `json:"execution_id"`
}

// SubmitResultRequest is the request body for POST /v1/executions/results.
// The server assembles the spans into an execution.Result and validates it.
type SubmitResultRequest struct {
	RepoSpan   execution.Span   `json:"repo_span"`
	AgentSpans []execution.Span `json:"agent_spans"`
}

// ResultSummary is one row of GET /v1/executions/recent: the verdict of a
// persisted execution result without the full span payload.
type ResultSummary struct {
	ExecutionID      string    `json:"execution_id"`
	RepoName         string    `json:"repo_name"`
	Valid            bool      `json:"valid"`
	AgentSpanCount   int       `json:"agent_span_count"`
	TotalArtifacts   int       `json:"total_artifacts"`
	TotalDurationMs  *int64    `json:"total_duration_ms,omitempty"`
	ValidationErrors []string  `json:"validation_errors"`
	CreatedAt        time.Time `json:"created_at"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres"`
	Uptime   int64  `json:"uptime_seconds"`
}
