// Package execution defines the agentic execution tracking model.
//
// It is orthogonal to the OpenTelemetry tracing wired up in
// internal/telemetry: OTEL spans track HTTP requests and LLM calls, while
// execution spans track which repository is running, which agents are doing
// work within it, and what artifacts they produce. A well-formed execution
// always has the shape
//
//	caller span
//	  └─ repo span (this service)
//	      └─ agent span (one or more)
//
// An execution with no agent spans is invalid: there is no evidence that any
// agent did work.
package execution

import (
	"fmt"
	"time"
)

// HTTP header names for execution context propagation. These use a distinct
// prefix from W3C trace context to avoid collision with OTEL propagation.
const (
	HeaderExecutionID      = "x-execution-id"
	HeaderParentSpanID     = "x-execution-parent-span-id"
	HeaderRepoNameOverride = "x-execution-repo-name"
)

// SpanKind discriminates repo-level from agent-level spans.
type SpanKind string

const (
	// SpanKindRepo is the root of execution within this repository.
	SpanKindRepo SpanKind = "repo"
	// SpanKindAgent is one agent performing work within the repo.
	SpanKindAgent SpanKind = "agent"
)

// SpanStatus is the lifecycle state of an execution span.
// Running is the initial state; the others are terminal.
type SpanStatus string

const (
	SpanStatusRunning   SpanStatus = "RUNNING"
	SpanStatusCompleted SpanStatus = "COMPLETED"
	SpanStatusFailed    SpanStatus = "FAILED"
	SpanStatusCancelled SpanStatus = "CANCELLED"
)

// Span is a single node in the execution tree: either the repo-level root or
// one agent's unit of work. Create spans through Builder so required-field
// and kind-dependent invariants hold; mutate only through the lifecycle
// methods below. A span is owned by the goroutine that created it until it is
// handed off into a Result.
type Span struct {
	SpanID      string `json:"span_id"`
	ExecutionID string `json:"execution_id"`
	// ParentSpanID is the caller's span ID for repo spans and the repo span
	// ID for agent spans. Required at build time; emptiness is surfaced by
	// Result.Validate, not here.
	ParentSpanID string         `json:"parent_span_id"`
	Kind         SpanKind       `json:"kind"`
	RepoName     string         `json:"repo_name"`
	AgentName    *string        `json:"agent_name,omitempty"` // set iff Kind == SpanKindAgent
	Status       SpanStatus     `json:"status"`
	StartTime    time.Time      `json:"start_time"`
	EndTime      *time.Time     `json:"end_time,omitempty"`
	DurationMs   *int64         `json:"duration_ms,omitempty"`
	Artifacts    []Artifact     `json:"artifacts"`
	Events       []Event        `json:"events"`
	Attributes   map[string]any `json:"attributes"`
	ErrorMessage *string        `json:"error_message,omitempty"` // set iff Status == SpanStatusFailed
}

// normalize replaces nil collections with empty ones. Spans decoded from
// JSON may omit artifacts/events/attributes entirely; those keys must still
// serialize as [] / {}, never null.
func (s *Span) normalize() {
	if s.Artifacts == nil {
		s.Artifacts = []Artifact{}
	}
	for i := range s.Artifacts {
		if s.Artifacts[i].Metadata == nil {
			s.Artifacts[i].Metadata = map[string]any{}
		}
	}
	if s.Events == nil {
		s.Events = []Event{}
	}
	for i := range s.Events {
		if s.Events[i].Attributes == nil {
			s.Events[i].Attributes = map[string]any{}
		}
	}
	if s.Attributes == nil {
		s.Attributes = map[string]any{}
	}
}

// Complete marks the span completed, setting end time and duration.
// Not idempotent: calling it on an already-terminal span overwrites the end
// time and duration, which is caller misuse.
func (s *Span) Complete() {
	now := time.Now().UTC()
	s.EndTime = &now
	s.DurationMs = durationMs(s.StartTime, now)
	s.Status = SpanStatusCompleted
}

// Fail marks the span failed with the given error message. Same end-time
// semantics as Complete.
func (s *Span) Fail(message string) {
	now := time.Now().UTC()
	s.EndTime = &now
	s.DurationMs = durationMs(s.StartTime, now)
	s.Status = SpanStatusFailed
	s.ErrorMessage = &message
}

// AttachArtifact appends an artifact to the span. Only agent spans carry
// artifacts; attaching to a repo span returns ErrInvalidOperation.
//
// The artifact's AgentSpanID is not checked against s.SpanID; cross-attribution
// is the caller's responsibility.
func (s *Span) AttachArtifact(a Artifact) error {
	if s.Kind != SpanKindAgent {
		return fmt.Errorf("execution: artifacts can only be attached to agent spans (kind=%s): %w",
			s.Kind, ErrInvalidOperation)
	}
	s.Artifacts = append(s.Artifacts, a)
	return nil
}

// RecordEvent appends an event with the current timestamp. Events preserve
// append order.
func (s *Span) RecordEvent(name string, attributes map[string]any) {
	if attributes == nil {
		attributes = map[string]any{}
	}
	s.Events = append(s.Events, Event{
		Name:       name,
		Timestamp:  time.Now().UTC(),
		Attributes: attributes,
	})
}

// IsCompleted reports whether the span completed successfully.
func (s *Span) IsCompleted() bool { return s.Status == SpanStatusCompleted }

// IsFailed reports whether the span failed.
func (s *Span) IsFailed() bool { return s.Status == SpanStatusFailed }

// IsTerminal reports whether the span has reached a terminal status.
func (s *Span) IsTerminal() bool {
	return s.Status == SpanStatusCompleted || s.Status == SpanStatusFailed || s.Status == SpanStatusCancelled
}

// durationMs returns the absolute start→end delta in integer milliseconds.
func durationMs(start, end time.Time) *int64 {
	ms := end.Sub(start).Milliseconds()
	if ms < 0 {
		ms = -ms
	}
	return &ms
}
