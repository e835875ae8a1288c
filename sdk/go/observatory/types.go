package observatory

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Execution context headers. Enforcing servers require the first two on
// every operation.
const (
	HeaderExecutionID      = "x-execution-id"
	HeaderParentSpanID     = "x-execution-parent-span-id"
	HeaderRepoNameOverride = "x-execution-repo-name"
)

// Span kinds.
const (
	SpanKindRepo  = "repo"
	SpanKindAgent = "agent"
)

// Span statuses.
const (
	SpanStatusRunning   = "RUNNING"
	SpanStatusCompleted = "COMPLETED"
	SpanStatusFailed    = "FAILED"
	SpanStatusCancelled = "CANCELLED"
)

// Artifact content locations.
const (
	ContentLocationInline    = "inline"
	ContentLocationReference = "reference"
)

// Span mirrors the server's execution span wire format.
type Span struct {
	SpanID       string         `json:"span_id"`
	ExecutionID  string         `json:"execution_id"`
	ParentSpanID string         `json:"parent_span_id"`
	Kind         string         `json:"kind"`
	RepoName     string         `json:"repo_name"`
	AgentName    *string        `json:"agent_name,omitempty"`
	Status       string         `json:"status"`
	StartTime    time.Time      `json:"start_time"`
	EndTime      *time.Time     `json:"end_time,omitempty"`
	DurationMs   *int64         `json:"duration_ms,omitempty"`
	Artifacts    []Artifact     `json:"artifacts"`
	Events       []Event        `json:"events"`
	Attributes   map[string]any `json:"attributes"`
	ErrorMessage *string        `json:"error_message,omitempty"`
}

// Artifact is an output produced by an agent span. Content is flattened
// on the wire: content_location selects which of data/uri is present.
type Artifact struct {
	ArtifactID      string         `json:"artifact_id"`
	AgentSpanID     string         `json:"agent_span_id"`
	Name            string         `json:"name"`
	ContentType     string         `json:"content_type"`
	ContentHash     string         `json:"content_hash"`
	SizeBytes       uint64         `json:"size_bytes"`
	ContentLocation string         `json:"content_location"`
	Data            string         `json:"data,omitempty"`
	URI             string         `json:"uri,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	Metadata        map[string]any `json:"metadata"`
}

// MarshalJSON always emits the active content variant's field: "data" for
// inline artifacts (even when empty), "uri" for references, never both.
func (a Artifact) MarshalJSON() ([]byte, error) {
	type alias Artifact
	w := struct {
		alias
		Data *string `json:"data,omitempty"`
		URI  *string `json:"uri,omitempty"`
	}{alias: alias(a)}
	switch a.ContentLocation {
	case ContentLocationInline:
		w.Data = &a.Data
	case ContentLocationReference:
		w.URI = &a.URI
	}
	return json.Marshal(w)
}

// Event is a point-in-time occurrence recorded on a span.
type Event struct {
	Name       string         `json:"name"`
	Timestamp  time.Time      `json:"timestamp"`
	Attributes map[string]any `json:"attributes"`
}

// ExecutionResult is the server's validated verdict over one execution.
type ExecutionResult struct {
	ExecutionID      string   `json:"execution_id"`
	RepoSpan         Span     `json:"repo_span"`
	AgentSpans       []Span   `json:"agent_spans"`
	Valid            bool     `json:"valid"`
	ValidationErrors []string `json:"validation_errors"`
	TotalArtifacts   int      `json:"total_artifacts"`
	TotalDurationMs  *int64   `json:"total_duration_ms,omitempty"`
}

// ResultSummary is one row of the recent-results listing.
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

// SubmitResultRequest is the body for result submission.
type SubmitResultRequest struct {
	RepoSpan   Span   `json:"repo_span"`
	AgentSpans []Span `json:"agent_spans"`
}

// ObservationEvent is a normalized telemetry event from an upstream
// subsystem.
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

// HealthResponse is the server's health report.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres"`
	Uptime   int64  `json:"uptime_seconds"`
}

// NewAgentSpan creates an agent span in RUNNING state with a fresh span ID
// and the current time as start time. The caller completes or fails it
// before submission.
func NewAgentSpan(executionID, repoSpanID, repoName, agentName string) *Span {
	name := agentName
	return &Span{
		SpanID:       uuid.NewString(),
		ExecutionID:  executionID,
		ParentSpanID: repoSpanID,
		Kind:         SpanKindAgent,
		RepoName:     repoName,
		AgentName:    &name,
		Status:       SpanStatusRunning,
		StartTime:    time.Now().UTC(),
		Artifacts:    []Artifact{},
		Events:       []Event{},
		Attributes:   map[string]any{},
	}
}

// Complete marks the span COMPLETED and stamps end time and duration.
func (s *Span) Complete() {
	s.finish(SpanStatusCompleted, nil)
}

// Fail marks the span FAILED with the given message and stamps end time
// and duration.
func (s *Span) Fail(message string) {
	s.finish(SpanStatusFailed, &message)
}

func (s *Span) finish(status string, errMsg *string) {
	now := time.Now().UTC()
	s.Status = status
	s.EndTime = &now
	s.ErrorMessage = errMsg
	ms := now.Sub(s.StartTime).Milliseconds()
	if ms < 0 {
		ms = -ms
	}
	s.DurationMs = &ms
}

// AddInlineArtifact attaches an artifact with inline content to the span,
// computing the content hash and size from the data.
func (s *Span) AddInlineArtifact(name, contentType string, data []byte) *Artifact {
	sum := sha256.Sum256(data)
	s.Artifacts = append(s.Artifacts, Artifact{
		ArtifactID:      uuid.NewString(),
		AgentSpanID:     s.SpanID,
		Name:            name,
		ContentType:     contentType,
		ContentHash:     hex.EncodeToString(sum[:]),
		SizeBytes:       uint64(len(data)),
		ContentLocation: ContentLocationInline,
		Data:            string(data),
		CreatedAt:       time.Now().UTC(),
		Metadata:        map[string]any{},
	})
	return &s.Artifacts[len(s.Artifacts)-1]
}

// AddReferenceArtifact attaches an artifact whose content lives at an
// external URI. The caller supplies the content hash and size.
func (s *Span) AddReferenceArtifact(name, contentType, uri, contentHash string, sizeBytes uint64) *Artifact {
	s.Artifacts = append(s.Artifacts, Artifact{
		ArtifactID:      uuid.NewString(),
		AgentSpanID:     s.SpanID,
		Name:            name,
		ContentType:     contentType,
		ContentHash:     contentHash,
		SizeBytes:       sizeBytes,
		ContentLocation: ContentLocationReference,
		URI:             uri,
		CreatedAt:       time.Now().UTC(),
		Metadata:        map[string]any{},
	})
	return &s.Artifacts[len(s.Artifacts)-1]
}

// RecordEvent appends a named event with the current timestamp.
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
