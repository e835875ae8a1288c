package execution

import (
	"time"

	"github.com/google/uuid"
)

// Builder constructs a Span with required-field validation. Zero value is
// usable: NewSpan().ExecutionID("e").ParentSpanID("p").Kind(SpanKindRepo).
// RepoName("r").Build().
type Builder struct {
	spanID       string
	executionID  string
	parentSpanID *string
	kind         SpanKind
	repoName     string
	agentName    *string
	status       SpanStatus
	startTime    time.Time
	endTime      *time.Time
	artifacts    []Artifact
	events       []Event
	attributes   map[string]any
	errorMessage *string
}

// NewSpan returns a new span builder.
func NewSpan() *Builder {
	return &Builder{}
}

// SpanID sets an explicit span ID. If not set, a random UUID is generated.
func (b *Builder) SpanID(id string) *Builder {
	b.spanID = id
	return b
}

// ExecutionID sets the top-level execution correlation ID (required).
func (b *Builder) ExecutionID(id string) *Builder {
	b.executionID = id
	return b
}

// ParentSpanID sets the parent span ID (required). An empty string satisfies
// the builder; validation flags it later.
func (b *Builder) ParentSpanID(id string) *Builder {
	b.parentSpanID = &id
	return b
}

// Kind sets the span kind, repo or agent (required).
func (b *Builder) Kind(kind SpanKind) *Builder {
	b.kind = kind
	return b
}

// RepoName sets the repository name (required).
func (b *Builder) RepoName(name string) *Builder {
	b.repoName = name
	return b
}

// AgentName sets the agent name (required for agent spans).
func (b *Builder) AgentName(name string) *Builder {
	b.agentName = &name
	return b
}

// Status overrides the initial status (default SpanStatusRunning).
func (b *Builder) Status(status SpanStatus) *Builder {
	b.status = status
	return b
}

// StartTime overrides the start time (default: now).
func (b *Builder) StartTime(t time.Time) *Builder {
	b.startTime = t
	return b
}

// EndTime sets the end time; duration is derived at Build.
func (b *Builder) EndTime(t time.Time) *Builder {
	b.endTime = &t
	return b
}

// Artifact adds an artifact.
func (b *Builder) Artifact(a Artifact) *Builder {
	b.artifacts = append(b.artifacts, a)
	return b
}

// Event adds an event.
func (b *Builder) Event(e Event) *Builder {
	b.events = append(b.events, e)
	return b
}

// Attribute adds a single attribute.
func (b *Builder) Attribute(key string, value any) *Builder {
	if b.attributes == nil {
		b.attributes = map[string]any{}
	}
	b.attributes[key] = value
	return b
}

// ErrorMessage sets the error message (for spans built in a failed state).
func (b *Builder) ErrorMessage(msg string) *Builder {
	b.errorMessage = &msg
	return b
}

// Build validates required fields and produces the span. It fails fast with a
// MissingFieldError naming the first missing field, checked in order:
// execution_id, parent_span_id, kind, repo_name, then agent_name for agent
// spans. A span created without an explicit status starts Running; without an
// explicit start time it starts now.
func (b *Builder) Build() (*Span, error) {
	if b.executionID == "" {
		return nil, &MissingFieldError{Field: "execution_id"}
	}
	if b.parentSpanID == nil {
		return nil, &MissingFieldError{Field: "parent_span_id"}
	}
	if b.kind == "" {
		return nil, &MissingFieldError{Field: "kind"}
	}
	if b.repoName == "" {
		return nil, &MissingFieldError{Field: "repo_name"}
	}
	if b.kind == SpanKindAgent && b.agentName == nil {
		return nil, &MissingFieldError{Field: "agent_name"}
	}

	spanID := b.spanID
	if spanID == "" {
		spanID = uuid.NewString()
	}
	startTime := b.startTime
	if startTime.IsZero() {
		startTime = time.Now().UTC()
	}
	status := b.status
	if status == "" {
		status = SpanStatusRunning
	}

	var duration *int64
	if b.endTime != nil {
		duration = durationMs(startTime, *b.endTime)
	}

	artifacts := b.artifacts
	if artifacts == nil {
		artifacts = []Artifact{}
	}
	events := b.events
	if events == nil {
		events = []Event{}
	}
	attributes := b.attributes
	if attributes == nil {
		attributes = map[string]any{}
	}

	return &Span{
		SpanID:       spanID,
		ExecutionID:  b.executionID,
		ParentSpanID: *b.parentSpanID,
		Kind:         b.kind,
		RepoName:     b.repoName,
		AgentName:    b.agentName,
		Status:       status,
		StartTime:    startTime,
		EndTime:      b.endTime,
		DurationMs:   duration,
		Artifacts:    artifacts,
		Events:       events,
		Attributes:   attributes,
		ErrorMessage: b.errorMessage,
	}, nil
}
