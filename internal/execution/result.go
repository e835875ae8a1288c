package execution

import "fmt"

// Result is the final output of an execution within this repository: the
// repo-level span, all agent spans, and the structural validation verdict.
// JSON-serializable and append-only; causal order is carried by parent_span_id.
type Result struct {
	ExecutionID string `json:"execution_id"`
	RepoSpan    Span   `json:"repo_span"`
	// AgentSpans are expected in start-time order, supplied by the caller.
	AgentSpans       []Span   `json:"agent_spans"`
	Valid            bool     `json:"valid"`
	ValidationErrors []string `json:"validation_errors"`
	TotalArtifacts   int      `json:"total_artifacts"`
	TotalDurationMs  *int64   `json:"total_duration_ms,omitempty"`
}

// NewResult assembles a result from a repo span and its agent spans. The
// result is unvalidated until Validate runs; derived totals are populated
// immediately. Nil span collections are normalized to empty so a result
// assembled from decoded JSON serializes them as [] / {}.
func NewResult(repoSpan Span, agentSpans []Span) *Result {
	if agentSpans == nil {
		agentSpans = []Span{}
	}
	repoSpan.normalize()
	for i := range agentSpans {
		agentSpans[i].normalize()
	}
	return &Result{
		ExecutionID:      repoSpan.ExecutionID,
		RepoSpan:         repoSpan,
		AgentSpans:       agentSpans,
		Valid:            false,
		ValidationErrors: []string{},
		TotalArtifacts:   countArtifacts(agentSpans),
		TotalDurationMs:  repoSpan.DurationMs,
	}
}

// Validate runs the structural integrity checks over the execution tree and
// refreshes the derived fields. All checks run and errors accumulate so one
// pass surfaces every problem. The spans themselves are never mutated, so
// calling Validate repeatedly is safe and re-derives everything from the
// current span contents.
//
// Checks:
//   - the repo span has a non-empty parent_span_id
//   - at least one agent span was emitted
//   - every agent span names the repo span as its parent
//   - no two agent spans share a span_id
func (r *Result) Validate() *Result {
	r.ValidationErrors = []string{}

	if r.RepoSpan.ParentSpanID == "" {
		r.ValidationErrors = append(r.ValidationErrors,
			"Repo span is missing parent_span_id from caller")
	}

	if len(r.AgentSpans) == 0 {
		r.ValidationErrors = append(r.ValidationErrors,
			"No agent spans emitted -- execution has no evidence of agent work")
	}

	for _, agent := range r.AgentSpans {
		if agent.ParentSpanID != r.RepoSpan.SpanID {
			r.ValidationErrors = append(r.ValidationErrors, fmt.Sprintf(
				"Agent span %s has parent_span_id %s but expected repo span %s",
				agent.SpanID, agent.ParentSpanID, r.RepoSpan.SpanID))
		}
	}

	seen := make(map[string]bool, len(r.AgentSpans))
	for _, agent := range r.AgentSpans {
		if seen[agent.SpanID] {
			r.ValidationErrors = append(r.ValidationErrors,
				"Duplicate agent span_id: "+agent.SpanID)
		}
		seen[agent.SpanID] = true
	}

	r.Valid = len(r.ValidationErrors) == 0
	r.TotalArtifacts = countArtifacts(r.AgentSpans)
	r.TotalDurationMs = r.RepoSpan.DurationMs
	return r
}

func countArtifacts(spans []Span) int {
	n := 0
	for _, s := range spans {
		n += len(s.Artifacts)
	}
	return n
}
