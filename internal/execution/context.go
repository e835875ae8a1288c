package execution

// Context is the per-request causal linkage extracted from inbound headers by
// the execution middleware. Created fresh per request, never mutated after
// injection, and discarded when the request ends.
type Context struct {
	ExecutionID string `json:"execution_id"`
	// ParentSpanID is the caller's span ID; it becomes the repo span's parent.
	ParentSpanID string `json:"parent_span_id"`
	// RepoSpanID is the ID of the repo span created on entry, populated by
	// the middleware once the span exists.
	RepoSpanID *string `json:"repo_span_id,omitempty"`
	RepoName   string  `json:"repo_name"`
}
