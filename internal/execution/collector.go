package execution

import "sync"

// Collector funnels completed agent spans from concurrently running agents
// into a single ordered slice. Each agent owns its own Span; only the append
// into the shared collection is serialized here. One collector per execution.
type Collector struct {
	mu    sync.Mutex
	spans []Span
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add appends a completed agent span. Callers must not mutate the span after
// handing it off.
func (c *Collector) Add(span Span) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spans = append(c.spans, span)
}

// Len returns the number of collected spans.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.spans)
}

// Spans returns a copy of the collected spans in append order.
func (c *Collector) Spans() []Span {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Span, len(c.spans))
	copy(out, c.spans)
	return out
}

// Finish assembles the collected agent spans and the repo span into a
// validated Result.
func (c *Collector) Finish(repoSpan Span) *Result {
	return NewResult(repoSpan, c.Spans()).Validate()
}
