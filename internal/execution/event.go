package execution

import "time"

// Event is a timestamped entry in a span's append-only event log. Ordering is
// append order, not timestamp order.
type Event struct {
	Name       string         `json:"name"`
	Timestamp  time.Time      `json:"timestamp"`
	Attributes map[string]any `json:"attributes"`
}
