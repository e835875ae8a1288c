package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Intake traffic is bursty: an orchestrator finishing a run submits its
// observations and result back-to-back, then goes quiet. Idle clients are
// evicted quickly to keep the bucket map proportional to currently active
// submitters rather than everything seen since startup.
const (
	idleEviction  = 5 * time.Minute
	sweepInterval = 30 * time.Second
)

// ipBucket tracks one client's remaining intake allowance.
type ipBucket struct {
	remaining float64 // tokens left; fractional between refills
	seen      time.Time
}

// refill credits tokens for the time elapsed since the client was last seen,
// capped at the burst allowance.
func (b *ipBucket) refill(now time.Time, rate, burst float64) {
	b.remaining += now.Sub(b.seen).Seconds() * rate
	if b.remaining > burst {
		b.remaining = burst
	}
	b.seen = now
}

// MemoryLimiter is an in-process token bucket per client, protecting the
// intake endpoints (observation and result submission) of a single node.
// It deliberately shares no state across nodes: each node defends itself.
//
// A background sweeper drops clients idle longer than idleEviction; Close
// stops it.
type MemoryLimiter struct {
	rate  float64 // sustained requests per second per client
	burst float64 // burst allowance (bucket capacity)

	mu      sync.Mutex
	buckets map[string]*ipBucket

	stopOnce sync.Once
	done     chan struct{}
}

// NewMemoryLimiter creates a limiter allowing rate requests per second per
// client with the given burst allowance.
func NewMemoryLimiter(rate float64, burst int) *MemoryLimiter {
	m := &MemoryLimiter{
		rate:    rate,
		burst:   float64(burst),
		buckets: make(map[string]*ipBucket),
		done:    make(chan struct{}),
	}
	go m.sweep()
	return m
}

// Allow consumes one token from the client's bucket. False means the client
// has exhausted its allowance and the request should be rejected.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	b, ok := m.buckets[key]
	if !ok {
		// New client: full burst allowance, minus this request.
		m.buckets[key] = &ipBucket{remaining: m.burst - 1, seen: now}
		return true, nil
	}

	b.refill(now, m.rate, m.burst)
	if b.remaining < 1 {
		return false, nil
	}
	b.remaining--
	return true, nil
}

// Close stops the sweeper goroutine. Safe to call multiple times.
func (m *MemoryLimiter) Close() error {
	m.stopOnce.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryLimiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictIdle()
		}
	}
}

func (m *MemoryLimiter) evictIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-idleEviction)
	for key, b := range m.buckets {
		if b.seen.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
}
