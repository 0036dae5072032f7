// Package limiter bounds claim-code guess attempts. High-entropy codes make
// guessing infeasible in theory; the limiter makes sustained guessing loud
// and cheap to stop in practice.
package limiter

import (
	"context"
	"sync"
	"time"
)

// AttemptLimiter answers whether one more claim attempt is allowed for a key.
// Keys identify (entity, claimer) pairs so one abuser cannot lock others out.
type AttemptLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Memory is a sliding-window limiter for single-process deployments and as
// the fallback when Redis is not configured.
type Memory struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string][]time.Time
}

// NewMemory constructs an in-memory limiter allowing limit attempts per
// window per key.
func NewMemory(limit int, window time.Duration) *Memory {
	return &Memory{
		limit:   limit,
		window:  window,
		windows: make(map[string][]time.Time),
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-m.window)
	kept := m.windows[key][:0]
	for _, t := range m.windows[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= m.limit {
		m.windows[key] = kept
		return false, nil
	}
	m.windows[key] = append(kept, now)
	return true, nil
}
