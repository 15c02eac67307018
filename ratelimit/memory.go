package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	window time.Time
	count  int
}

// Memory keeps fixed window counters in process. Good for a single
// instance; use Redis when several processes share the limit.
type Memory struct {
	mu   sync.Mutex
	rule Rule
	data map[string]bucket
	now  func() time.Time
}

// MemoryOption customizes a Memory limiter
type MemoryOption func(*Memory)

// WithClock injects a custom clock
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory returns an in memory limiter enforcing rule
func NewMemory(rule Rule, opts ...MemoryOption) *Memory {
	m := &Memory{
		rule: rule,
		data: make(map[string]bucket),
		now:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Allow counts the request against key. Empty keys and invalid rules are
// never limited.
func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	if key == "" || !m.rule.valid() {
		return true, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	win := now.Truncate(m.rule.Window)
	b, ok := m.data[key]
	if !ok || b.window.Before(win) {
		m.data[key] = bucket{window: win, count: 1}
		m.gc(win)
		return true, nil
	}
	if b.count >= m.rule.Limit {
		return false, nil
	}
	b.count++
	m.data[key] = b
	return true, nil
}

// Reset forgets the counter for key
func (m *Memory) Reset(key string) {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
}

// gc drops buckets from past windows. Caller holds the lock.
func (m *Memory) gc(current time.Time) {
	for k, b := range m.data {
		if b.window.Before(current) {
			delete(m.data, k)
		}
	}
}
