// Package ratelimit implements fixed one-minute-window request limiting per
// client. The Redis implementation lives in platform/redis; Memory serves
// single-process deployments and tests.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window is the length of one counting window.
const Window = time.Minute

// Result contains the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int

	// RetryAfter is the time until the current window resets.
	RetryAfter time.Duration
}

// Limiter decides whether a client may make another request.
type Limiter interface {
	Allow(ctx context.Context, clientID string) (*Result, error)
}

// WindowStart returns the start of the window containing now.
func WindowStart(now time.Time) time.Time {
	return now.Truncate(Window)
}

// NewResult builds the Result for the count-th request of the window
// containing now.
func NewResult(limit int, count int64, now time.Time) *Result {
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	retryAfter := WindowStart(now).Add(Window).Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return &Result{
		Allowed:    count <= int64(limit),
		Limit:      limit,
		Remaining:  remaining,
		RetryAfter: retryAfter,
	}
}

// Memory is an in-process Limiter.
type Memory struct {
	limit int
	now   func() time.Time

	mu     sync.Mutex
	window time.Time
	counts map[string]int64
}

var _ Limiter = (*Memory)(nil)

// NewMemory creates a limiter allowing limit requests per client per window.
func NewMemory(limit int) *Memory {
	return &Memory{
		limit:  limit,
		now:    time.Now,
		counts: make(map[string]int64),
	}
}

// Allow implements Limiter.
func (m *Memory) Allow(_ context.Context, clientID string) (*Result, error) {
	now := m.now()
	start := WindowStart(now)

	m.mu.Lock()
	if !start.Equal(m.window) {
		m.window = start
		m.counts = make(map[string]int64)
	}
	m.counts[clientID]++
	count := m.counts[clientID]
	m.mu.Unlock()

	return NewResult(m.limit, count, now), nil
}
