// Package ratelimit caps how many pipeline requests one client may send per
// minute, independent of upstream quota. Windows are fixed per minute in
// memory and sliding in Redis.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const window = time.Minute

// Limiter reports whether a request from clientKey fits within limit per minute.
type Limiter interface {
	Allow(ctx context.Context, clientKey string, limit int) (Decision, error)
}

type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the wait until the window resets, never below one second.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait < time.Second {
		return time.Second
	}
	return wait
}

type InMemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*counter
	now     func() time.Time
}

type counter struct {
	count   int
	resetAt time.Time
}

func NewInMemoryLimiter() *InMemoryLimiter {
	return &InMemoryLimiter{
		windows: make(map[string]*counter),
		now:     time.Now,
	}
}

func (r *InMemoryLimiter) Allow(ctx context.Context, clientKey string, limit int) (Decision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.prune(now)

	c, ok := r.windows[clientKey]
	if !ok {
		c = &counter{resetAt: now.Add(window)}
		r.windows[clientKey] = c
	}

	if c.count >= limit {
		return Decision{Allowed: false, Remaining: 0, ResetAt: c.resetAt}, nil
	}

	c.count++
	return Decision{Allowed: true, Remaining: limit - c.count, ResetAt: c.resetAt}, nil
}

// prune drops expired windows so one-off clients do not accumulate.
func (r *InMemoryLimiter) prune(now time.Time) {
	for key, c := range r.windows {
		if !now.Before(c.resetAt) {
			delete(r.windows, key)
		}
	}
}
