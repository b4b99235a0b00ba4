// Package ratelimit throttles requests per client using a per-minute
// window. Supports both in-memory (single instance) and Redis (distributed)
// backends. Clients are identified by IP since the service has no tenant
// concept.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter reports whether a request from clientID is allowed under the
// given requests-per-minute limit, along with remaining quota and reset
// time.
type RateLimiter interface {
	Allow(ctx context.Context, clientID string, limit int) (allowed bool, remaining int, resetAt time.Time, err error)
}

// InMemoryRateLimiter tracks fixed one-minute windows in memory.
type InMemoryRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	count   int
	resetAt time.Time
}

func NewInMemoryRateLimiter() *InMemoryRateLimiter {
	return &InMemoryRateLimiter{
		windows: make(map[string]*window),
	}
}

func (r *InMemoryRateLimiter) Allow(ctx context.Context, clientID string, limit int) (bool, int, time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	w, ok := r.windows[clientID]
	if !ok || now.After(w.resetAt) {
		w = &window{resetAt: now.Add(time.Minute)}
		r.windows[clientID] = w
	}

	if w.count >= limit {
		return false, 0, w.resetAt, nil
	}

	w.count++
	return true, limit - w.count, w.resetAt, nil
}
