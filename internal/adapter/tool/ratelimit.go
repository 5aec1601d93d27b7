package tool

import (
	"sync"
	"time"
)

// rateLimitEntry is one user's fixed-window counter.
type rateLimitEntry struct {
	count   int
	resetAt time.Time
}

// UserRateLimiter admits requests per user using a fixed-window counter:
// a user's first request opens a window with count=1, requests within the
// window increment the count up to the limit, and an elapsed window resets
// to a fresh one. Entries are evicted lazily when touched and by Sweep.
type UserRateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries map[string]*rateLimitEntry
	now     func() time.Time // for testing
}

// NewUserRateLimiter creates a limiter allowing limit requests per window
// for each user.
func NewUserRateLimiter(limit int, window time.Duration) *UserRateLimiter {
	return &UserRateLimiter{
		limit:   limit,
		window:  window,
		entries: make(map[string]*rateLimitEntry),
		now:     time.Now,
	}
}

// Admit returns true if a request from userID is allowed, and records it.
func (r *UserRateLimiter) Admit(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	e, ok := r.entries[userID]
	if !ok || !now.Before(e.resetAt) {
		r.entries[userID] = &rateLimitEntry{count: 1, resetAt: now.Add(r.window)}
		return true
	}

	if e.count >= r.limit {
		return false
	}
	e.count++
	return true
}

// Sweep removes expired entries. Call it periodically from a background
// goroutine; lazy per-user eviction in Admit keeps correctness without it.
func (r *UserRateLimiter) Sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for userID, e := range r.entries {
		if !now.Before(e.resetAt) {
			delete(r.entries, userID)
		}
	}
}
