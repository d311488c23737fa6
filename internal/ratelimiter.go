package internal

import (
	"sync"
	"time"
)

// RateLimiter caps how often a key may act within a sliding window. The chat
// session uses it to keep key-repeat from flooding the socket with
// typing:start signals.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
	}
}

// Allow records a hit for the key and reports whether it fits in the window.
func (r *RateLimiter) Allow(key string) bool {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	windowStart := now.Add(-r.window)
	recent := r.hits[key]
	idx := 0
	for _, ts := range recent {
		if ts.After(windowStart) {
			recent[idx] = ts
			idx++
		}
	}
	recent = recent[:idx]
	if len(recent) >= r.limit {
		r.hits[key] = recent
		return false
	}
	recent = append(recent, now)
	r.hits[key] = recent
	return true
}

// Forget drops the history for a key, letting the next hit through
// immediately. Called when a conversation is closed.
func (r *RateLimiter) Forget(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.hits, key)
}
