// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package ratelimit implements fixed-window request counting per identifier.
//
// A fixed window resets the counter at a fixed interval boundary rather than
// a rolling window: the first check for an identifier opens a window, and all
// checks until the window's reset time count against the same limit.
package ratelimit

import (
	"sync"
	"time"
)

// Result is the outcome of a rate limit check.
type Result struct {
	// Allowed reports whether the request is within the limit.
	Allowed bool `json:"allowed"`

	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// ResetTime is when the current window expires (unix milliseconds).
	ResetTime int64 `json:"reset_time"`
}

// record tracks request counts for one identifier within one window.
// count only increases within the window; an expired record is replaced,
// never incremented.
type record struct {
	count     int
	resetTime int64
}

// Limiter is a fixed-window rate limiter keyed by identifier.
// All state is per-instance: if the host application runs multiple
// instances the limits apply per instance, not globally.
type Limiter struct {
	mu      sync.Mutex
	records map[string]*record

	// now is injectable for deterministic window tests.
	now func() time.Time
}

// New creates a fixed-window rate limiter.
func New() *Limiter {
	return &Limiter{
		records: make(map[string]*record),
		now:     time.Now,
	}
}

// NewWithClock creates a limiter with an injected clock.
func NewWithClock(now func() time.Time) *Limiter {
	l := New()
	l.now = now
	return l
}

// Check performs an increment-and-compare for the identifier as a single
// atomic step. A limit of zero (or negative) always denies.
func (l *Limiter) Check(identifier string, limit int, window time.Duration) Result {
	nowMs := l.now().UnixMilli()

	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 {
		return Result{Allowed: false, Remaining: 0, ResetTime: nowMs + window.Milliseconds()}
	}

	rec, ok := l.records[identifier]
	if !ok || nowMs > rec.resetTime {
		// Start a new window with this check as its first request.
		reset := nowMs + window.Milliseconds()
		l.records[identifier] = &record{count: 1, resetTime: reset}
		return Result{Allowed: true, Remaining: limit - 1, ResetTime: reset}
	}

	if rec.count >= limit {
		return Result{Allowed: false, Remaining: 0, ResetTime: rec.resetTime}
	}

	rec.count++
	return Result{Allowed: true, Remaining: limit - rec.count, ResetTime: rec.resetTime}
}

// Sweep removes records whose window has been expired for longer than the
// grace period, bounding memory growth. Returns the number removed.
func (l *Limiter) Sweep(grace time.Duration) int {
	threshold := l.now().UnixMilli() - grace.Milliseconds()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, rec := range l.records {
		if rec.resetTime < threshold {
			delete(l.records, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked identifiers.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
