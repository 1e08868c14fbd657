// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package threat

import (
	"sync"
	"time"
)

// DefaultBlockThreshold is the number of injection detections after which an
// identifier is permanently blocked.
const DefaultBlockThreshold = 3

// AttackPattern tracks injection attempts for one identifier. The state
// machine is clean -> warned(n) -> blocked, monotonic: once Blocked is set
// it stays set until an external Reset.
type AttackPattern struct {
	PromptInjectionAttempts int   `json:"prompt_injection_attempts"`
	SuspiciousRequests      int   `json:"suspicious_requests"`
	LastAttempt             int64 `json:"last_attempt"`
	Blocked                 bool  `json:"blocked"`
}

// Tracker is the per-identifier attempt counter behind auto-blocking.
// It is the only mutable state in this package.
type Tracker struct {
	mu        sync.Mutex
	patterns  map[string]*AttackPattern
	threshold int

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewTracker creates a tracker that blocks after threshold detections.
// A threshold of zero or less uses DefaultBlockThreshold.
func NewTracker(threshold int) *Tracker {
	if threshold <= 0 {
		threshold = DefaultBlockThreshold
	}
	return &Tracker{
		patterns:  make(map[string]*AttackPattern),
		threshold: threshold,
		now:       time.Now,
	}
}

// NewTrackerWithClock creates a tracker with an injected clock.
func NewTrackerWithClock(threshold int, now func() time.Time) *Tracker {
	t := NewTracker(threshold)
	t.now = now
	return t
}

// IsBlocked reports whether the identifier is blocked, without mutating
// state. A blocked identifier is rejected immediately, without re-scoring.
func (t *Tracker) IsBlocked(identifier string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	pattern, ok := t.patterns[identifier]
	return ok && pattern.Blocked
}

// RecordAttempt registers an injection detection for the identifier and
// returns a snapshot of its pattern. When the attempt count reaches the
// threshold the identifier transitions irreversibly to blocked.
func (t *Tracker) RecordAttempt(identifier string) AttackPattern {
	t.mu.Lock()
	defer t.mu.Unlock()

	pattern, ok := t.patterns[identifier]
	if !ok {
		pattern = &AttackPattern{}
		t.patterns[identifier] = pattern
	}

	pattern.PromptInjectionAttempts++
	pattern.LastAttempt = t.now().UnixMilli()

	if pattern.PromptInjectionAttempts >= t.threshold {
		pattern.Blocked = true
	}

	return *pattern
}

// RecordSuspicious registers a suspicious (non-injection) request for the
// identifier. Suspicious requests never block on their own.
func (t *Tracker) RecordSuspicious(identifier string) AttackPattern {
	t.mu.Lock()
	defer t.mu.Unlock()

	pattern, ok := t.patterns[identifier]
	if !ok {
		pattern = &AttackPattern{}
		t.patterns[identifier] = pattern
	}

	pattern.SuspiciousRequests++
	pattern.LastAttempt = t.now().UnixMilli()

	return *pattern
}

// Get returns a snapshot of the identifier's pattern.
func (t *Tracker) Get(identifier string) (AttackPattern, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pattern, ok := t.patterns[identifier]
	if !ok {
		return AttackPattern{}, false
	}
	return *pattern, true
}

// Reset clears the identifier's pattern. This is the only path out of the
// blocked state and requires external intervention (an operator call).
func (t *Tracker) Reset(identifier string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.patterns[identifier]; !ok {
		return false
	}
	delete(t.patterns, identifier)
	return true
}

// Sweep removes patterns for identifiers that are not blocked and have been
// idle longer than maxIdle. Blocked identifiers are never swept.
func (t *Tracker) Sweep(maxIdle time.Duration) int {
	threshold := t.now().UnixMilli() - maxIdle.Milliseconds()

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, pattern := range t.patterns {
		if !pattern.Blocked && pattern.LastAttempt < threshold {
			delete(t.patterns, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked identifiers.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.patterns)
}
