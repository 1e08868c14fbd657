// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store using in-memory storage.
// Suitable for development and testing. Data is lost on restart.
type MemoryStore struct {
	mu        sync.RWMutex
	events    []Event
	summaries map[string][]TypeCount
	maxLen    int
}

// NewMemoryStore creates a new in-memory event store.
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &MemoryStore{
		events:    make([]Event, 0, maxLen),
		summaries: make(map[string][]TypeCount),
		maxLen:    maxLen,
	}
}

// InsertEvents persists a batch of events.
func (s *MemoryStore) InsertEvents(ctx context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, events...)

	// Enforce max length by removing oldest events
	if len(s.events) > s.maxLen {
		s.events = s.events[len(s.events)-s.maxLen:]
	}
	return nil
}

// CountsByType aggregates matching events by type and severity.
func (s *MemoryStore) CountsByType(ctx context.Context, filter Filter) ([]TypeCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		t   EventType
		sev Severity
	}
	counts := make(map[key]int64)

	for i := range s.events {
		if !matchesFilter(&s.events[i], &filter) {
			continue
		}
		counts[key{s.events[i].Type, s.events[i].Severity}]++
	}

	results := make([]TypeCount, 0, len(counts))
	for k, n := range counts {
		results = append(results, TypeCount{Type: k.t, Severity: k.sev, Count: n})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Type != results[j].Type {
			return results[i].Type < results[j].Type
		}
		return results[i].Severity < results[j].Severity
	})

	return results, nil
}

// RecentEvents returns the most recent events for a user, newest first.
func (s *MemoryStore) RecentEvents(ctx context.Context, userID string, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Event
	for i := len(s.events) - 1; i >= 0; i-- { // Iterate in reverse for newest-first
		if userID != "" && s.events[i].UserID != userID {
			continue
		}
		results = append(results, s.events[i])
		if limit > 0 && len(results) >= limit {
			break
		}
	}

	return results, nil
}

// DeleteBefore removes events older than the cutoff.
func (s *MemoryStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []Event
	var deleted int64

	for idx := range s.events {
		if s.events[idx].Timestamp.Before(cutoff) {
			deleted++
		} else {
			kept = append(kept, s.events[idx])
		}
	}

	s.events = kept
	return deleted, nil
}

// UpsertSummary stores the latest per-session aggregate snapshot.
func (s *MemoryStore) UpsertSummary(ctx context.Context, sessionID string, counts []TypeCount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]TypeCount, len(counts))
	copy(snapshot, counts)
	s.summaries[sessionID] = snapshot
	return nil
}

// Summary returns the stored snapshot for a session, if any.
func (s *MemoryStore) Summary(sessionID string) ([]TypeCount, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts, ok := s.summaries[sessionID]
	return counts, ok
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the number of events in the store.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Clear removes all events (for testing).
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = s.events[:0]
}

// matchesFilter returns true if the event matches all filter criteria.
func matchesFilter(event *Event, filter *Filter) bool {
	if filter.SessionID != "" && event.SessionID != filter.SessionID {
		return false
	}
	if filter.UserID != "" && event.UserID != filter.UserID {
		return false
	}

	if len(filter.Severities) > 0 {
		found := false
		for _, sev := range filter.Severities {
			if event.Severity == sev {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if filter.StartTime != nil && event.Timestamp.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && event.Timestamp.After(*filter.EndTime) {
		return false
	}

	return true
}
