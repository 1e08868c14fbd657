// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package security

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/vigil/internal/audit"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
)

// breakerStore wraps the audit store with a circuit breaker so a failing
// backend cannot stall the flush, retention, and monitoring timers. When
// the circuit is open every call fails fast and the service degrades
// fail-closed: access checks deny, aggregates return errors, retention
// skips a cycle.
//
// The breaker uses real time for its interval and timeout calculations.
// The timing determines when to recover from failures, not data
// integrity; tests exercise the wrapped store directly.
type breakerStore struct {
	inner audit.Store
	cb    *gobreaker.CircuitBreaker[any]
}

// newBreakerStore wraps a store. The circuit opens after a 60% failure
// rate over at least 10 requests and probes recovery after 30 seconds.
func newBreakerStore(inner audit.Store) *breakerStore {
	metrics.StoreBreakerState.Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "audit-store",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("Store circuit breaker state transition")
			metrics.StoreBreakerState.Set(stateToFloat(to))
		},
	})

	return &breakerStore{inner: inner, cb: cb}
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func (b *breakerStore) InsertEvents(ctx context.Context, events []audit.Event) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.inner.InsertEvents(ctx, events)
	})
	return err
}

func (b *breakerStore) CountsByType(ctx context.Context, filter audit.Filter) ([]audit.TypeCount, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.inner.CountsByType(ctx, filter)
	})
	if err != nil {
		return nil, err
	}
	return result.([]audit.TypeCount), nil
}

func (b *breakerStore) RecentEvents(ctx context.Context, userID string, limit int) ([]audit.Event, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.inner.RecentEvents(ctx, userID, limit)
	})
	if err != nil {
		return nil, err
	}
	return result.([]audit.Event), nil
}

func (b *breakerStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.inner.DeleteBefore(ctx, cutoff)
	})
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

func (b *breakerStore) UpsertSummary(ctx context.Context, sessionID string, counts []audit.TypeCount) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.inner.UpsertSummary(ctx, sessionID, counts)
	})
	return err
}

func (b *breakerStore) Close() error {
	return b.inner.Close()
}
