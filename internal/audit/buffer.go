// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package audit

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/hex"
	"math/rand"
	"sync"
	"time"

	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
)

// BufferConfig holds configuration for the buffered logger.
type BufferConfig struct {
	// SamplingRate is the probability an info-severity event is kept.
	// Warning and critical events bypass sampling entirely.
	SamplingRate float64 `json:"sampling_rate"`

	// MaxSize is the number of buffered events that triggers an
	// immediate flush.
	MaxSize int `json:"max_size"`

	// FlushTimeout bounds a single store write.
	FlushTimeout time.Duration `json:"flush_timeout"`
}

// DefaultBufferConfig returns the standard buffer settings.
func DefaultBufferConfig() BufferConfig {
	return BufferConfig{
		SamplingRate: 0.10,
		MaxSize:      50,
		FlushTimeout: 5 * time.Second,
	}
}

// BufferedLogger accumulates events in memory and persists them in
// batches. Info-severity events are sampled; warning and critical events
// are always buffered. A full buffer flushes immediately; the periodic
// flush is driven externally by calling Flush.
type BufferedLogger struct {
	store Store
	cfg   BufferConfig

	mu     sync.Mutex
	events []Event
	rng    *rand.Rand // guarded by mu

	now func() time.Time
}

// NewBufferedLogger creates a buffered logger with a time-seeded
// sampling source.
func NewBufferedLogger(store Store, cfg BufferConfig) *BufferedLogger {
	//nolint:gosec // sampling decisions do not need a CSPRNG
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return NewBufferedLoggerWithSource(store, cfg, rng, time.Now)
}

// NewBufferedLoggerWithSource creates a buffered logger with an injected
// sampling source and clock for deterministic tests.
func NewBufferedLoggerWithSource(store Store, cfg BufferConfig, rng *rand.Rand, now func() time.Time) *BufferedLogger {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultBufferConfig().MaxSize
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = DefaultBufferConfig().FlushTimeout
	}
	return &BufferedLogger{
		store:  store,
		cfg:    cfg,
		events: make([]Event, 0, cfg.MaxSize),
		rng:    rng,
		now:    now,
	}
}

// Record buffers an event, applying sampling to info severity unless
// force is set. It returns true if the event was buffered. Recording
// never blocks on the store except when the buffer reaches capacity,
// which triggers an immediate bounded flush.
func (l *BufferedLogger) Record(event Event, force bool) bool {
	l.mu.Lock()

	if event.Severity == SeverityInfo && !force {
		if l.rng.Float64() >= l.cfg.SamplingRate {
			l.mu.Unlock()
			metrics.EventsSampledOut.Inc()
			return false
		}
	}

	if event.ID == "" {
		event.ID = generateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}

	l.events = append(l.events, event)
	full := len(l.events) >= l.cfg.MaxSize
	l.mu.Unlock()

	metrics.EventsRecorded.WithLabelValues(string(event.Severity)).Inc()

	if full {
		ctx, cancel := context.WithTimeout(context.Background(), l.cfg.FlushTimeout)
		defer cancel()
		if err := l.Flush(ctx); err != nil {
			logging.Warn().Err(err).Msg("Capacity flush failed, events re-queued")
		}
	}

	return true
}

// Flush swaps the buffer and writes the batch in a single store call.
// On failure the batch is re-queued ahead of newer events, up to the
// buffer capacity; events that do not fit are dropped.
func (l *BufferedLogger) Flush(ctx context.Context) error {
	l.mu.Lock()
	batch := l.events
	l.events = make([]Event, 0, l.cfg.MaxSize)
	l.mu.Unlock()

	if len(batch) == 0 {
		metrics.Flushes.WithLabelValues("empty").Inc()
		return nil
	}

	if err := l.store.InsertEvents(ctx, batch); err != nil {
		l.requeue(batch)
		metrics.Flushes.WithLabelValues("error").Inc()
		return err
	}

	metrics.Flushes.WithLabelValues("ok").Inc()
	metrics.FlushBatchSize.Observe(float64(len(batch)))
	return nil
}

// requeue puts a failed batch back at the front of the buffer,
// preserving event order. Whatever exceeds capacity is dropped oldest
// last: the failed batch wins over newer arrivals up to the cap.
func (l *BufferedLogger) requeue(batch []Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	merged := make([]Event, 0, l.cfg.MaxSize)
	merged = append(merged, batch...)
	for _, event := range l.events {
		if len(merged) >= l.cfg.MaxSize {
			break
		}
		merged = append(merged, event)
	}
	if len(merged) > l.cfg.MaxSize {
		merged = merged[:l.cfg.MaxSize]
	}

	// Only the failed batch counts as re-queued; newer events that were
	// already buffered are not.
	requeued := len(batch)
	if requeued > len(merged) {
		requeued = len(merged)
	}
	dropped := len(batch) + len(l.events) - len(merged)
	l.events = merged

	metrics.EventsRequeued.Add(float64(requeued))
	if dropped > 0 {
		metrics.EventsDropped.Add(float64(dropped))
		logging.Warn().Int("dropped", dropped).Msg("Event buffer overflow during re-queue")
	}
}

// Len returns the number of currently buffered events.
func (l *BufferedLogger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// generateEventID generates a unique event ID.
func generateEventID() string {
	b := make([]byte, 16)
	if _, err := cryptorand.Read(b); err != nil {
		return time.Now().Format("20060102150405.000000000")
	}
	return hex.EncodeToString(b)
}
