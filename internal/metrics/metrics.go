// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package metrics exposes Prometheus instrumentation for the security
// layer: event recording and sampling, flush batches, rate limiting,
// detector firings, cache efficiency, and the store circuit breaker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event pipeline metrics
	EventsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_events_recorded_total",
			Help: "Total number of security events accepted into the buffer",
		},
		[]string{"severity"},
	)

	EventsSampledOut = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_events_sampled_out_total",
			Help: "Total number of info events discarded by sampling",
		},
	)

	Flushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_flushes_total",
			Help: "Total number of buffer flushes by outcome",
		},
		[]string{"status"}, // "ok", "error", "empty"
	)

	FlushBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vigil_flush_batch_size",
			Help:    "Number of events persisted per flush",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		},
	)

	EventsRequeued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_events_requeued_total",
			Help: "Total number of events re-queued after a failed flush",
		},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_events_dropped_total",
			Help: "Total number of events dropped because the re-queue buffer was full",
		},
	)

	// Rate limiting metrics
	RateLimitDenied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_ratelimit_denied_total",
			Help: "Total number of rate limit denials",
		},
	)

	// Threat detection metrics
	Detections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_detections_total",
			Help: "Total number of detector firings",
		},
		[]string{"detector"}, // "injection", "alignment", "shadow_output", "membership", "social_engineering", "supply_chain"
	)

	IdentifiersBlocked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_identifiers_blocked_total",
			Help: "Total number of identifiers transitioned to the blocked state",
		},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"}, // "summary", "stats"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	// Store circuit breaker state: 0 closed, 1 half-open, 2 open.
	StoreBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vigil_store_breaker_state",
			Help: "Current state of the store circuit breaker (0=closed, 1=half-open, 2=open)",
		},
	)

	// Retention metrics
	RetentionDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_retention_deleted_total",
			Help: "Total number of events removed by retention cleanup",
		},
	)

	// Monitoring metrics
	MonitoringAlerts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_monitoring_alerts_total",
			Help: "Total number of continuous monitoring alerts raised",
		},
	)
)
