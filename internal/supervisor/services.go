// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package supervisor

import (
	"context"
	"time"

	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/security"
)

// TickerService runs a job on a fixed interval until its context is
// cancelled. Job errors are logged, never returned: a failing job must
// not trip the supervisor's restart backoff, it just waits for the next
// tick.
type TickerService struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
}

// NewTickerService wraps a job as a supervised service.
func NewTickerService(name string, interval time.Duration, run func(ctx context.Context) error) *TickerService {
	return &TickerService{name: name, interval: interval, run: run}
}

// Serve implements suture.Service.
func (s *TickerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.run(ctx); err != nil {
				logging.Warn().Err(err).Str("job", s.name).Msg("Background job failed")
			}
		}
	}
}

func (s *TickerService) String() string {
	return s.name
}

// NewFlushService periodically flushes the audit buffer.
func NewFlushService(svc *security.Service, interval time.Duration) *TickerService {
	return NewTickerService("audit-flush", interval, svc.Flush)
}

// NewRetentionService periodically deletes expired events.
func NewRetentionService(svc *security.Service, interval time.Duration) *TickerService {
	return NewTickerService("retention", interval, func(ctx context.Context) error {
		svc.RunRetention(ctx)
		return nil
	})
}

// NewSweepService periodically evicts expired rate-limit windows and
// idle attack patterns from the service's in-memory state.
func NewSweepService(svc *security.Service, interval time.Duration) *TickerService {
	return NewTickerService("state-sweep", interval, func(ctx context.Context) error {
		svc.RunSweep(ctx)
		return nil
	})
}

// NewMonitoringService periodically scans for elevated event volume.
func NewMonitoringService(svc *security.Service, interval time.Duration) *TickerService {
	return NewTickerService("monitoring", interval, func(ctx context.Context) error {
		alert, err := svc.PerformContinuousMonitoring(ctx)
		if err != nil {
			return err
		}
		if alert != nil {
			logging.Warn().
				Str("alert_id", alert.ID).
				Int64("event_count", alert.EventCount).
				Int("threshold", alert.Threshold).
				Msg("Security monitoring alert")
		}
		return nil
	})
}

// HTTPService adapts a blocking server loop to suture's Serve pattern.
type HTTPService struct {
	name  string
	start func(ctx context.Context) error
}

// NewHTTPService wraps a server's Start method.
func NewHTTPService(name string, start func(ctx context.Context) error) *HTTPService {
	return &HTTPService{name: name, start: start}
}

// Serve implements suture.Service.
func (s *HTTPService) Serve(ctx context.Context) error {
	if err := s.start(ctx); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *HTTPService) String() string {
	return s.name
}
