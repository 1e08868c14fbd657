// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package security

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/vigil/internal/audit"
	"github.com/tomtom215/vigil/internal/cache"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
)

// EventCount is a per-type count in a summary. Info-severity counts are
// reconstructed from the sampled population by dividing by the sampling
// rate; Estimated marks them as estimates, not exact counts.
type EventCount struct {
	Type      audit.EventType `json:"type"`
	Severity  audit.Severity  `json:"severity"`
	Count     int64           `json:"count"`
	Estimated bool            `json:"estimated"`
}

// Summary aggregates a session's security events by type.
type Summary struct {
	SessionID   string       `json:"session_id"`
	TotalEvents int64        `json:"total_events"`
	Counts      []EventCount `json:"counts"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// UserStats is a user's rolling security activity.
type UserStats struct {
	UserID       string        `json:"user_id"`
	TotalEvents  int64         `json:"total_events"`
	Counts       []EventCount  `json:"counts"`
	RecentEvents []audit.Event `json:"recent_events"`
}

// Alert is raised when warning-or-critical event volume crosses the
// monitoring threshold within one scan interval.
type Alert struct {
	ID          string    `json:"id"`
	EventCount  int64     `json:"event_count"`
	Threshold   int       `json:"threshold"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}

// reconstructCounts scales info-severity counts by 1/samplingRate to
// estimate the true population. Warning and critical counts bypass
// sampling and stay exact.
func (s *Service) reconstructCounts(raw []audit.TypeCount) ([]EventCount, int64) {
	counts := make([]EventCount, 0, len(raw))
	var total int64
	for _, tc := range raw {
		count := tc.Count
		estimated := false
		if tc.Severity == audit.SeverityInfo && s.cfg.SamplingRate > 0 && s.cfg.SamplingRate < 1 {
			count = int64(math.Round(float64(tc.Count) / s.cfg.SamplingRate))
			estimated = true
		}
		counts = append(counts, EventCount{
			Type:      tc.Type,
			Severity:  tc.Severity,
			Count:     count,
			Estimated: estimated,
		})
		total += count
	}
	return counts, total
}

// GenerateSecuritySummary aggregates a session's events by type. It
// forces a flush first so the summary sees this process's own writes,
// persists the observed counts, and caches the result. Store failure
// (including an open circuit breaker) degrades to an empty summary
// with a logged warning; the empty result is never cached, so the
// first call after recovery sees real data again.
func (s *Service) GenerateSecuritySummary(ctx context.Context, sessionID string) (*Summary, error) {
	key := cache.GenerateKey("summary", sessionID)
	if cached, ok := s.summaryCache.Get(key); ok {
		return cached.(*Summary), nil
	}

	if err := s.logger.Flush(ctx); err != nil {
		logging.Warn().Err(err).Str("session_id", sessionID).Msg("Summary flush failed, returning empty summary")
		return s.emptySummary(sessionID), nil
	}

	raw, err := s.store.CountsByType(ctx, audit.Filter{SessionID: sessionID})
	if err != nil {
		logging.Warn().Err(err).Str("session_id", sessionID).Msg("Summary query failed, returning empty summary")
		return s.emptySummary(sessionID), nil
	}

	counts, total := s.reconstructCounts(raw)
	summary := &Summary{
		SessionID:   sessionID,
		TotalEvents: total,
		Counts:      counts,
		GeneratedAt: s.now(),
	}

	if err := s.store.UpsertSummary(ctx, sessionID, raw); err != nil {
		logging.Warn().Err(err).Str("session_id", sessionID).Msg("Summary persistence failed")
	}

	s.summaryCache.Set(key, summary)
	return summary, nil
}

func (s *Service) emptySummary(sessionID string) *Summary {
	return &Summary{
		SessionID:   sessionID,
		Counts:      []EventCount{},
		GeneratedAt: s.now(),
	}
}

// GetUserSecurityStats aggregates a user's events by type alongside
// their ten most recent events. Flushes first, cached briefly. Store
// failure degrades to empty stats with a logged warning; the empty
// result is never cached.
func (s *Service) GetUserSecurityStats(ctx context.Context, userID string) (*UserStats, error) {
	key := cache.GenerateKey("stats", userID)
	if cached, ok := s.statsCache.Get(key); ok {
		return cached.(*UserStats), nil
	}

	if err := s.logger.Flush(ctx); err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("Stats flush failed, returning empty stats")
		return s.emptyUserStats(userID), nil
	}

	raw, err := s.store.CountsByType(ctx, audit.Filter{UserID: userID})
	if err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("Stats query failed, returning empty stats")
		return s.emptyUserStats(userID), nil
	}

	recent, err := s.store.RecentEvents(ctx, userID, recentEventLimit)
	if err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("Stats query failed, returning empty stats")
		return s.emptyUserStats(userID), nil
	}

	counts, total := s.reconstructCounts(raw)
	stats := &UserStats{
		UserID:       userID,
		TotalEvents:  total,
		Counts:       counts,
		RecentEvents: recent,
	}

	s.statsCache.Set(key, stats)
	return stats, nil
}

func (s *Service) emptyUserStats(userID string) *UserStats {
	return &UserStats{
		UserID:       userID,
		Counts:       []EventCount{},
		RecentEvents: []audit.Event{},
	}
}

// RecentEvents returns a user's newest events, newest first. Flushes
// first so callers see this process's own writes. An empty userID
// returns the newest events across all users.
func (s *Service) RecentEvents(ctx context.Context, userID string, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = recentEventLimit
	}
	if err := s.logger.Flush(ctx); err != nil {
		return nil, err
	}
	return s.store.RecentEvents(ctx, userID, limit)
}

// PerformContinuousMonitoring scans the last interval for warning and
// critical events. Crossing the threshold raises an alert that is
// force-logged at critical severity. Returns nil when the system looks
// quiet.
func (s *Service) PerformContinuousMonitoring(ctx context.Context) (*Alert, error) {
	if err := s.logger.Flush(ctx); err != nil {
		return nil, err
	}

	end := s.now()
	start := end.Add(-s.monitoring.Interval)
	raw, err := s.store.CountsByType(ctx, audit.Filter{
		Severities: []audit.Severity{audit.SeverityWarning, audit.SeverityCritical},
		StartTime:  &start,
		EndTime:    &end,
	})
	if err != nil {
		return nil, err
	}

	var total int64
	for _, tc := range raw {
		total += tc.Count
	}
	if total < int64(s.monitoring.Threshold) {
		return nil, nil
	}

	alert := &Alert{
		ID:          uuid.NewString(),
		EventCount:  total,
		Threshold:   s.monitoring.Threshold,
		WindowStart: start,
		WindowEnd:   end,
	}

	metrics.MonitoringAlerts.Inc()
	s.record(audit.Event{
		Type:        audit.EventTypeMonitoringAlert,
		Severity:    audit.SeverityCritical,
		Description: "Elevated security event volume",
		Metadata: audit.MustJSON(map[string]interface{}{
			"alert_id":    alert.ID,
			"event_count": total,
			"threshold":   s.monitoring.Threshold,
		}),
	}, true)

	return alert, nil
}
