// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package security is the facade the host application talks to. It
// composes encryption, rate limiting, input sanitization, threat
// detection, access verification, and audit logging behind one service
// with a single external collaborator, the audit store.
package security

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/tomtom215/vigil/internal/audit"
	"github.com/tomtom215/vigil/internal/authz"
	"github.com/tomtom215/vigil/internal/cache"
	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/crypto"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
	"github.com/tomtom215/vigil/internal/ratelimit"
	"github.com/tomtom215/vigil/internal/sanitize"
	"github.com/tomtom215/vigil/internal/threat"
)

const (
	// summaryCacheTTL caches session summaries; they change slowly.
	summaryCacheTTL = 5 * time.Minute

	// statsCacheTTL caches user stats; requested interactively, kept short.
	statsCacheTTL = time.Minute

	// recentEventLimit is how many recent events user stats carry.
	recentEventLimit = 10

	// sweepGrace is how long an expired rate-limit window lingers
	// before the sweeper removes its record.
	sweepGrace = time.Hour

	// sweepMaxIdle is how long a non-blocked attack pattern may sit
	// idle before the sweeper removes it. Blocked identifiers are
	// never swept.
	sweepMaxIdle = 24 * time.Hour
)

// Options configures a Service. Store and Config are required; Clock and
// Rand are injectable for deterministic tests and default to real time
// and a time-seeded source.
type Options struct {
	Store      audit.Store
	Config     config.SecurityConfig
	Monitoring config.MonitoringConfig
	Enforcer   *authz.Enforcer
	Clock      func() time.Time
	Rand       *rand.Rand
}

// Service is the security facade. All methods are safe for concurrent
// use. State is per-instance: rate limits, attack tracking, and sampling
// counters do not coordinate across processes.
type Service struct {
	cfg        config.SecurityConfig
	monitoring config.MonitoringConfig

	store     audit.Store
	logger    *audit.BufferedLogger
	encryptor *crypto.Encryptor
	limiter   *ratelimit.Limiter
	tracker   *threat.Tracker
	enforcer  *authz.Enforcer

	injectionCfg   threat.InjectionConfig
	alignmentCfg   threat.AlignmentConfig
	supplyChainCfg threat.SupplyChainConfig

	summaryCache *cache.Cache
	statsCache   *cache.Cache

	now func() time.Time
}

// New builds a Service from options. The store is wrapped in a circuit
// breaker; a failing backend degrades the service fail-closed instead of
// blocking it.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("security: store is required")
	}

	encryptor, err := crypto.NewEncryptor(opts.Config.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("security: %w", err)
	}

	enforcer := opts.Enforcer
	if enforcer == nil {
		enforcer, err = authz.NewEnforcer()
		if err != nil {
			return nil, fmt.Errorf("security: %w", err)
		}
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	store := audit.Store(newBreakerStore(opts.Store))

	bufCfg := audit.BufferConfig{
		SamplingRate: opts.Config.SamplingRate,
		MaxSize:      opts.Config.BufferMaxSize,
	}
	var logger *audit.BufferedLogger
	if opts.Rand != nil {
		logger = audit.NewBufferedLoggerWithSource(store, bufCfg, opts.Rand, now)
	} else {
		logger = audit.NewBufferedLogger(store, bufCfg)
	}

	threshold := opts.Config.BlockThreshold
	if threshold <= 0 {
		threshold = threat.DefaultBlockThreshold
	}

	supplyChainCfg := threat.DefaultSupplyChainConfig()
	if len(opts.Config.AllowedDomains) > 0 {
		supplyChainCfg.AllowedDomains = opts.Config.AllowedDomains
	}

	monitoring := opts.Monitoring
	if monitoring.Interval <= 0 {
		monitoring.Interval = 5 * time.Minute
	}
	if monitoring.Threshold <= 0 {
		monitoring.Threshold = 10
	}

	return &Service{
		cfg:            opts.Config,
		monitoring:     monitoring,
		store:          store,
		logger:         logger,
		encryptor:      encryptor,
		limiter:        ratelimit.NewWithClock(now),
		tracker:        threat.NewTrackerWithClock(threshold, now),
		enforcer:       enforcer,
		injectionCfg:   threat.DefaultInjectionConfig(),
		alignmentCfg:   threat.DefaultAlignmentConfig(),
		supplyChainCfg: supplyChainCfg,
		summaryCache:   cache.NewWithClock("summary", summaryCacheTTL, now),
		statsCache:     cache.NewWithClock("stats", statsCacheTTL, now),
		now:            now,
	}, nil
}

// record hands an event to the buffered logger. Audit failures never
// propagate into business operations.
func (s *Service) record(event audit.Event, force bool) {
	s.logger.Record(event, force)
}

// Encrypt encrypts a payload and audits the operation. Only the payload
// length reaches the audit trail, never the content.
func (s *Service) Encrypt(ctx context.Context, plaintext, userID, sessionID string) (string, error) {
	envelope, err := s.encryptor.Encrypt(plaintext)
	if err != nil {
		return "", err
	}

	s.record(audit.Event{
		UserID:      userID,
		SessionID:   sessionID,
		Type:        audit.EventTypeEncryption,
		Severity:    audit.SeverityInfo,
		Description: "Payload encrypted",
		Metadata:    audit.MustJSON(map[string]int{"plaintext_length": len(plaintext)}),
	}, false)

	return envelope, nil
}

// Decrypt decrypts an envelope. Failures are always audited at warning
// severity; tampering and key mismatch are indistinguishable by design
// of AES-GCM, so both surface as the same event.
func (s *Service) Decrypt(ctx context.Context, envelope, userID, sessionID string) (string, error) {
	plaintext, err := s.encryptor.Decrypt(envelope)
	if err != nil {
		s.record(audit.Event{
			UserID:      userID,
			SessionID:   sessionID,
			Type:        audit.EventTypeDecryptionFailure,
			Severity:    audit.SeverityWarning,
			Description: "Payload decryption failed",
			Metadata:    audit.MustJSON(map[string]string{"error": err.Error()}),
		}, true)
		return "", err
	}

	s.record(audit.Event{
		UserID:      userID,
		SessionID:   sessionID,
		Type:        audit.EventTypeDecryption,
		Severity:    audit.SeverityInfo,
		Description: "Payload decrypted",
	}, false)

	return plaintext, nil
}

// CheckRateLimit applies the configured fixed-window limit to an
// identifier. Denials are force-logged at warning severity with the
// identifier hashed.
func (s *Service) CheckRateLimit(ctx context.Context, identifier, userID string) ratelimit.Result {
	result := s.limiter.Check(identifier, s.cfg.RateLimitRequests, s.cfg.RateLimitWindow)
	if result.Allowed {
		return result
	}

	metrics.RateLimitDenied.Inc()
	s.record(audit.Event{
		UserID:      userID,
		Type:        audit.EventTypeRateLimitDenied,
		Severity:    audit.SeverityWarning,
		Description: "Rate limit exceeded",
		Metadata: audit.MustJSON(map[string]interface{}{
			"identifier": crypto.HashIdentifier(identifier),
			"limit":      s.cfg.RateLimitRequests,
			"window_ms":  s.cfg.RateLimitWindow.Milliseconds(),
		}),
	}, true)

	return result
}

// SanitizeInput defuses untrusted input and audits when the input was
// modified. Lengths only; content never reaches the audit trail.
func (s *Service) SanitizeInput(ctx context.Context, input, userID string) sanitize.Result {
	result := sanitize.Sanitize(input)
	if result.WasModified {
		s.record(audit.Event{
			UserID:      userID,
			Type:        audit.EventTypeInputSanitized,
			Severity:    audit.SeverityInfo,
			Description: "Input sanitized",
			Metadata: audit.MustJSON(map[string]int{
				"original_length":  len(input),
				"sanitized_length": len(result.Sanitized),
			}),
		}, false)
	}
	return result
}

// ProtectSession records that a session's data came under protection for
// a user. The recorded association also backs session ownership checks
// in VerifyAccess.
func (s *Service) ProtectSession(ctx context.Context, userID, sessionID string) {
	s.record(audit.Event{
		UserID:      userID,
		SessionID:   sessionID,
		Type:        audit.EventTypeSessionProtected,
		Severity:    audit.SeverityInfo,
		Description: "Session data protected",
	}, true)
}

// PreservePrivacy records a privacy-preserving action for a user.
func (s *Service) PreservePrivacy(ctx context.Context, userID, description string) {
	s.record(audit.Event{
		UserID:      userID,
		Type:        audit.EventTypePrivacyPreserved,
		Severity:    audit.SeverityInfo,
		Description: description,
	}, false)
}

// ProtectConsent records a consent decision for a user.
func (s *Service) ProtectConsent(ctx context.Context, userID, description string) {
	s.record(audit.Event{
		UserID:      userID,
		Type:        audit.EventTypeConsentRecorded,
		Severity:    audit.SeverityInfo,
		Description: description,
	}, false)
}

// ResetIdentifier clears the blocked state and attempt counters for an
// identifier. This is the external intervention path for auto-blocked
// callers.
func (s *Service) ResetIdentifier(identifier string) bool {
	return s.tracker.Reset(identifier)
}

// Flush forces the buffered audit events to the store.
func (s *Service) Flush(ctx context.Context) error {
	return s.logger.Flush(ctx)
}

// RunRetention deletes events older than the configured retention
// period. Failures are logged and reported as zero deletions; the
// retention timer never crashes the process.
func (s *Service) RunRetention(ctx context.Context) int64 {
	cutoff := s.now().AddDate(0, 0, -s.cfg.RetentionDays)
	deleted, err := s.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		logging.Warn().Err(err).Time("cutoff", cutoff).Msg("Retention cycle failed")
		return 0
	}
	if deleted > 0 {
		metrics.RetentionDeleted.Add(float64(deleted))
		logging.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("Retention cycle completed")
	}
	return deleted
}

// RunSweep evicts expired rate-limit windows and idle non-blocked
// attack patterns, bounding the in-memory maps. Returns the counts
// removed from each.
func (s *Service) RunSweep(ctx context.Context) (int, int) {
	records := s.limiter.Sweep(sweepGrace)
	patterns := s.tracker.Sweep(sweepMaxIdle)
	if records > 0 || patterns > 0 {
		logging.Info().
			Int("rate_records", records).
			Int("attack_patterns", patterns).
			Msg("Sweep cycle completed")
	}
	return records, patterns
}

// Shutdown flushes remaining events and stops the caches. The store is
// owned by the caller and closed separately.
func (s *Service) Shutdown(ctx context.Context) error {
	s.summaryCache.Stop()
	s.statsCache.Stop()
	return s.logger.Flush(ctx)
}
