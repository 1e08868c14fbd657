// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package audit provides the security event model, the sampling write
// buffer, and the event stores. It records security-relevant events for
// compliance and forensic analysis.
package audit

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// EventType categorizes security events.
type EventType string

const (
	// Cryptography events
	EventTypeEncryption        EventType = "crypto.encrypt"
	EventTypeDecryption        EventType = "crypto.decrypt"
	EventTypeDecryptionFailure EventType = "crypto.decrypt_failure"

	// Rate limiting events
	EventTypeRateLimitDenied EventType = "ratelimit.denied"

	// Input handling events
	EventTypeInputSanitized EventType = "input.sanitized"

	// Threat detection events
	EventTypeInjectionDetected   EventType = "threat.injection"
	EventTypeIdentifierBlocked   EventType = "threat.blocked"
	EventTypeAlignmentViolation  EventType = "threat.alignment"
	EventTypeShadowOutput        EventType = "threat.shadow_output"
	EventTypeMembershipInference EventType = "threat.membership_inference"
	EventTypeSocialEngineering   EventType = "threat.social_engineering"
	EventTypeSupplyChainRisk     EventType = "threat.supply_chain"

	// Access control events
	EventTypeAccessGranted EventType = "access.granted"
	EventTypeAccessDenied  EventType = "access.denied"

	// Privacy events
	EventTypeSessionProtected EventType = "privacy.session_protected"
	EventTypePrivacyPreserved EventType = "privacy.preserved"
	EventTypeConsentRecorded  EventType = "privacy.consent"

	// Configuration events
	EventTypeCORSMisconfigured EventType = "config.cors_misconfigured"

	// Monitoring events
	EventTypeMonitoringAlert EventType = "monitoring.alert"
)

// Severity indicates the severity level of a security event. Info events
// are subject to sampling; warning and critical events are always kept.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event represents a single security event. Events are write-once: once
// recorded they are never mutated.
type Event struct {
	// ID is a unique identifier for this event.
	ID string `json:"id"`

	// UserID is the subject user, if any. Callers hash raw identities
	// before recording.
	UserID string `json:"user_id,omitempty"`

	// SessionID is the session the event belongs to, if any.
	SessionID string `json:"session_id,omitempty"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// Severity of the event.
	Severity Severity `json:"severity"`

	// Description provides human-readable details.
	Description string `json:"description"`

	// Metadata contains event-specific details.
	Metadata json.RawMessage `json:"metadata,omitempty"`

	// Timestamp when the event occurred.
	Timestamp time.Time `json:"timestamp"`
}

// TypeCount is an aggregate of events sharing a type and severity.
type TypeCount struct {
	Type     EventType `json:"type"`
	Severity Severity  `json:"severity"`
	Count    int64     `json:"count"`
}

// Filter narrows aggregate queries.
type Filter struct {
	// SessionID restricts to a single session.
	SessionID string `json:"session_id,omitempty"`

	// UserID restricts to a single user.
	UserID string `json:"user_id,omitempty"`

	// Severities restricts to the given severity levels.
	Severities []Severity `json:"severities,omitempty"`

	// StartTime is the beginning of the time range.
	StartTime *time.Time `json:"start_time,omitempty"`

	// EndTime is the end of the time range.
	EndTime *time.Time `json:"end_time,omitempty"`
}

// Store defines the interface for security event persistence. All
// implementations must be safe for concurrent use.
type Store interface {
	// InsertEvents persists a batch of events atomically where the
	// backend allows it.
	InsertEvents(ctx context.Context, events []Event) error

	// CountsByType aggregates matching events by type and severity.
	CountsByType(ctx context.Context, filter Filter) ([]TypeCount, error)

	// RecentEvents returns the most recent events for a user,
	// newest first.
	RecentEvents(ctx context.Context, userID string, limit int) ([]Event, error)

	// DeleteBefore removes events older than the cutoff and returns
	// how many were removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// UpsertSummary stores the latest per-session aggregate snapshot.
	UpsertSummary(ctx context.Context, sessionID string, counts []TypeCount) error

	// Close releases backend resources.
	Close() error
}

// MustJSON converts a value to JSON metadata, returning an empty object
// on error.
func MustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}
