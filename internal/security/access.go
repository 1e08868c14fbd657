// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package security

import (
	"context"

	"github.com/tomtom215/vigil/internal/audit"
)

// Resource types with ownership rules. Anything else falls through to
// the role policy, which only admins satisfy.
const (
	ResourceSession = "session"
	ResourceUser    = "user"
)

// VerifyAccess decides whether a user may perform an action on a
// resource. Sessions belong to the user who protected them; user
// resources belong to themselves; unknown resource types require the
// admin role. Store unavailability or a missing ownership record
// resolves to deny. Grants are sampled like other info events; denials
// are always force-logged.
func (s *Service) VerifyAccess(ctx context.Context, userID, resourceType, resourceID, action string) bool {
	if userID == "" {
		s.recordDenial(userID, resourceType, resourceID, action, "missing user")
		return false
	}

	if s.enforcer.IsAdmin(userID) {
		s.recordGrant(userID, resourceType, resourceID, action)
		return true
	}

	switch resourceType {
	case ResourceSession:
		owned, err := s.ownsSession(ctx, userID, resourceID)
		if err != nil {
			s.recordDenial(userID, resourceType, resourceID, action, "store unavailable")
			return false
		}
		if !owned {
			s.recordDenial(userID, resourceType, resourceID, action, "not session owner")
			return false
		}
	case ResourceUser:
		if userID != resourceID {
			s.recordDenial(userID, resourceType, resourceID, action, "not self")
			return false
		}
	default:
		allowed, err := s.enforcer.Enforce(userID, resourceType, action)
		if err != nil || !allowed {
			s.recordDenial(userID, resourceType, resourceID, action, "no policy grants access")
			return false
		}
	}

	s.recordGrant(userID, resourceType, resourceID, action)
	return true
}

// ownsSession checks the user's audit trail for events tied to the
// session, filtered at the store so ownership survives any amount of
// newer activity. ProtectSession records the association; a user with
// no stored events for the session does not own it. Retention is the
// only bound: ownership records older than the retention period age
// out with the rest of the trail.
func (s *Service) ownsSession(ctx context.Context, userID, sessionID string) (bool, error) {
	if err := s.logger.Flush(ctx); err != nil {
		return false, err
	}

	counts, err := s.store.CountsByType(ctx, audit.Filter{UserID: userID, SessionID: sessionID})
	if err != nil {
		return false, err
	}
	for _, tc := range counts {
		if tc.Count > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) recordGrant(userID, resourceType, resourceID, action string) {
	s.record(audit.Event{
		UserID:      userID,
		Type:        audit.EventTypeAccessGranted,
		Severity:    audit.SeverityInfo,
		Description: "Access granted",
		Metadata: audit.MustJSON(map[string]string{
			"resource_type": resourceType,
			"resource_id":   resourceID,
			"action":        action,
		}),
	}, false)
}

func (s *Service) recordDenial(userID, resourceType, resourceID, action, reason string) {
	s.record(audit.Event{
		UserID:      userID,
		Type:        audit.EventTypeAccessDenied,
		Severity:    audit.SeverityWarning,
		Description: "Access denied",
		Metadata: audit.MustJSON(map[string]string{
			"resource_type": resourceType,
			"resource_id":   resourceID,
			"action":        action,
			"reason":        reason,
		}),
	}, true)
}
