// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package security

import (
	"context"

	"github.com/tomtom215/vigil/internal/audit"
	"github.com/tomtom215/vigil/internal/crypto"
	"github.com/tomtom215/vigil/internal/metrics"
	"github.com/tomtom215/vigil/internal/sanitize"
	"github.com/tomtom215/vigil/internal/threat"
)

// Threat names surfaced by ValidateLLMInput.
const (
	ThreatPromptInjection = "prompt_injection"
	ThreatUnsafeContent   = "unsafe_content"
	ThreatAutoBlocked     = "auto_blocked"
	ThreatBlocked         = "blocked_identifier"
)

// LLMInputResult is the outcome of validating model-bound input.
type LLMInputResult struct {
	// Safe is true when nothing was detected and the caller is not blocked.
	Safe bool `json:"safe"`

	// Sanitized is the input with injection phrasings filtered and
	// metacharacters defused. Empty when the caller is blocked.
	Sanitized string `json:"sanitized"`

	// Threats lists what was found.
	Threats []string `json:"threats,omitempty"`

	// Blocked is true when the identifier is auto-blocked.
	Blocked bool `json:"blocked"`
}

// ValidateLLMInput screens input destined for a language model. It
// composes injection detection, per-identifier auto-blocking, and the
// sanitizer. A blocked identifier is rejected outright; crossing the
// attempt threshold blocks the identifier until an external reset.
func (s *Service) ValidateLLMInput(ctx context.Context, input, userID, sessionID, identifier string) LLMInputResult {
	if identifier != "" && s.tracker.IsBlocked(identifier) {
		s.record(audit.Event{
			UserID:      userID,
			SessionID:   sessionID,
			Type:        audit.EventTypeIdentifierBlocked,
			Severity:    audit.SeverityCritical,
			Description: "Request from blocked identifier rejected",
			Metadata: audit.MustJSON(map[string]string{
				"identifier": crypto.HashIdentifier(identifier),
				"reason":     "repeated_prompt_injection_attempts",
			}),
		}, true)
		return LLMInputResult{Threats: []string{ThreatBlocked}, Blocked: true}
	}

	var threats []string
	blocked := false
	sanitized := input

	detection := threat.DetectInjection(input, s.injectionCfg)
	if detection.Detected {
		threats = append(threats, ThreatPromptInjection)
		metrics.Detections.WithLabelValues("injection").Inc()
		sanitized = threat.FilterInjection(sanitized)

		if identifier != "" {
			pattern := s.tracker.RecordAttempt(identifier)
			if pattern.Blocked {
				blocked = true
				threats = append(threats, ThreatAutoBlocked)
				metrics.IdentifiersBlocked.Inc()
				s.record(audit.Event{
					UserID:      userID,
					SessionID:   sessionID,
					Type:        audit.EventTypeIdentifierBlocked,
					Severity:    audit.SeverityCritical,
					Description: "Identifier auto-blocked after repeated injection attempts",
					Metadata: audit.MustJSON(map[string]interface{}{
						"identifier": crypto.HashIdentifier(identifier),
						"attempts":   pattern.PromptInjectionAttempts,
						"confidence": detection.Confidence,
						"methods":    detection.Methods,
					}),
				}, true)
			}
		}
	}

	result := sanitize.Sanitize(sanitized)
	if result.WasModified {
		threats = append(threats, ThreatUnsafeContent)
	}
	sanitized = result.Sanitized

	if len(threats) > 0 {
		severity := audit.SeverityInfo
		if blocked {
			severity = audit.SeverityWarning
		}
		confidence := 0.0
		if detection.Detected {
			confidence = detection.Confidence
		}
		s.record(audit.Event{
			UserID:      userID,
			SessionID:   sessionID,
			Type:        audit.EventTypeInjectionDetected,
			Severity:    severity,
			Description: "Model input validated with findings",
			Metadata: audit.MustJSON(map[string]interface{}{
				"threats":    threats,
				"blocked":    blocked,
				"confidence": confidence,
			}),
		}, blocked)
	}

	return LLMInputResult{
		Safe:      !blocked && len(threats) == 0,
		Sanitized: sanitized,
		Threats:   threats,
		Blocked:   blocked,
	}
}

// ValidateModelResponse checks a model response against an expected
// shape. Anomalous responses are audited at warning severity.
func (s *Service) ValidateModelResponse(ctx context.Context, response string, shape threat.ResponseShape, userID string) threat.ResponseResult {
	result := threat.ValidateResponse(response, shape)
	if !result.Normal {
		metrics.Detections.WithLabelValues("shadow_output").Inc()
		s.record(audit.Event{
			UserID:      userID,
			Type:        audit.EventTypeShadowOutput,
			Severity:    audit.SeverityWarning,
			Description: "Model response deviated from expected shape",
			Metadata: audit.MustJSON(map[string]interface{}{
				"anomaly_score": result.AnomalyScore,
				"anomalies":     result.Anomalies,
			}),
		}, true)
	}
	return result
}

// DetectShadowModel checks a response against the default shape. A
// response that looks nothing like the deployed model's output suggests
// the caller was served by a different model.
func (s *Service) DetectShadowModel(ctx context.Context, response, userID string) threat.ResponseResult {
	return s.ValidateModelResponse(ctx, response, threat.DefaultResponseShape(), userID)
}

// DetectMembershipInference checks a response for PII-shaped content
// that may reproduce stored records.
func (s *Service) DetectMembershipInference(ctx context.Context, response, userID string) threat.MembershipResult {
	result := threat.DetectMembershipInference(response)
	if result.Detected {
		metrics.Detections.WithLabelValues("membership").Inc()
		s.record(audit.Event{
			UserID:      userID,
			Type:        audit.EventTypeMembershipInference,
			Severity:    audit.SeverityWarning,
			Description: "Response may reproduce stored records",
			Metadata: audit.MustJSON(map[string]interface{}{
				"confidence": result.Confidence,
				"matches":    result.Matches,
				"signals":    result.Signals,
			}),
		}, true)
	}
	return result
}

// ValidateAlignment checks text against the safety categories. Any
// violation is critical and always audited.
func (s *Service) ValidateAlignment(ctx context.Context, text, userID string) threat.AlignmentResult {
	result := threat.CheckAlignment(text, s.alignmentCfg)
	if !result.Aligned {
		metrics.Detections.WithLabelValues("alignment").Inc()
		s.record(audit.Event{
			UserID:      userID,
			Type:        audit.EventTypeAlignmentViolation,
			Severity:    audit.SeverityCritical,
			Description: "Safety category violation",
			Metadata:    audit.MustJSON(map[string]interface{}{"violations": result.Violations}),
		}, true)
	}
	return result
}

// DetectSocialEngineering checks text for manipulation indicators.
func (s *Service) DetectSocialEngineering(ctx context.Context, text, userID string) threat.SocialEngineeringResult {
	result := threat.DetectSocialEngineering(text)
	if result.Detected {
		metrics.Detections.WithLabelValues("social").Inc()
		s.record(audit.Event{
			UserID:      userID,
			Type:        audit.EventTypeSocialEngineering,
			Severity:    audit.SeverityWarning,
			Description: "Social engineering indicators in text",
			Metadata:    audit.MustJSON(map[string]interface{}{"indicators": result.Indicators}),
		}, true)
	}
	return result
}

// ValidateAISupplyChain checks a model endpoint and credential against
// the configured allow list and basic hygiene rules. The credential is
// never audited, only whether it was weak.
func (s *Service) ValidateAISupplyChain(ctx context.Context, endpoint, credential, userID string) threat.SupplyChainResult {
	result := threat.ValidateSupplyChain(endpoint, credential, s.supplyChainCfg)
	if !result.Valid {
		metrics.Detections.WithLabelValues("supply_chain").Inc()
		s.record(audit.Event{
			UserID:      userID,
			Type:        audit.EventTypeSupplyChainRisk,
			Severity:    audit.SeverityWarning,
			Description: "Model supply chain validation failed",
			Metadata: audit.MustJSON(map[string]interface{}{
				"endpoint": endpoint,
				"issues":   result.Issues,
			}),
		}, true)
	}
	return result
}

// CORSResult is the outcome of validating a CORS origin configuration.
type CORSResult struct {
	Safe    bool     `json:"safe"`
	Threats []string `json:"threats,omitempty"`
}

// ValidateCORSConfiguration flags wildcard origins. A wildcard defeats
// origin checks entirely and is audited at warning severity.
func (s *Service) ValidateCORSConfiguration(ctx context.Context, allowedOrigins []string) CORSResult {
	for _, origin := range allowedOrigins {
		if origin == "*" {
			s.record(audit.Event{
				Type:        audit.EventTypeCORSMisconfigured,
				Severity:    audit.SeverityWarning,
				Description: "CORS configuration allows any origin",
			}, true)
			return CORSResult{Safe: false, Threats: []string{"cors_wildcard_allowed"}}
		}
	}
	return CORSResult{Safe: true}
}
