// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package security

import (
	"context"
	"strings"
	"testing"

	"github.com/tomtom215/vigil/internal/audit"
	"github.com/tomtom215/vigil/internal/threat"
)

func hasThreat(threats []string, want string) bool {
	for _, threat := range threats {
		if threat == want {
			return true
		}
	}
	return false
}

func TestValidateLLMInputClean(t *testing.T) {
	store := audit.NewMemoryStore(0)
	svc, _ := newTestService(t, store, nil)

	result := svc.ValidateLLMInput(context.Background(), "hello world", "user-1", "", "client-1")
	if !result.Safe {
		t.Errorf("clean input unsafe: threats=%v", result.Threats)
	}
	if result.Blocked {
		t.Error("clean input blocked")
	}
	if result.Sanitized != "hello world" {
		t.Errorf("Sanitized = %q", result.Sanitized)
	}
}

func TestValidateLLMInputDetectsInjection(t *testing.T) {
	store := audit.NewMemoryStore(0)
	svc, _ := newTestService(t, store, nil)

	result := svc.ValidateLLMInput(context.Background(), injectionText, "user-1", "", "")
	if result.Safe {
		t.Error("injection input reported safe")
	}
	if result.Blocked {
		t.Error("blocked without identifier tracking")
	}
	if !hasThreat(result.Threats, ThreatPromptInjection) {
		t.Errorf("threats = %v, want %s", result.Threats, ThreatPromptInjection)
	}
	if strings.Contains(result.Sanitized, "ignore previous instructions") {
		t.Error("injection phrasing survived filtering")
	}
}

func TestValidateLLMInputAutoBlocks(t *testing.T) {
	store := audit.NewMemoryStore(0)
	svc, _ := newTestService(t, store, func(o *Options) {
		o.Config.BlockThreshold = 2
	})
	ctx := context.Background()

	first := svc.ValidateLLMInput(ctx, injectionText, "user-1", "session-1", "attacker")
	if first.Blocked {
		t.Fatal("blocked on first attempt")
	}

	second := svc.ValidateLLMInput(ctx, injectionText, "user-1", "session-1", "attacker")
	if !second.Blocked {
		t.Fatal("not blocked at threshold")
	}
	if !hasThreat(second.Threats, ThreatAutoBlocked) {
		t.Errorf("threats = %v, want %s", second.Threats, ThreatAutoBlocked)
	}

	// Once blocked, even clean input is rejected.
	third := svc.ValidateLLMInput(ctx, "hello world", "user-1", "session-1", "attacker")
	if !third.Blocked {
		t.Fatal("blocked identifier served")
	}
	if !hasThreat(third.Threats, ThreatBlocked) {
		t.Errorf("threats = %v, want %s", third.Threats, ThreatBlocked)
	}
	if third.Sanitized != "" {
		t.Errorf("Sanitized = %q, want empty for blocked caller", third.Sanitized)
	}

	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := countOf(t, store, audit.Filter{UserID: "user-1"}, audit.EventTypeIdentifierBlocked); got != 2 {
		t.Errorf("blocked events = %d, want 2", got)
	}
}

func TestResetIdentifierUnblocks(t *testing.T) {
	store := audit.NewMemoryStore(0)
	svc, _ := newTestService(t, store, func(o *Options) {
		o.Config.BlockThreshold = 1
	})
	ctx := context.Background()

	svc.ValidateLLMInput(ctx, injectionText, "", "", "attacker")
	if result := svc.ValidateLLMInput(ctx, "hello world", "", "", "attacker"); !result.Blocked {
		t.Fatal("identifier not blocked")
	}

	if !svc.ResetIdentifier("attacker") {
		t.Fatal("ResetIdentifier found nothing to reset")
	}
	if result := svc.ValidateLLMInput(ctx, "hello world", "", "", "attacker"); result.Blocked {
		t.Error("identifier still blocked after reset")
	}
}

func TestValidateModelResponseAnomalyAudited(t *testing.T) {
	store := audit.NewMemoryStore(0)
	svc, _ := newTestService(t, store, nil)
	ctx := context.Background()

	shape := threat.ResponseShape{RequiredKeys: []string{"answer"}, MinLength: 1}
	result := svc.ValidateModelResponse(ctx, `{"other": 1}`, shape, "user-1")
	if result.Normal {
		t.Error("response missing required key reported normal")
	}

	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := countOf(t, store, audit.Filter{UserID: "user-1"}, audit.EventTypeShadowOutput); got != 1 {
		t.Errorf("shadow output events = %d, want 1", got)
	}
}

func TestValidateAlignmentViolationAudited(t *testing.T) {
	store := audit.NewMemoryStore(0)
	svc, _ := newTestService(t, store, nil)
	ctx := context.Background()

	result := svc.ValidateAlignment(ctx, "how to make a bomb", "user-1")
	if result.Aligned {
		t.Error("violation reported aligned")
	}

	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := countOf(t, store, audit.Filter{UserID: "user-1"}, audit.EventTypeAlignmentViolation); got != 1 {
		t.Errorf("alignment events = %d, want 1", got)
	}
}

func TestDetectSocialEngineeringAudited(t *testing.T) {
	store := audit.NewMemoryStore(0)
	svc, _ := newTestService(t, store, nil)
	ctx := context.Background()

	result := svc.DetectSocialEngineering(ctx, "urgent: verify your password immediately", "user-1")
	if !result.Detected {
		t.Error("social engineering not detected")
	}

	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := countOf(t, store, audit.Filter{UserID: "user-1"}, audit.EventTypeSocialEngineering); got != 1 {
		t.Errorf("social engineering events = %d, want 1", got)
	}
}

func TestValidateAISupplyChainUsesConfiguredDomains(t *testing.T) {
	store := audit.NewMemoryStore(0)
	svc, _ := newTestService(t, store, func(o *Options) {
		o.Config.AllowedDomains = []string{"models.internal.example"}
	})
	ctx := context.Background()

	good := svc.ValidateAISupplyChain(ctx, "https://models.internal.example/v1", "a-long-enough-credential", "user-1")
	if !good.Valid {
		t.Errorf("allowed endpoint rejected: %v", good.Issues)
	}

	bad := svc.ValidateAISupplyChain(ctx, "https://rogue.example.com/v1", "a-long-enough-credential", "user-1")
	if bad.Valid {
		t.Error("disallowed endpoint accepted")
	}

	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := countOf(t, store, audit.Filter{UserID: "user-1"}, audit.EventTypeSupplyChainRisk); got != 1 {
		t.Errorf("supply chain events = %d, want 1", got)
	}
}

func TestValidateCORSConfiguration(t *testing.T) {
	store := audit.NewMemoryStore(0)
	svc, _ := newTestService(t, store, nil)
	ctx := context.Background()

	safe := svc.ValidateCORSConfiguration(ctx, []string{"https://app.example.com"})
	if !safe.Safe {
		t.Errorf("explicit origin flagged: %v", safe.Threats)
	}

	unsafe := svc.ValidateCORSConfiguration(ctx, []string{"https://app.example.com", "*"})
	if unsafe.Safe {
		t.Error("wildcard origin not flagged")
	}
	if !hasThreat(unsafe.Threats, "cors_wildcard_allowed") {
		t.Errorf("threats = %v", unsafe.Threats)
	}

	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := countOf(t, store, audit.Filter{}, audit.EventTypeCORSMisconfigured); got != 1 {
		t.Errorf("CORS events = %d, want 1", got)
	}
}

func TestDetectMembershipInferenceAudited(t *testing.T) {
	store := audit.NewMemoryStore(0)
	svc, _ := newTestService(t, store, nil)
	ctx := context.Background()

	// Enough PII-shaped substrings to cross the detection threshold.
	response := "born 1990-04-12, ssn 123-45-6789, card 4111111111111111, contact alice@example.com"
	result := svc.DetectMembershipInference(ctx, response, "user-1")
	if !result.Detected {
		t.Fatalf("not detected: matches=%d confidence=%.2f", result.Matches, result.Confidence)
	}

	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := countOf(t, store, audit.Filter{UserID: "user-1"}, audit.EventTypeMembershipInference); got != 1 {
		t.Errorf("membership events = %d, want 1", got)
	}
}
