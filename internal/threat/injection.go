// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package threat

import (
	"math"
	"regexp"
)

// InjectionConfig configures the prompt injection detector.
type InjectionConfig struct {
	// ConfidenceThreshold is the combined confidence above which detection
	// fires.
	ConfidenceThreshold float64 `json:"confidence_threshold"`

	// EntropyThreshold is the entropy (bits) above which the entropy signal
	// contributes.
	EntropyThreshold float64 `json:"entropy_threshold"`

	// AnomalyThreshold is the statistical score above which the feature
	// signal contributes.
	AnomalyThreshold float64 `json:"anomaly_threshold"`
}

// DefaultInjectionConfig returns sensible defaults.
func DefaultInjectionConfig() InjectionConfig {
	return InjectionConfig{
		ConfidenceThreshold: 0.5,
		EntropyThreshold:    5.5,
		AnomalyThreshold:    0.5,
	}
}

// InjectionResult is the verdict of the prompt injection detector.
type InjectionResult struct {
	// Detected reports whether combined confidence exceeded the threshold.
	Detected bool `json:"detected"`

	// Confidence is the combined detection confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Methods lists the signals that contributed (pattern_matching,
	// statistical_analysis, entropy_analysis).
	Methods []string `json:"methods"`

	// Features is the statistical feature vector that fed the decision.
	Features Features `json:"features"`
}

// injectionPatterns are known instruction-override phrasings. Matching any
// one contributes 0.4 confidence.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(previous|all|earlier)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)forget\s+(everything|all|previous)`),
	regexp.MustCompile(`(?i)disregard\s+(previous|all|earlier)`),
	regexp.MustCompile(`(?i)override\s+(system|previous|instructions?)`),
	regexp.MustCompile(`(?i)act\s+as\s+(a|an|the)`),
	regexp.MustCompile(`(?i)pretend\s+to\s+be`),
	regexp.MustCompile(`(?i)you\s+are\s+now`),
	regexp.MustCompile(`(?i)from\s+now\s+on`),
	regexp.MustCompile(`(?i)output\s+(as|in)\s+(json|xml|code|raw)`),
	regexp.MustCompile(`(?i)format\s+(as|in)\s+(json|xml|code|raw)`),
	regexp.MustCompile(`(?i)respond\s+(as|in)\s+(json|xml|code|raw)`),
	regexp.MustCompile(`(?i)(show|reveal|display|tell|give)\s+me\s+(the|your|all)`),
	regexp.MustCompile(`(?i)(what|where)\s+is\s+(your|the)\s+(api|key|secret|password|token)`),
	regexp.MustCompile(`(?i)(print|output|return)\s+(your|the)\s+(system|internal|private)`),
	regexp.MustCompile(`(?i)<\|(system|user|assistant)\|>`),
	regexp.MustCompile(`(?i)\[INST\]`),
	regexp.MustCompile(`\x1b\[`),
	regexp.MustCompile(`(?i)(BEGIN|START)\s+(NEW|REAL)\s+(INSTRUCTION|PROMPT|TASK)`),
	regexp.MustCompile(`(?i)(END|STOP)\s+(CURRENT|PREVIOUS)\s+(INSTRUCTION|PROMPT|TASK)`),
}

// filterPatterns are the phrasings rewritten by FilterInjection.
var filterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(previous|all|earlier)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)forget\s+(everything|all|previous)`),
	regexp.MustCompile(`(?i)act\s+as\s+(a|an|the)\s+`),
}

// filteredPlaceholder replaces defused instruction-override phrasings.
const filteredPlaceholder = "[FILTERED]"

// DetectInjection scores text for prompt injection. Three independent
// signals combine into the confidence:
//
//   - pattern matching against known override phrasings (+0.4)
//   - the statistical anomaly score, when above its threshold (+score*0.4)
//   - high character entropy (+0.2)
//
// Detection fires when combined confidence exceeds the configured threshold.
func DetectInjection(text string, cfg InjectionConfig) InjectionResult {
	var methods []string
	confidence := 0.0

	for _, pattern := range injectionPatterns {
		if pattern.MatchString(text) {
			methods = append(methods, "pattern_matching")
			confidence += 0.4
			break
		}
	}

	features := ExtractFeatures(text)
	if features.AnomalyScore > cfg.AnomalyThreshold {
		methods = append(methods, "statistical_analysis")
		confidence += features.AnomalyScore * 0.4
	}

	if features.Entropy > cfg.EntropyThreshold {
		methods = append(methods, "entropy_analysis")
		confidence += 0.2
	}

	return InjectionResult{
		Detected:   confidence > cfg.ConfidenceThreshold,
		Confidence: math.Min(1.0, confidence),
		Methods:    methods,
		Features:   features,
	}
}

// FilterInjection rewrites known instruction-override phrasings to
// [FILTERED], defusing the input while preserving the rest.
func FilterInjection(text string) string {
	for _, pattern := range filterPatterns {
		text = pattern.ReplaceAllString(text, filteredPlaceholder)
	}
	return text
}
