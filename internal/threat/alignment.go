// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package threat

import (
	"sort"
	"strings"
)

// AlignmentConfig configures the safety-violation detector. Categories map
// a category name to the keywords that indicate it.
type AlignmentConfig struct {
	Categories map[string][]string `json:"categories"`
}

// DefaultAlignmentConfig returns the standard safety categories.
func DefaultAlignmentConfig() AlignmentConfig {
	return AlignmentConfig{
		Categories: map[string][]string{
			"violence": {
				"kill", "murder", "assault", "attack someone", "weapon",
				"bomb", "shoot", "stab",
			},
			"hate_speech": {
				"hate speech", "racial slur", "ethnic cleansing", "genocide",
			},
			"self_harm": {
				"suicide", "self-harm", "self harm", "hurt myself",
				"end my life",
			},
			"sexual_content": {
				"sexual content", "explicit content", "pornographic",
			},
			"illegal_activity": {
				"how to steal", "launder money", "buy drugs", "forge",
				"counterfeit", "hack into",
			},
		},
	}
}

// AlignmentResult is the verdict of the safety-violation detector.
type AlignmentResult struct {
	// Aligned is false when any safety category matched.
	Aligned bool `json:"aligned"`

	// Violations lists the matched category names.
	Violations []string `json:"violations,omitempty"`
}

// CheckAlignment matches text against the configured safety categories.
// Any match is a violation; the caller treats violations as critical
// severity and force-logs them.
func CheckAlignment(text string, cfg AlignmentConfig) AlignmentResult {
	lower := strings.ToLower(text)

	var violations []string
	for category, keywords := range cfg.Categories {
		for _, keyword := range keywords {
			if strings.Contains(lower, keyword) {
				violations = append(violations, category)
				break
			}
		}
	}

	// Map iteration order is randomized; keep output stable.
	sort.Strings(violations)

	return AlignmentResult{
		Aligned:    len(violations) == 0,
		Violations: violations,
	}
}
