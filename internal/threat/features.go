// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package threat implements heuristic detectors that score untrusted text
// and external model responses. None of the detectors are ML models: every
// verdict is an explainable combination of pattern matches and statistical
// features, making each detector independently unit-testable. Detectors are
// pure functions of their input plus static configuration; the only mutable
// state in this package is the per-identifier attempt Tracker.
package threat

import (
	"math"
	"regexp"
	"strings"
)

// Features holds the statistical signals extracted from a piece of text.
type Features struct {
	// Entropy is the Shannon character entropy in bits.
	Entropy float64 `json:"entropy"`

	// SpecialCharRatio is the fraction of characters from the shell/markup
	// metacharacter set.
	SpecialCharRatio float64 `json:"special_char_ratio"`

	// CommandLikeRatio is the ratio of instruction-override keywords to words.
	CommandLikeRatio float64 `json:"command_like_ratio"`

	// SuspiciousKeywordCount is the number of distinct suspicious keywords
	// present.
	SuspiciousKeywordCount int `json:"suspicious_keyword_count"`

	// AnomalyScore is the weighted combination of the above in [0,1].
	AnomalyScore float64 `json:"anomaly_score"`
}

var (
	specialChars = regexp.MustCompile(`[<>{}\[\]()|\\/@#$%^&*+=~` + "`" + `]`)

	commandPattern = regexp.MustCompile(`(?i)(ignore|forget|override|disregard|act\s+as|pretend|output|format|respond)`)

	suspiciousKeywords = []string{
		"system", "prompt", "instruction", "rule", "ignore", "forget",
		"override", "disregard", "reveal", "show", "display", "secret",
		"key", "password", "token", "api", "internal", "private",
	}

	suspiciousKeywordPatterns = compileKeywordPatterns(suspiciousKeywords)
)

func compileKeywordPatterns(keywords []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(keywords))
	for i, kw := range keywords {
		patterns[i] = regexp.MustCompile(`(?i)\b` + kw + `\b`)
	}
	return patterns
}

// Entropy returns the Shannon character entropy of text in bits.
// Empty text has zero entropy.
func Entropy(text string) float64 {
	if text == "" {
		return 0
	}

	counts := make(map[rune]int)
	total := 0
	for _, r := range text {
		counts[r]++
		total++
	}

	entropy := 0.0
	for _, count := range counts {
		p := float64(count) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// ExtractFeatures computes the statistical feature vector for text.
//
// The anomaly score weights entropy (normalized against 8 bits), special
// character density, command-keyword density, and suspicious keyword count
// at 0.3/0.3/0.2/0.2 and clamps to [0,1].
func ExtractFeatures(text string) Features {
	entropy := Entropy(text)

	specialRatio := 0.0
	if len(text) > 0 {
		specialRatio = float64(len(specialChars.FindAllString(text, -1))) / float64(len(text))
	}

	commandRatio := 0.0
	if words := len(strings.Fields(text)); words > 0 {
		commandRatio = float64(len(commandPattern.FindAllString(text, -1))) / float64(words)
	}

	keywordCount := 0
	for _, pattern := range suspiciousKeywordPatterns {
		if pattern.MatchString(text) {
			keywordCount++
		}
	}

	score := (entropy/8.0)*0.3 +
		specialRatio*0.3 +
		math.Min(commandRatio*10, 1.0)*0.2 +
		math.Min(float64(keywordCount)/5.0, 1.0)*0.2

	return Features{
		Entropy:                entropy,
		SpecialCharRatio:       specialRatio,
		CommandLikeRatio:       commandRatio,
		SuspiciousKeywordCount: keywordCount,
		AnomalyScore:           math.Min(1.0, score),
	}
}
