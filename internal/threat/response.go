// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package threat

import (
	"regexp"
	"sort"

	"github.com/goccy/go-json"
)

// ResponseShape describes the expected shape of an external model response.
type ResponseShape struct {
	// RequiredKeys are top-level JSON keys the response must carry.
	// Empty means the response is not expected to be JSON.
	RequiredKeys []string `json:"required_keys,omitempty"`

	// MinLength and MaxLength bound the response size in bytes.
	// Zero disables the respective bound.
	MinLength int `json:"min_length"`
	MaxLength int `json:"max_length"`

	// AllowCode permits code-like content without penalty.
	AllowCode bool `json:"allow_code"`

	// MaxNonASCIIRatio is the tolerated density of non-ASCII bytes.
	MaxNonASCIIRatio float64 `json:"max_non_ascii_ratio"`
}

// DefaultResponseShape returns permissive bounds for free-text responses.
func DefaultResponseShape() ResponseShape {
	return ResponseShape{
		MinLength:        1,
		MaxLength:        100000,
		MaxNonASCIIRatio: 0.5,
	}
}

// ResponseResult is the verdict of the shadow-output detector.
type ResponseResult struct {
	// Normal is true iff AnomalyScore stayed below 0.5.
	Normal bool `json:"normal"`

	// AnomalyScore is the additive anomaly score in [0,1].
	AnomalyScore float64 `json:"anomaly_score"`

	// Anomalies lists the shape violations that contributed.
	Anomalies []string `json:"anomalies,omitempty"`
}

// responseNormalThreshold is the score at or above which a response is
// considered anomalous.
const responseNormalThreshold = 0.5

var codeLikePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*(func|def|class|import|package|var|const)\s`),
	regexp.MustCompile("```"),
	regexp.MustCompile(`<\?php|#!/bin/|#!/usr/bin/`),
	regexp.MustCompile(`(?i)\b(eval|exec|system|subprocess)\s*\(`),
}

// ValidateResponse scores an external response against the expected shape.
// Each violated expectation adds to the score: missing JSON keys 0.3,
// unexpected code 0.25, length out of bounds 0.25, excessive non-ASCII
// density 0.2. The response is normal iff the total stays below 0.5.
func ValidateResponse(response string, shape ResponseShape) ResponseResult {
	var anomalies []string
	score := 0.0

	if len(shape.RequiredKeys) > 0 && !hasRequiredKeys(response, shape.RequiredKeys) {
		anomalies = append(anomalies, "missing_required_keys")
		score += 0.3
	}

	if !shape.AllowCode && looksLikeCode(response) {
		anomalies = append(anomalies, "unexpected_code")
		score += 0.25
	}

	if (shape.MinLength > 0 && len(response) < shape.MinLength) ||
		(shape.MaxLength > 0 && len(response) > shape.MaxLength) {
		anomalies = append(anomalies, "length_out_of_bounds")
		score += 0.25
	}

	if shape.MaxNonASCIIRatio > 0 && nonASCIIRatio(response) > shape.MaxNonASCIIRatio {
		anomalies = append(anomalies, "non_ascii_density")
		score += 0.2
	}

	if score > 1.0 {
		score = 1.0
	}

	return ResponseResult{
		Normal:       score < responseNormalThreshold,
		AnomalyScore: score,
		Anomalies:    anomalies,
	}
}

// hasRequiredKeys reports whether response parses as a JSON object carrying
// every required top-level key.
func hasRequiredKeys(response string, keys []string) bool {
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		return false
	}
	for _, key := range keys {
		if _, ok := parsed[key]; !ok {
			return false
		}
	}
	return true
}

// looksLikeCode reports whether text matches any code-likeness pattern.
func looksLikeCode(text string) bool {
	for _, pattern := range codeLikePatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// nonASCIIRatio returns the fraction of bytes outside printable ASCII.
func nonASCIIRatio(text string) float64 {
	if text == "" {
		return 0
	}
	count := 0
	for i := 0; i < len(text); i++ {
		if text[i] > 127 {
			count++
		}
	}
	return float64(count) / float64(len(text))
}

// MembershipResult is the verdict of the membership-inference heuristic.
type MembershipResult struct {
	// Detected is true when enough PII-shaped substrings appear that the
	// response may be reproducing training or stored records.
	Detected bool `json:"detected"`

	// Confidence is the confidence that the response is safe, in [0,1].
	// It decreases as matches accumulate.
	Confidence float64 `json:"confidence"`

	// Matches is the total count of PII-shaped substrings found.
	Matches int `json:"matches"`

	// Signals lists the PII families that matched (date, id_number, email).
	Signals []string `json:"signals,omitempty"`
}

var piiPatterns = map[string]*regexp.Regexp{
	"date":      regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
	"id_number": regexp.MustCompile(`\b\d{8,}\b`),
	"email":     regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
}

// membershipConfidenceStep is how much each PII match lowers confidence.
const membershipConfidenceStep = 0.2

// DetectMembershipInference counts PII-shaped substrings (dates, long digit
// runs, email addresses) in a response. Confidence starts at 1.0 and drops
// by a fixed step per match; detection fires once confidence falls below
// 0.5.
func DetectMembershipInference(response string) MembershipResult {
	matches := 0
	var signals []string

	for name, pattern := range piiPatterns {
		found := pattern.FindAllString(response, -1)
		if len(found) > 0 {
			signals = append(signals, name)
			matches += len(found)
		}
	}
	// Map iteration order is randomized; keep signal output stable.
	sort.Strings(signals)

	confidence := 1.0 - membershipConfidenceStep*float64(matches)
	if confidence < 0 {
		confidence = 0
	}

	return MembershipResult{
		Detected:   confidence < 0.5,
		Confidence: confidence,
		Matches:    matches,
		Signals:    signals,
	}
}
