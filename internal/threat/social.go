// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package threat

import "regexp"

// SocialEngineeringResult is the verdict of the phishing detector.
type SocialEngineeringResult struct {
	// Detected is true when any indicator family matched.
	Detected bool `json:"detected"`

	// Indicators lists the matched families (urgency_language,
	// credential_harvesting, suspicious_url).
	Indicators []string `json:"indicators,omitempty"`
}

var (
	urgencyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(urgent|immediately|right\s+now|act\s+now)\b`),
		regexp.MustCompile(`(?i)within\s+\d+\s+(hours?|minutes?)`),
		regexp.MustCompile(`(?i)(account|access)\s+(will\s+be\s+)?(suspended|terminated|locked|closed)`),
		regexp.MustCompile(`(?i)(final|last)\s+(warning|notice|chance)`),
	}

	credentialPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(verify|confirm|update|validate)\s+your\s+(account|password|identity|payment|billing)`),
		regexp.MustCompile(`(?i)enter\s+your\s+(password|pin|ssn|credentials|card)`),
		regexp.MustCompile(`(?i)(log\s*in|sign\s*in)\s+(here|now|to\s+continue)`),
		regexp.MustCompile(`(?i)click\s+(here|this\s+link|the\s+link\s+below)`),
	}

	suspiciousURLPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)https?://(bit\.ly|tinyurl\.com|goo\.gl|t\.co|is\.gd|ow\.ly)/`),
		regexp.MustCompile(`https?://\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`),
	}
)

// DetectSocialEngineering scans text for phishing indicators: urgency
// language, credential-harvesting phrasing, and shortened or IP-literal
// URLs.
func DetectSocialEngineering(text string) SocialEngineeringResult {
	var indicators []string

	if matchesAny(text, urgencyPatterns) {
		indicators = append(indicators, "urgency_language")
	}
	if matchesAny(text, credentialPatterns) {
		indicators = append(indicators, "credential_harvesting")
	}
	if matchesAny(text, suspiciousURLPatterns) {
		indicators = append(indicators, "suspicious_url")
	}

	return SocialEngineeringResult{
		Detected:   len(indicators) > 0,
		Indicators: indicators,
	}
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, pattern := range patterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}
