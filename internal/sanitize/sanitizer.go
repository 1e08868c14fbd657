// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package sanitize defuses user-supplied text against several injection
// classes through an ordered pipeline. Each stage's output is safe input to
// the next, and the full pipeline is idempotent: feeding a sanitized value
// back through it is a fixed point.
package sanitize

import (
	"regexp"
	"strings"
)

// Result carries the sanitized text and whether any stage changed it.
type Result struct {
	Sanitized   string `json:"sanitized"`
	WasModified bool   `json:"was_modified"`
}

var (
	// controlChars matches control characters except \n, \r, \t.
	controlChars = regexp.MustCompile("[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]")

	// htmlTags matches HTML/XML tags.
	htmlTags = regexp.MustCompile(`<[^>]*>`)

	// scriptSchemes matches script-triggering URI schemes, case-insensitively.
	scriptSchemes = regexp.MustCompile(`(?i)(javascript|data|vbscript):`)
)

// pipelineEntities are the escape sequences the pipeline itself emits.
// An ampersand opening one of these is already-escaped output and must not
// be escaped again, otherwise the pipeline would not be a fixed point.
var pipelineEntities = []string{
	"amp;", "lt;", "gt;", "quot;",
	"#x27;", "#x2F;", "#36;", "#46;", "#92;", "#10;", "#13;",
}

// Sanitize runs the full defusal pipeline over the input:
//
//  1. Strip control characters except newline, carriage return, and tab.
//  2. Strip HTML/XML tags.
//  3. Escape HTML metacharacters (& < > " ' /).
//  4. Escape hierarchical-query metacharacters ($ .).
//  5. Escape structured-text metacharacters (backslash, CR, LF).
//  6. Strip script-triggering URI schemes.
//
// WasModified is true iff the output differs from the input. Content is
// never logged by this package; callers audit lengths only.
func Sanitize(input string) Result {
	sanitized := input

	sanitized = controlChars.ReplaceAllString(sanitized, "")
	sanitized = htmlTags.ReplaceAllString(sanitized, "")
	sanitized = escapeMetacharacters(sanitized)
	sanitized = stripSchemes(sanitized)

	return Result{
		Sanitized:   sanitized,
		WasModified: sanitized != input,
	}
}

// escapeMetacharacters performs stages 3-5 in a single scan. Escaping in one
// pass keeps the stages from mangling each other's output: the entities
// emitted here contain & # ; and digits only, none of which are re-escaped.
func escapeMetacharacters(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '&':
			if startsPipelineEntity(s[i+1:]) {
				b.WriteByte('&')
			} else {
				b.WriteString("&amp;")
			}
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&#x27;")
		case '/':
			b.WriteString("&#x2F;")
		case '$':
			b.WriteString("&#36;")
		case '.':
			b.WriteString("&#46;")
		case '\\':
			b.WriteString("&#92;")
		case '\n':
			b.WriteString("&#10;")
		case '\r':
			b.WriteString("&#13;")
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

// startsPipelineEntity reports whether rest begins with one of the escape
// sequences this pipeline emits.
func startsPipelineEntity(rest string) bool {
	for _, entity := range pipelineEntities {
		if strings.HasPrefix(rest, entity) {
			return true
		}
	}
	return false
}

// stripSchemes removes script-triggering URI schemes until none remain.
// A single pass is not enough: removing an occurrence can splice the
// surrounding text into a new one ("javajavascript:script:" collapses to
// "javascript:" after one pass).
func stripSchemes(s string) string {
	for {
		next := scriptSchemes.ReplaceAllString(s, "")
		if next == s {
			return next
		}
		s = next
	}
}
