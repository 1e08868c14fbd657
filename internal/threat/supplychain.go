// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package threat

import (
	"net/url"
	"strings"
)

// SupplyChainConfig configures the external-endpoint validator.
type SupplyChainConfig struct {
	// AllowedDomains are the domains (and their subdomains) an external
	// endpoint may belong to.
	AllowedDomains []string `json:"allowed_domains"`

	// MinCredentialLength is the minimum acceptable credential length.
	MinCredentialLength int `json:"min_credential_length"`
}

// DefaultSupplyChainConfig returns defaults with an empty allow list.
// An empty allow list rejects every endpoint; the list must be configured
// deliberately.
func DefaultSupplyChainConfig() SupplyChainConfig {
	return SupplyChainConfig{
		MinCredentialLength: 16,
	}
}

// SupplyChainResult is the verdict of the endpoint validator.
type SupplyChainResult struct {
	// Valid is true when no issues were found.
	Valid bool `json:"valid"`

	// Issues lists the individual failures (insecure_transport,
	// domain_not_allowed, weak_credential, malformed_endpoint).
	Issues []string `json:"issues,omitempty"`
}

// weakCredentials are values that indicate a placeholder or test credential
// regardless of length.
var weakCredentials = map[string]bool{
	"test": true, "demo": true, "changeme": true, "password": true,
	"secret": true, "12345678": true, "apikey": true,
}

// ValidateSupplyChain confirms an external endpoint uses a secure transport
// scheme and belongs to an allow-listed domain, and flags weak or short
// credentials.
func ValidateSupplyChain(endpoint, credential string, cfg SupplyChainConfig) SupplyChainResult {
	var issues []string

	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" {
		issues = append(issues, "malformed_endpoint")
	} else {
		if parsed.Scheme != "https" {
			issues = append(issues, "insecure_transport")
		}
		if !domainAllowed(parsed.Hostname(), cfg.AllowedDomains) {
			issues = append(issues, "domain_not_allowed")
		}
	}

	if len(credential) < cfg.MinCredentialLength || weakCredentials[strings.ToLower(credential)] {
		issues = append(issues, "weak_credential")
	}

	return SupplyChainResult{
		Valid:  len(issues) == 0,
		Issues: issues,
	}
}

// domainAllowed reports whether host equals an allowed domain or is a
// subdomain of one.
func domainAllowed(host string, allowed []string) bool {
	host = strings.ToLower(host)
	for _, domain := range allowed {
		domain = strings.ToLower(domain)
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
