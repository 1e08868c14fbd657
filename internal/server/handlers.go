// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const maxRecentEventLimit = 1000

// handleHealthz reports liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, r, map[string]string{"status": "ok"})
}

// handleSummary returns the aggregated security summary for a session.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "session ID is required")
		return
	}

	summary, err := s.service.GenerateSecuritySummary(r.Context(), sessionID)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "summary unavailable")
		return
	}
	writeSuccess(w, r, summary)
}

// handleStats returns a user's rolling security stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "user ID is required")
		return
	}

	stats, err := s.service.GetUserSecurityStats(r.Context(), userID)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "stats unavailable")
		return
	}
	writeSuccess(w, r, stats)
}

// handleRecentEvents returns the newest events, optionally scoped to a
// user via ?user= and bounded via ?limit=.
func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxRecentEventLimit {
			writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = parsed
	}

	events, err := s.service.RecentEvents(r.Context(), userID, limit)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "events unavailable")
		return
	}
	writeSuccess(w, r, events)
}

// handleReset clears the blocked state for an identifier. This is the
// external intervention path; nothing inside the service unblocks an
// identifier on its own.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	if identifier == "" {
		writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "identifier is required")
		return
	}

	reset := s.service.ResetIdentifier(identifier)
	if !reset {
		writeError(w, r, http.StatusNotFound, ErrCodeNotFound, "identifier not tracked")
		return
	}
	writeSuccess(w, r, map[string]interface{}{"identifier": identifier, "reset": true})
}
