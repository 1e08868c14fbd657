// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/security"
)

// Server is the operational HTTP server.
type Server struct {
	cfg     config.ServerConfig
	service *security.Service
	httpSrv *http.Server
}

// New builds a server around the security service.
func New(cfg config.ServerConfig, service *security.Service) *Server {
	s := &Server{
		cfg:     cfg,
		service: service,
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
		IdleTimeout:       2 * timeout,
	}

	return s
}

// Router assembles the route tree. Exposed separately so tests can
// drive the handlers without a listening socket.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger())
	r.Use(corsHandler(s.cfg.CORSOrigins))

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.cfg.RateLimitReqs > 0 {
			r.Use(rateLimit(s.cfg.RateLimitReqs))
		}

		r.Get("/summary/{sessionID}", s.handleSummary)
		r.Get("/stats/{userID}", s.handleStats)
		r.Get("/events/recent", s.handleRecentEvents)
		r.Post("/reset/{identifier}", s.handleReset)
	})

	return r
}

// Start serves until the context is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.httpSrv.Addr).Msg("HTTP server listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}
