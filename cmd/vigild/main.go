// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// vigild runs the security auditing daemon: the security service, the
// background flush/retention/monitoring jobs, and the operational HTTP
// surface, all under one supervisor tree.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/vigil/internal/audit"
	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/security"
	"github.com/tomtom215/vigil/internal/server"
	"github.com/tomtom215/vigil/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("vigild exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("store", cfg.Store.Type).
		Float64("sampling_rate", cfg.Security.SamplingRate).
		Msg("Starting vigild")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := audit.NewStore(ctx, audit.StoreType(cfg.Store.Type), cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Warn().Err(err).Msg("Store close failed")
		}
	}()

	svc, err := security.New(security.Options{
		Store:      store,
		Config:     cfg.Security,
		Monitoring: cfg.Monitoring,
	})
	if err != nil {
		return err
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddJob(supervisor.NewFlushService(svc, cfg.Security.FlushInterval))
	tree.AddJob(supervisor.NewRetentionService(svc, cfg.Security.RetentionInterval))
	tree.AddJob(supervisor.NewSweepService(svc, cfg.Security.SweepInterval))
	tree.AddJob(supervisor.NewMonitoringService(svc, cfg.Monitoring.Interval))

	if cfg.Server.Enabled {
		httpSrv := server.New(cfg.Server, svc)
		tree.AddAPIService(supervisor.NewHTTPService("http-server", httpSrv.Start))
	}

	err = tree.Serve(ctx)

	// One final flush so shutdown never drops buffered events.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if flushErr := svc.Shutdown(shutdownCtx); flushErr != nil {
		logging.Warn().Err(flushErr).Msg("Final flush failed")
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("vigild stopped")
	return nil
}
