// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func TestTickerServiceRunsJob(t *testing.T) {
	var runs atomic.Int64
	svc := NewTickerService("test-job", 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.After(2 * time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("job ran %d times, want at least 3", runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve returned %v, want context.Canceled", err)
	}
}

func TestTickerServiceSurvivesJobErrors(t *testing.T) {
	var runs atomic.Int64
	svc := NewTickerService("failing-job", 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("job failed")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Serve(ctx) //nolint:errcheck

	deadline := time.After(2 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("job ran %d times after errors, want at least 2", runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestHTTPServicePropagatesStartError(t *testing.T) {
	startErr := errors.New("listen failed")
	svc := NewHTTPService("http", func(ctx context.Context) error {
		return startErr
	})

	if err := svc.Serve(context.Background()); !errors.Is(err, startErr) {
		t.Errorf("Serve returned %v, want %v", err, startErr)
	}
}

func TestTreeServesAndStops(t *testing.T) {
	tree := NewTree(slog.Default(), TreeConfig{})

	var runs atomic.Int64
	tree.AddJob(NewTickerService("job", 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.After(2 * time.Second)
	for runs.Load() < 1 {
		select {
		case <-deadline:
			t.Fatal("supervised job never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("tree stopped with %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop")
	}
}

func TestServiceNames(t *testing.T) {
	if got := NewTickerService("audit-flush", time.Second, nil).String(); got != "audit-flush" {
		t.Errorf("String() = %q", got)
	}
	if got := NewSweepService(nil, time.Second).String(); got != "state-sweep" {
		t.Errorf("String() = %q", got)
	}
	if got := NewHTTPService("http", nil).String(); got != "http" {
		t.Errorf("String() = %q", got)
	}
}
