// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package threat

import (
	"sync"
	"testing"
	"time"
)

type trackerClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *trackerClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *trackerClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestTrackerBlocksAtThreshold(t *testing.T) {
	tr := NewTracker(3)

	for i := 1; i <= 2; i++ {
		pat := tr.RecordAttempt("user-1")
		if pat.Blocked {
			t.Fatalf("blocked after %d attempts, threshold is 3", i)
		}
		if pat.PromptInjectionAttempts != i {
			t.Fatalf("attempts = %d, want %d", pat.PromptInjectionAttempts, i)
		}
	}

	pat := tr.RecordAttempt("user-1")
	if !pat.Blocked {
		t.Fatal("not blocked after reaching threshold")
	}
	if !tr.IsBlocked("user-1") {
		t.Fatal("IsBlocked = false after threshold reached")
	}
}

func TestTrackerBlockedStaysBlocked(t *testing.T) {
	tr := NewTracker(2)
	tr.RecordAttempt("user-1")
	tr.RecordAttempt("user-1")

	// Further attempts keep counting but never unblock.
	pat := tr.RecordAttempt("user-1")
	if !pat.Blocked {
		t.Fatal("block cleared by subsequent attempt")
	}
	if pat.PromptInjectionAttempts != 3 {
		t.Fatalf("attempts = %d, want 3", pat.PromptInjectionAttempts)
	}
}

func TestTrackerIdentifiersIndependent(t *testing.T) {
	tr := NewTracker(2)
	tr.RecordAttempt("user-1")
	tr.RecordAttempt("user-1")

	if tr.IsBlocked("user-2") {
		t.Fatal("user-2 blocked by user-1's attempts")
	}
	pat := tr.RecordAttempt("user-2")
	if pat.Blocked {
		t.Fatal("user-2 blocked on first attempt")
	}
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker(2)
	tr.RecordAttempt("user-1")
	tr.RecordAttempt("user-1")
	if !tr.IsBlocked("user-1") {
		t.Fatal("setup: expected blocked")
	}

	tr.Reset("user-1")
	if tr.IsBlocked("user-1") {
		t.Fatal("still blocked after Reset")
	}
	pat := tr.RecordAttempt("user-1")
	if pat.PromptInjectionAttempts != 1 {
		t.Fatalf("attempts = %d after reset, want 1", pat.PromptInjectionAttempts)
	}
}

func TestTrackerRecordSuspicious(t *testing.T) {
	tr := NewTracker(3)
	tr.RecordSuspicious("user-1")
	tr.RecordSuspicious("user-1")

	pat, ok := tr.Get("user-1")
	if !ok {
		t.Fatal("no pattern recorded")
	}
	if pat.SuspiciousRequests != 2 {
		t.Fatalf("suspicious = %d, want 2", pat.SuspiciousRequests)
	}
	// Suspicious requests alone never block.
	if pat.Blocked {
		t.Fatal("blocked by suspicious requests")
	}
}

func TestTrackerSweepKeepsBlocked(t *testing.T) {
	clk := &trackerClock{now: time.Unix(1700000000, 0)}
	tr := NewTrackerWithClock(2, clk.Now)

	tr.RecordAttempt("stale")
	tr.RecordAttempt("blocked")
	tr.RecordAttempt("blocked")

	clk.Advance(2 * time.Hour)
	tr.RecordAttempt("fresh")

	tr.Sweep(time.Hour)

	if _, ok := tr.Get("stale"); ok {
		t.Fatal("stale unblocked entry survived sweep")
	}
	if !tr.IsBlocked("blocked") {
		t.Fatal("blocked entry removed by sweep")
	}
	if _, ok := tr.Get("fresh"); !ok {
		t.Fatal("fresh entry removed by sweep")
	}
	if tr.Len() != 2 {
		t.Fatalf("Len = %d, want 2", tr.Len())
	}
}

func TestTrackerConcurrentAttempts(t *testing.T) {
	tr := NewTracker(50)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				tr.RecordAttempt("shared")
			}
		}()
	}
	wg.Wait()

	pat, ok := tr.Get("shared")
	if !ok {
		t.Fatal("no pattern recorded")
	}
	if pat.PromptInjectionAttempts != 100 {
		t.Fatalf("attempts = %d, want 100", pat.PromptInjectionAttempts)
	}
	if !pat.Blocked {
		t.Fatal("not blocked after 100 attempts with threshold 50")
	}
}
