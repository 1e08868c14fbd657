// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package cache

import (
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(ttl time.Duration) (*Cache, *fakeClock) {
	clk := &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	return NewWithClock("test", ttl, clk.Now), clk
}

func TestCacheSetGet(t *testing.T) {
	c, _ := newTestCache(5 * time.Minute)

	c.Set("summary:session-1", "cached")
	got, ok := c.Get("summary:session-1")
	if !ok {
		t.Fatal("entry not found")
	}
	if got.(string) != "cached" {
		t.Fatalf("got %v, want cached", got)
	}

	if _, ok := c.Get("missing"); ok {
		t.Fatal("hit on missing key")
	}
}

func TestCacheExpiry(t *testing.T) {
	c, clk := newTestCache(5 * time.Minute)

	c.Set("key", 42)
	clk.Advance(4 * time.Minute)
	if _, ok := c.Get("key"); !ok {
		t.Fatal("entry expired before TTL")
	}

	clk.Advance(2 * time.Minute)
	if _, ok := c.Get("key"); ok {
		t.Fatal("entry survived past TTL")
	}

	// Expired read evicts the entry
	stats := c.GetStats()
	if stats.Evictions != 1 {
		t.Fatalf("Evictions = %d, want 1", stats.Evictions)
	}
}

func TestCacheSetWithTTL(t *testing.T) {
	c, clk := newTestCache(5 * time.Minute)

	c.SetWithTTL("short", "v", time.Minute)
	c.Set("long", "v")

	clk.Advance(2 * time.Minute)
	if _, ok := c.Get("short"); ok {
		t.Fatal("custom-TTL entry survived past its TTL")
	}
	if _, ok := c.Get("long"); !ok {
		t.Fatal("default-TTL entry expired early")
	}
}

func TestCacheDeleteAndClear(t *testing.T) {
	c, _ := newTestCache(5 * time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("deleted entry still present")
	}

	c.Clear()
	if _, ok := c.Get("b"); ok {
		t.Fatal("entry survived Clear")
	}
	if c.GetStats().TotalKeys != 0 {
		t.Fatalf("TotalKeys = %d after Clear", c.GetStats().TotalKeys)
	}
}

func TestCacheStatsAndHitRate(t *testing.T) {
	c, _ := newTestCache(5 * time.Minute)

	c.Set("key", "v")
	c.Get("key")
	c.Get("key")
	c.Get("missing")

	stats := c.GetStats()
	if stats.Hits != 2 {
		t.Fatalf("Hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Fatalf("Misses = %d, want 1", stats.Misses)
	}

	rate := c.HitRate()
	if rate < 66.0 || rate > 67.0 {
		t.Fatalf("HitRate = %.2f, want ~66.67", rate)
	}
}

func TestCacheCleanup(t *testing.T) {
	c, clk := newTestCache(time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	clk.Advance(2 * time.Minute)
	c.SetWithTTL("c", 3, 10*time.Minute)

	c.cleanup()

	stats := c.GetStats()
	if stats.TotalKeys != 1 {
		t.Fatalf("TotalKeys = %d after cleanup, want 1", stats.TotalKeys)
	}
	if stats.Evictions != 2 {
		t.Fatalf("Evictions = %d, want 2", stats.Evictions)
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("live entry removed by cleanup")
	}
}

func TestGenerateKey(t *testing.T) {
	type params struct {
		SessionID string
		Limit     int
	}

	k1 := GenerateKey("summary", params{"session-1", 10})
	k2 := GenerateKey("summary", params{"session-1", 10})
	k3 := GenerateKey("summary", params{"session-2", 10})
	k4 := GenerateKey("stats", params{"session-1", 10})

	if k1 != k2 {
		t.Fatal("identical params produced different keys")
	}
	if k1 == k3 {
		t.Fatal("different params produced the same key")
	}
	if k1 == k4 {
		t.Fatal("different methods produced the same key")
	}
	if !strings.HasPrefix(k1, "summary:") {
		t.Fatalf("key %q missing method prefix", k1)
	}
}
