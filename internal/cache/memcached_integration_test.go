//go:build integration
// +build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func memcachedAddr() string {
	if a := os.Getenv("MEMCACHED_ADDRS"); a != "" {
		return a
	}
	return "localhost:11211"
}

// TestMemcachedCache_GetSet_Integration verifies that MemcachedCache successfully
// stores and retrieves records when a memcached server is available.
func TestMemcachedCache_GetSet_Integration(t *testing.T) {
	c, err := NewMemcachedCache(memcachedAddr(), 500*time.Millisecond, 2, time.Hour)
	if err != nil {
		t.Fatalf("NewMemcachedCache() error = %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	want := testRecord("Karachi")
	if err := c.Set(ctx, "karachi", want, time.Minute); err != nil {
		t.Skipf("Set failed (memcached may not be running): %v", err)
	}

	got, ok, err := c.Get(ctx, "karachi")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}
}

// TestMemcachedCache_Stale_Integration verifies an expired record is served by GetStale.
func TestMemcachedCache_Stale_Integration(t *testing.T) {
	c, err := NewMemcachedCache(memcachedAddr(), 500*time.Millisecond, 2, time.Hour)
	if err != nil {
		t.Fatalf("NewMemcachedCache() error = %v", err)
	}
	defer c.Close()
	if err := c.Ping(); err != nil {
		t.Skipf("memcached not reachable: %v", err)
	}

	now := baseTime
	c.now = func() time.Time { return now }
	ctx := context.Background()
	if err := c.Set(ctx, "tokyo", testRecord("Tokyo"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	now = baseTime.Add(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, "tokyo"); ok {
		t.Error("Get() after TTL ok = true, want false")
	}
	rec, ok, err := c.GetStale(ctx, "tokyo", time.Hour)
	if err != nil || !ok || !rec.Stale {
		t.Errorf("GetStale() = %+v, %v, %v, want stale hit", rec, ok, err)
	}
}

// TestMemcachedCache_Ping_Integration verifies Ping when memcached is available.
func TestMemcachedCache_Ping_Integration(t *testing.T) {
	c, err := NewMemcachedCache(memcachedAddr(), 500*time.Millisecond, 2, 0)
	if err != nil {
		t.Fatalf("NewMemcachedCache() error = %v", err)
	}
	defer c.Close()
	if err := c.Ping(); err != nil {
		t.Skipf("memcached not reachable: %v", err)
	}
}
