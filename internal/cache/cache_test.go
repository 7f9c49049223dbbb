package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
)

var baseTime = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func testRecord(city string) models.ClimateRecord {
	return models.ClimateRecord{
		City:   city,
		Source: models.ClimateSourceWikipedia,
		Months: []models.MonthlyClimate{
			{Month: time.January, HighC: 26, LowC: 12.6, PrecipitationMM: 6.6},
			{Month: time.July, HighC: 33.3, LowC: 27.9, PrecipitationMM: 60.1},
		},
		FetchedAt: baseTime,
	}
}

// backend builds a Cache whose clock is read from *now.
type backend struct {
	name string
	open func(t *testing.T, now *time.Time) Cache
}

func backends() []backend {
	return []backend{
		{"in_memory", func(t *testing.T, now *time.Time) Cache {
			c := NewInMemoryCache(48 * time.Hour)
			c.now = func() time.Time { return *now }
			return c
		}},
		{"file", func(t *testing.T, now *time.Time) Cache {
			c, err := NewFileCache(filepath.Join(t.TempDir(), "climate.json"), 48*time.Hour)
			if err != nil {
				t.Fatalf("NewFileCache() error = %v", err)
			}
			c.now = func() time.Time { return *now }
			return c
		}},
		{"sqlite", func(t *testing.T, now *time.Time) Cache {
			c, err := NewSQLiteCache(filepath.Join(t.TempDir(), "climate.db"), 48*time.Hour)
			if err != nil {
				t.Fatalf("NewSQLiteCache() error = %v", err)
			}
			t.Cleanup(func() { _ = c.Close() })
			c.now = func() time.Time { return *now }
			return c
		}},
	}
}

// TestBackends_GetSet verifies every backend returns a fresh record unchanged.
func TestBackends_GetSet(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			now := baseTime
			c := b.open(t, &now)
			ctx := context.Background()

			want := testRecord("Karachi")
			if err := c.Set(ctx, "karachi", want, 24*time.Hour); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			got, ok, err := c.Get(ctx, "karachi")
			if err != nil || !ok {
				t.Fatalf("Get() = _, %v, %v, want hit", ok, err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Get() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestBackends_Miss verifies unknown keys miss without error.
func TestBackends_Miss(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			now := baseTime
			c := b.open(t, &now)
			ctx := context.Background()

			if _, ok, err := c.Get(ctx, "atlantis"); ok || err != nil {
				t.Errorf("Get() = _, %v, %v, want miss", ok, err)
			}
			if _, ok, err := c.GetStale(ctx, "atlantis", time.Hour); ok || err != nil {
				t.Errorf("GetStale() = _, %v, %v, want miss", ok, err)
			}
		})
	}
}

// TestBackends_ExpiryAndStale verifies expired records miss on Get but are
// served by GetStale, marked stale, until maxStaleAge passes.
func TestBackends_ExpiryAndStale(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			now := baseTime
			c := b.open(t, &now)
			ctx := context.Background()

			if err := c.Set(ctx, "karachi", testRecord("Karachi"), 24*time.Hour); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			fresh, ok, _ := c.GetStale(ctx, "karachi", 36*time.Hour)
			if !ok || fresh.Stale {
				t.Errorf("GetStale() while fresh = stale %v, ok %v, want not stale", fresh.Stale, ok)
			}

			now = baseTime.Add(25 * time.Hour)
			if _, ok, _ := c.Get(ctx, "karachi"); ok {
				t.Error("Get() after TTL ok = true, want false")
			}
			stale, ok, err := c.GetStale(ctx, "karachi", 36*time.Hour)
			if err != nil || !ok {
				t.Fatalf("GetStale() = _, %v, %v, want hit", ok, err)
			}
			if !stale.Stale || stale.City != "Karachi" {
				t.Errorf("GetStale() = %+v, want stale Karachi", stale)
			}

			now = baseTime.Add(37 * time.Hour)
			if _, ok, _ := c.GetStale(ctx, "karachi", 36*time.Hour); ok {
				t.Error("GetStale() beyond maxStaleAge ok = true, want false")
			}
		})
	}
}

// TestBackends_Overwrite verifies Set replaces an existing record.
func TestBackends_Overwrite(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			now := baseTime
			c := b.open(t, &now)
			ctx := context.Background()

			first := testRecord("Karachi")
			second := testRecord("Karachi")
			second.Months[0].HighC = 27
			second.FetchedAt = baseTime.Add(time.Hour)

			_ = c.Set(ctx, "karachi", first, time.Hour)
			if err := c.Set(ctx, "karachi", second, time.Hour); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			got, _, _ := c.Get(ctx, "karachi")
			if diff := cmp.Diff(second, got); diff != "" {
				t.Errorf("Get() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestBackends_CanceledContext verifies operations honor a done context.
func TestBackends_CanceledContext(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			now := baseTime
			c := b.open(t, &now)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			if err := c.Set(ctx, "karachi", testRecord("Karachi"), time.Hour); err == nil {
				t.Error("Set() with canceled context error = nil")
			}
			if _, _, err := c.Get(ctx, "karachi"); err == nil {
				t.Error("Get() with canceled context error = nil")
			}
		})
	}
}

// TestFileCache_Persists verifies a second FileCache reads what the first wrote
// and that entries past retention are dropped on the next write.
func TestFileCache_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "climate.json")
	ctx := context.Background()
	now := baseTime

	c1, err := NewFileCache(path, time.Hour)
	if err != nil {
		t.Fatalf("NewFileCache() error = %v", err)
	}
	c1.now = func() time.Time { return now }
	if err := c1.Set(ctx, "karachi", testRecord("Karachi"), 24*time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	c2, err := NewFileCache(path, time.Hour)
	if err != nil {
		t.Fatalf("NewFileCache() reopen error = %v", err)
	}
	c2.now = func() time.Time { return now }
	if _, ok, _ := c2.Get(ctx, "karachi"); !ok {
		t.Fatal("Get() after reopen ok = false, want true")
	}

	now = baseTime.Add(26 * time.Hour)
	if err := c2.Set(ctx, "tokyo", testRecord("Tokyo"), 24*time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, ok, _ := c2.GetStale(ctx, "karachi", 30*24*time.Hour); ok {
		t.Error("karachi kept past retention, want pruned")
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

// TestNewFileCache_Errors covers empty paths and corrupt files.
func TestNewFileCache_Errors(t *testing.T) {
	if _, err := NewFileCache("", 0); err == nil {
		t.Error("NewFileCache(\"\") error = nil")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileCache(path, 0); err == nil {
		t.Error("NewFileCache(corrupt) error = nil")
	}
}

// TestSQLiteCache_Ping verifies the health check hook.
func TestSQLiteCache_Ping(t *testing.T) {
	c, err := NewSQLiteCache(filepath.Join(t.TempDir(), "climate.db"), 0)
	if err != nil {
		t.Fatalf("NewSQLiteCache() error = %v", err)
	}
	defer c.Close()

	var p Pinger = c
	if err := p.Ping(); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

// TestMemcachedCache_Key verifies keys are prefixed and made memcached-safe.
func TestMemcachedCache_Key(t *testing.T) {
	c, _ := NewMemcachedCache("localhost:11211", 0, 0, 0)
	tests := map[string]string{
		"karachi":     "climate:karachi",
		"abu dhabi":   "climate:abu_dhabi",
		"new\tyork\n": "climate:new_york_",
	}
	for in, want := range tests {
		if got := c.key(in); got != want {
			t.Errorf("key(%q) = %q, want %q", in, got, want)
		}
	}
	long := c.key(string(make([]byte, 400)))
	if len(long) != 250 {
		t.Errorf("len(key(400 bytes)) = %d, want 250", len(long))
	}
}

// TestNormalizeKey verifies case and whitespace folding.
func TestNormalizeKey(t *testing.T) {
	tests := map[string]string{
		"  New   York ": "new york",
		"KARACHI":       "karachi",
		"":              "",
	}
	for in, want := range tests {
		if got := NormalizeKey(in); got != want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestInMemoryCache_Len verifies stale entries still count until retention ends.
func TestInMemoryCache_Len(t *testing.T) {
	c := NewInMemoryCache(time.Hour)
	ctx := context.Background()
	_ = c.Set(ctx, "a", testRecord("A"), time.Minute)
	_ = c.Set(ctx, "b", testRecord("B"), time.Minute)
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}
