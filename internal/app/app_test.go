package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/kjstillabower/travel-wardrobe-service/internal/config"
	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
	"github.com/kjstillabower/travel-wardrobe-service/internal/traffic"
)

// testConfig returns a config that needs no network: no API keys and an
// unroutable Wikipedia URL.
func testConfig(backend string) *config.Config {
	return &config.Config{
		WikipediaURL:                   "http://127.0.0.1:1/w/api.php",
		WikipediaTimeout:               200 * time.Millisecond,
		WeatherAPITimeout:              time.Second,
		RequestTimeout:                 5 * time.Second,
		QueryMaxLength:                 500,
		NameMinLength:                  1,
		NameMaxLength:                  100,
		RecommendationLimit:            4,
		CacheBackend:                   backend,
		CacheTTL:                       time.Hour,
		StaleCacheTTL:                  24 * time.Hour,
		CacheRetention:                 48 * time.Hour,
		ClimateFetchTimeout:            time.Second,
		RetryAttempts:                  1,
		CircuitBreakerEnabled:          true,
		CircuitBreakerFailureThreshold: 3,
		CircuitBreakerSuccessThreshold: 1,
		CircuitBreakerTimeout:          time.Minute,
		OverloadWindow:                 time.Minute,
		OverloadThresholdPct:           80,
		DegradedWindow:                 time.Minute,
		DegradedPct:                    50,
	}
}

// TestNew_RulesOnlyPipeline verifies the app starts without API keys and
// answers a chat for a built-in city.
func TestNew_RulesOnlyPipeline(t *testing.T) {
	// Arrange
	traffic.Reset()
	defer traffic.Reset()
	a, err := New(context.Background(), testConfig(config.CacheBackendInMemory), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	// Act
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat",
		strings.NewReader(`{"query":"beach trip to Karachi in July"}`)))

	// Assert
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var rec models.Recommendation
	if err := json.NewDecoder(w.Body).Decode(&rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rec.Products) == 0 || len(rec.Products) > 4 {
		t.Errorf("products = %d, want 1..4", len(rec.Products))
	}
}

// TestNew_HealthReportsWiring verifies /health reflects the configured
// parser, weather and breaker.
func TestNew_HealthReportsWiring(t *testing.T) {
	traffic.Reset()
	defer traffic.Reset()
	a, err := New(context.Background(), testConfig(config.CacheBackendInMemory), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]string{
		"intentModel":    "rules",
		"liveWeather":    "disabled",
		"climateScraper": "closed",
		"cache":          "healthy",
	}
	for k, v := range want {
		if body.Checks[k] != v {
			t.Errorf("checks[%q] = %q, want %q", k, body.Checks[k], v)
		}
	}
}

// TestNew_CacheBackends verifies each on-disk backend opens and closes.
func TestNew_CacheBackends(t *testing.T) {
	tests := []struct {
		name    string
		backend string
	}{
		{"sqlite", config.CacheBackendSQLite},
		{"file", config.CacheBackendFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfg := testConfig(tt.backend)
			cfg.SQLitePath = filepath.Join(dir, "climate.db")
			cfg.CacheFilePath = filepath.Join(dir, "climate.json")

			a, err := New(context.Background(), cfg, nil)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if err := a.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
		})
	}
}

// TestNew_CachePathUnwritable verifies a bad sqlite path fails startup.
func TestNew_CachePathUnwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig(config.CacheBackendSQLite)
	cfg.SQLitePath = filepath.Join(blocker, "climate.db")

	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Error("New() error = nil, want sqlite open failure")
	}
}

// TestStartWarming_Disabled verifies warming is skipped unless enabled.
func TestStartWarming_Disabled(t *testing.T) {
	cfg := testConfig(config.CacheBackendInMemory)
	cfg.TrackedCities = []string{"Karachi"}
	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.StartWarming(ctx)
}

// TestStartWarming_BuiltinCities verifies a warm pass over built-in cities
// completes without touching the network.
func TestStartWarming_BuiltinCities(t *testing.T) {
	cfg := testConfig(config.CacheBackendInMemory)
	cfg.WarmCache = true
	cfg.TrackedCities = []string{"Karachi", "Tokyo"}
	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	done := make(chan struct{})
	go func() {
		a.StartWarming(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("StartWarming did not return")
	}
}
