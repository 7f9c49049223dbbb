//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kjstillabower/travel-wardrobe-service/internal/cache"
	"github.com/kjstillabower/travel-wardrobe-service/internal/catalog"
	"github.com/kjstillabower/travel-wardrobe-service/internal/client"
	"github.com/kjstillabower/travel-wardrobe-service/internal/climate"
	"github.com/kjstillabower/travel-wardrobe-service/internal/culture"
	"github.com/kjstillabower/travel-wardrobe-service/internal/intent"
	"github.com/kjstillabower/travel-wardrobe-service/internal/service"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	WikipediaURL  string
	CacheBackend  string // "in_memory", "sqlite" or "memcached"
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test when INTEGRATION_OFFLINE is set, since the live scrape needs network.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	if os.Getenv("INTEGRATION_OFFLINE") != "" {
		t.Skip("INTEGRATION_OFFLINE set, skipping live integration test")
	}
	wikiURL := os.Getenv("WIKIPEDIA_URL")
	if wikiURL == "" {
		wikiURL = client.DefaultWikipediaURL
	}
	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}
	return IntegrationTestConfig{
		WikipediaURL:  wikiURL,
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr: memcachedAddr,
	}
}

// SetupIntegrationCache builds the configured cache backend, falling back to
// in-memory when memcached is unreachable. The returned cleanup closes it.
func SetupIntegrationCache(t *testing.T, cfg IntegrationTestConfig) (cache.Cache, func()) {
	t.Helper()
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2, cache.DefaultRetention)
		if err == nil {
			t.Logf("Using Memcached cache at %s", cfg.MemcachedAddr)
			return mc, func() { _ = mc.Close() }
		}
		t.Logf("Memcached not available (%v), using in-memory cache", err)
	case "sqlite":
		sc, err := cache.NewSQLiteCache(filepath.Join(t.TempDir(), "climate.db"), cache.DefaultRetention)
		if err != nil {
			t.Fatalf("NewSQLiteCache() error = %v", err)
		}
		return sc, func() { _ = sc.Close() }
	}
	return cache.NewInMemoryCache(cache.DefaultRetention), func() {}
}

// SetupIntegrationService creates a climate service backed by live Wikipedia.
// Returns the service, its cache and a cleanup function.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) (*service.ClimateService, cache.Cache, func()) {
	t.Helper()
	normals, err := climate.Load()
	if err != nil {
		t.Fatalf("climate.Load() error = %v", err)
	}
	c, cleanup := SetupIntegrationCache(t, cfg)
	fetcher := client.NewWikipediaClient(client.WikipediaConfig{
		BaseURL:   cfg.WikipediaURL,
		UserAgent: "travel-wardrobe-service-integration/1.0",
		Timeout:   10 * time.Second,
	})
	svc := service.NewClimateService(normals, c, fetcher, service.ClimateConfig{
		TTL:      time.Hour,
		StaleTTL: 24 * time.Hour,
	})
	return svc, c, cleanup
}

// SetupIntegrationRecommender wires the rule-based pipeline over climates.
func SetupIntegrationRecommender(t *testing.T, climates service.ClimateProvider) (*service.Recommender, *catalog.Catalog, *culture.Table) {
	t.Helper()
	cultures, err := culture.Load()
	if err != nil {
		t.Fatalf("culture.Load() error = %v", err)
	}
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("catalog.Load() error = %v", err)
	}
	parser := intent.NewFallbackParser(nil, intent.NewRuleParser(cultures.Places()))
	return service.NewRecommender(parser, cultures, cat, climates, service.RecommenderConfig{}), cat, cultures
}
