// Package service orchestrates climate lookups and the recommendation pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/travel-wardrobe-service/internal/cache"
	"github.com/kjstillabower/travel-wardrobe-service/internal/climate"
	"github.com/kjstillabower/travel-wardrobe-service/internal/client"
	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
	"github.com/kjstillabower/travel-wardrobe-service/internal/observability"
)

// Climate lookup sources recorded in metrics.
const (
	sourceBuiltin     = "builtin"
	sourceCache       = "cache"
	sourceWikipedia   = "wikipedia"
	sourceStale       = "stale"
	sourceUnavailable = "unavailable"
)

var (
	// ErrNoCity is returned when GetClimate is called without a city.
	ErrNoCity = errors.New("no city given")
	// ErrClimateUnavailable is returned when no source has data for the city.
	ErrClimateUnavailable = errors.New("climate data unavailable")
)

// ClimateProvider returns the climate table for a city.
type ClimateProvider interface {
	GetClimate(ctx context.Context, city string) (models.ClimateRecord, error)
}

// ClimateConfig configures the cache-aside climate lookup.
type ClimateConfig struct {
	TTL          time.Duration // freshness of scraped records
	StaleTTL     time.Duration // max age for stale fallback (0 = disabled)
	FetchTimeout time.Duration // bound on one coalesced scrape
	Backend      string        // cache backend name for metrics
}

// ClimateService resolves climate records: built-in normals first, then the
// cache, then a coalesced Wikipedia scrape, then stale cache.
type ClimateService struct {
	normals  *climate.Normals
	cache    cache.Cache
	fetcher  client.ClimateFetcher
	cfg      ClimateConfig
	group    singleflight.Group
	stampede *stampedeTracker
	now      func() time.Time
}

// NewClimateService creates a ClimateService. c and fetcher may be nil, in
// which case only the built-in normals are consulted.
func NewClimateService(normals *climate.Normals, c cache.Cache, fetcher client.ClimateFetcher, cfg ClimateConfig) *ClimateService {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	if cfg.Backend == "" {
		cfg.Backend = "climate"
	}
	return &ClimateService{
		normals:  normals,
		cache:    c,
		fetcher:  fetcher,
		cfg:      cfg,
		stampede: newStampedeTracker(),
		now:      time.Now,
	}
}

// GetClimate returns the climate record for city.
func (s *ClimateService) GetClimate(ctx context.Context, city string) (models.ClimateRecord, error) {
	key := cache.NormalizeKey(city)
	if key == "" {
		return models.ClimateRecord{}, ErrNoCity
	}
	logger := observability.LoggerFromContext(ctx)
	start := time.Now()

	if s.normals != nil {
		if rec, ok := s.normals.Lookup(key); ok {
			observability.RecordClimateLookup(key, sourceBuiltin)
			return rec, nil
		}
	}

	if s.cache != nil {
		if rec, ok := s.cacheGet(ctx, key); ok {
			observability.RecordClimateLookup(key, sourceCache)
			logger.Debug("climate cache hit", zap.String("city", key))
			return rec, nil
		}
	}

	if s.fetcher == nil {
		observability.RecordClimateLookup(key, sourceUnavailable)
		return models.ClimateRecord{}, fmt.Errorf("climate for %s: %w", key, ErrClimateUnavailable)
	}

	concurrent, done := s.stampede.begin(key)
	defer done()
	if concurrent > 1 {
		observability.CacheStampedeDetectedTotal.WithLabelValues(observability.MetricCityLabel(key)).Inc()
		logger.Debug("coalescing climate scrape",
			zap.String("city", key),
			zap.Int("waiting", concurrent),
			zap.Int("peak", s.stampede.peakFor(key)))
	}

	logger.Debug("climate cache miss, scraping", zap.String("city", key))
	rec, err := s.fetch(ctx, key)
	if err != nil {
		if stale, ok := s.staleFallback(ctx, key); ok {
			observability.RecordClimateLookup(key, sourceStale)
			logger.Info("serving stale climate", zap.String("city", key), zap.Error(err))
			return stale, nil
		}
		observability.RecordClimateLookup(key, sourceUnavailable)
		return models.ClimateRecord{}, err
	}

	if s.cache != nil {
		s.cacheSet(ctx, key, rec)
	}
	observability.RecordClimateLookup(key, sourceWikipedia)
	logger.Debug("climate served", zap.String("city", key), zap.Duration("duration", time.Since(start)))
	return rec, nil
}

// fetch coalesces concurrent scrapes for the same city. The scrape runs on a
// context detached from the first caller so its cancellation does not fail
// the waiters; each caller still stops waiting when its own ctx ends.
func (s *ClimateService) fetch(ctx context.Context, key string) (models.ClimateRecord, error) {
	ch := s.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FetchTimeout)
		defer cancel()
		return s.fetcher.FetchClimate(fctx, key)
	})
	select {
	case <-ctx.Done():
		return models.ClimateRecord{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return models.ClimateRecord{}, res.Err
		}
		return res.Val.(models.ClimateRecord), nil
	}
}

func (s *ClimateService) cacheGet(ctx context.Context, key string) (models.ClimateRecord, bool) {
	start := time.Now()
	rec, ok, err := s.cache.Get(ctx, key)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "error").Observe(elapsed)
		observability.LoggerFromContext(ctx).Warn("climate cache get failed", zap.String("city", key), zap.Error(err))
		return models.ClimateRecord{}, false
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(elapsed)
	if ok {
		observability.CacheHitsTotal.WithLabelValues(s.cfg.Backend).Inc()
	}
	return rec, ok
}

func (s *ClimateService) cacheSet(ctx context.Context, key string, rec models.ClimateRecord) {
	start := time.Now()
	if err := s.cache.Set(ctx, key, rec, s.cfg.TTL); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "error").Observe(time.Since(start).Seconds())
		observability.LoggerFromContext(ctx).Warn("climate cache set failed", zap.String("city", key), zap.Error(err))
		return
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("set", "success").Observe(time.Since(start).Seconds())
}

func (s *ClimateService) staleFallback(ctx context.Context, key string) (models.ClimateRecord, bool) {
	if s.cache == nil || s.cfg.StaleTTL <= 0 {
		return models.ClimateRecord{}, false
	}
	// The caller's ctx may be the reason the fetch failed.
	rec, ok, err := s.cache.GetStale(context.WithoutCancel(ctx), key, s.cfg.StaleTTL)
	if err != nil || !ok {
		return models.ClimateRecord{}, false
	}
	age := s.now().Sub(rec.FetchedAt)
	observability.StaleCacheServesTotal.WithLabelValues(observability.MetricCityLabel(key)).Inc()
	observability.StaleCacheAgeSeconds.Observe(age.Seconds())
	rec.Stale = true
	return rec, true
}

// categorizeCacheError returns a stable label for cache error metrics.
func categorizeCacheError(err error) string {
	switch c := client.CategorizeError(err); c {
	case client.ErrorCategoryTimeout, client.ErrorCategoryNetwork, client.ErrorCategoryParsing:
		return string(c)
	default:
		return "unknown"
	}
}
