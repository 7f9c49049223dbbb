package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
	"github.com/kjstillabower/travel-wardrobe-service/internal/observability"
)

// ClimateLoader is implemented by the service layer to resolve climate for a city.
// Used by CacheWarmer to avoid a circular dependency on the service package.
type ClimateLoader interface {
	GetClimate(ctx context.Context, city string) (models.ClimateRecord, error)
}

// CacheWarmer warms the cache by prefetching climate records for a list of cities.
type CacheWarmer struct {
	loader      ClimateLoader
	logger      *zap.Logger
	concurrency int
}

// NewCacheWarmer creates a CacheWarmer that uses the given loader and logger.
// concurrency bounds in-flight fetches; zero means 4.
func NewCacheWarmer(loader ClimateLoader, logger *zap.Logger, concurrency int) *CacheWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &CacheWarmer{loader: loader, logger: logger, concurrency: concurrency}
}

// Warm resolves every city concurrently so the loader populates the cache.
// A failing city does not stop the others; failures are joined in the returned error.
func (w *CacheWarmer) Warm(ctx context.Context, cities []string) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	w.logger.Info("warming cache", zap.Int("cities", len(cities)))

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, city := range cities {
		city := city
		g.Go(func() error {
			if _, err := w.loader.GetClimate(gctx, city); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("warm %s: %w", city, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	w.logger.Info("cache warming complete",
		zap.Int("cities", len(cities)),
		zap.Int("errors", len(errs)),
		zap.Float64("duration_seconds", duration))

	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("cache warming: %w", errors.Join(errs...))
	}
	return nil
}

// WarmPeriodic runs an initial Warm, then refreshes at the given interval until ctx is done.
func (w *CacheWarmer) WarmPeriodic(ctx context.Context, cities []string, interval time.Duration) error {
	if err := w.Warm(ctx, cities); err != nil {
		w.logger.Warn("initial cache warm failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx, cities); err != nil {
				w.logger.Warn("periodic cache warm failed", zap.Error(err))
			}
		}
	}
}
