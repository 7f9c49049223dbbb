// Package app builds the recommendation pipeline and HTTP router from a
// loaded configuration. Both the server and the travelctl CLI start here.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/travel-wardrobe-service/internal/cache"
	"github.com/kjstillabower/travel-wardrobe-service/internal/catalog"
	"github.com/kjstillabower/travel-wardrobe-service/internal/circuitbreaker"
	"github.com/kjstillabower/travel-wardrobe-service/internal/client"
	"github.com/kjstillabower/travel-wardrobe-service/internal/climate"
	"github.com/kjstillabower/travel-wardrobe-service/internal/config"
	"github.com/kjstillabower/travel-wardrobe-service/internal/culture"
	httphandler "github.com/kjstillabower/travel-wardrobe-service/internal/http"
	"github.com/kjstillabower/travel-wardrobe-service/internal/intent"
	"github.com/kjstillabower/travel-wardrobe-service/internal/observability"
	"github.com/kjstillabower/travel-wardrobe-service/internal/service"
)

const breakerComponent = "wikipedia"

// App holds the wired components. Close releases the cache backend.
type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	Catalog     *catalog.Catalog
	Cultures    *culture.Table
	Climates    *service.ClimateService
	Recommender *service.Recommender
	Router      http.Handler

	breaker *circuitbreaker.CircuitBreaker
	closers []func() error
}

// New loads the built-in tables, connects the configured cache and upstream
// clients, and builds the router. A missing Gemini key falls back to the
// rule parser; a missing weather key disables live conditions.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	var err error
	if a.Catalog, err = catalog.Load(); err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if a.Cultures, err = culture.Load(); err != nil {
		return nil, fmt.Errorf("load culture table: %w", err)
	}
	normals, err := climate.Load()
	if err != nil {
		return nil, fmt.Errorf("load climate normals: %w", err)
	}

	parser, intentModel, err := a.buildParser(ctx)
	if err != nil {
		return nil, err
	}

	weather, err := a.buildWeatherClient()
	if err != nil {
		return nil, err
	}

	store, ping, err := a.buildCache()
	if err != nil {
		return nil, err
	}

	retry := client.RetryPolicy{Attempts: cfg.RetryAttempts, BaseDelay: cfg.RetryBaseDelay, MaxDelay: cfg.RetryMaxDelay}
	wikiCfg := client.WikipediaConfig{
		BaseURL:   cfg.WikipediaURL,
		UserAgent: cfg.WikipediaUserAgent,
		Timeout:   cfg.WikipediaTimeout,
		Retry:     retry,
	}
	if cfg.CircuitBreakerEnabled {
		a.breaker = circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			Component:        breakerComponent,
			IsFailure:        client.IsBreakerFailure,
			OnStateChange: func(component string, from, to circuitbreaker.State) {
				observability.CircuitBreakerState.WithLabelValues(component).Set(float64(to))
				logger.Warn("circuit breaker transition",
					zap.String("component", component),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
		wikiCfg.Breaker = a.breaker
		observability.CircuitBreakerState.WithLabelValues(breakerComponent).Set(0)
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout),
		)
	}
	wiki := client.NewWikipediaClient(wikiCfg)

	a.Climates = service.NewClimateService(normals, store, wiki, service.ClimateConfig{
		TTL:          cfg.CacheTTL,
		StaleTTL:     cfg.StaleCacheTTL,
		FetchTimeout: cfg.ClimateFetchTimeout,
		Backend:      cfg.CacheBackend,
	})

	recCfg := service.RecommenderConfig{Limit: cfg.RecommendationLimit}
	if weather != nil {
		recCfg.Weather = weather
	}
	a.Recommender = service.NewRecommender(parser, a.Cultures, a.Catalog, a.Climates, recCfg)

	health := &httphandler.HealthConfig{
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		RateLimitRPS:         cfg.RateLimitRPS,
		RateLimitBurst:       cfg.RateLimitBurst,
		DegradedWindow:       cfg.DegradedWindow,
		DegradedPct:          cfg.DegradedPct,
		CacheBackend:         cfg.CacheBackend,
		CachePing:            ping,
		IntentModel:          intentModel,
		LiveWeather:          weather != nil,
	}
	if a.breaker != nil {
		health.ClimateBreaker = func() string { return a.breaker.State().String() }
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	h := httphandler.NewHandler(httphandler.HandlerDeps{
		Recommender:    a.Recommender,
		Catalog:        a.Catalog,
		Cultures:       a.Cultures,
		Climates:       a.Climates,
		Health:         health,
		Logger:         logger,
		QueryMaxLength: cfg.QueryMaxLength,
		NameMinLength:  cfg.NameMinLength,
		NameMaxLength:  cfg.NameMaxLength,
	})
	a.Router = httphandler.NewRouter(h, httphandler.RouterConfig{
		Logger:         logger,
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
		CORSOrigins:    cfg.CORSOrigins,
	})

	observability.RegisterRateLimitGauges(cfg.OverloadWindow)
	if len(cfg.TrackedCities) > 0 {
		observability.SetTrackedCities(cfg.TrackedCities)
	}
	return a, nil
}

func (a *App) buildParser(ctx context.Context) (intent.Parser, string, error) {
	rules := intent.NewRuleParser(a.Cultures.Places())
	llm, err := intent.NewGenAIParser(ctx, a.Config.GeminiAPIKey, a.Config.GeminiModel, a.Config.GeminiTimeout)
	switch {
	case errors.Is(err, intent.ErrNoCredentials):
		a.Logger.Info("intent parser: rules only (no Gemini key)")
		return intent.NewFallbackParser(nil, rules), "rules", nil
	case err != nil:
		return nil, "", fmt.Errorf("intent parser: %w", err)
	}
	a.Logger.Info("intent parser: genai with rule fallback", zap.String("model", a.Config.GeminiModel))
	return intent.NewFallbackParser(llm, rules), "genai", nil
}

func (a *App) buildWeatherClient() (client.WeatherClient, error) {
	if a.Config.WeatherAPIKey == "" {
		a.Logger.Info("live weather disabled (no WEATHER_API_KEY)")
		return nil, nil
	}
	wc, err := client.NewOpenWeatherClientWithRetry(
		a.Config.WeatherAPIKey,
		a.Config.WeatherAPIURL,
		a.Config.WeatherAPITimeout,
		client.RetryPolicy{Attempts: a.Config.RetryAttempts, BaseDelay: a.Config.RetryBaseDelay, MaxDelay: a.Config.RetryMaxDelay},
	)
	if err != nil {
		return nil, fmt.Errorf("weather client: %w", err)
	}
	return wc, nil
}

// buildCache returns the configured backend and, for networked or on-disk
// backends, a ping used by /health.
func (a *App) buildCache() (cache.Cache, func() error, error) {
	cfg := a.Config
	switch cfg.CacheBackend {
	case config.CacheBackendMemcached:
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns, cfg.CacheRetention)
		if err != nil {
			return nil, nil, fmt.Errorf("memcached cache: %w", err)
		}
		a.closers = append(a.closers, mc.Close)
		a.Logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
		return mc, mc.Ping, nil
	case config.CacheBackendSQLite:
		sc, err := cache.NewSQLiteCache(cfg.SQLitePath, cfg.CacheRetention)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite cache: %w", err)
		}
		a.closers = append(a.closers, sc.Close)
		a.Logger.Info("cache backend: sqlite", zap.String("path", cfg.SQLitePath))
		return sc, sc.Ping, nil
	case config.CacheBackendFile:
		fc, err := cache.NewFileCache(cfg.CacheFilePath, cfg.CacheRetention)
		if err != nil {
			return nil, nil, fmt.Errorf("file cache: %w", err)
		}
		a.Logger.Info("cache backend: file", zap.String("path", cfg.CacheFilePath))
		return fc, nil, nil
	default:
		a.Logger.Info("cache backend: in_memory")
		return cache.NewInMemoryCache(cfg.CacheRetention), nil, nil
	}
}

// StartWarming prefetches TrackedCities once and, when WarmInterval is set,
// keeps refreshing them until ctx ends. It is a no-op unless WarmCache is on.
func (a *App) StartWarming(ctx context.Context) {
	cfg := a.Config
	if !cfg.WarmCache || len(cfg.TrackedCities) == 0 {
		return
	}
	warmer := cache.NewCacheWarmer(a.Climates, a.Logger, cfg.WarmConcurrency)
	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := warmer.Warm(warmCtx, cfg.TrackedCities); err != nil {
		a.Logger.Warn("cache warming failed", zap.Error(err))
	}
	cancel()
	if cfg.WarmInterval <= 0 {
		return
	}
	go func() {
		if err := warmer.WarmPeriodic(ctx, cfg.TrackedCities, cfg.WarmInterval); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error("periodic cache warming stopped", zap.Error(err))
		}
	}()
}

// Close releases the cache backend.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
