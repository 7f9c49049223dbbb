package http

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/travel-wardrobe-service/internal/lifecycle"
	"github.com/kjstillabower/travel-wardrobe-service/internal/observability"
	"github.com/kjstillabower/travel-wardrobe-service/internal/traffic"
)

// HealthConfig holds the thresholds and probes used by GET /health.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int
	RateLimitBurst       int // 0 when rate limiter disabled
	// DegradedWindow and DegradedPct mark the service degraded when at least
	// DegradedPct percent of answered chats used a fallback or failed.
	DegradedWindow time.Duration
	DegradedPct    int
	// CacheBackend names the configured climate cache.
	CacheBackend string
	// CachePing, when set, checks cache reachability (memcached, sqlite).
	CachePing func() error
	// ClimateBreaker, when set, reports the Wikipedia circuit breaker state.
	ClimateBreaker func() string
	// IntentModel is "genai" when a model key is configured, else "rules".
	IntentModel string
	LiveWeather bool
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	resp := map[string]interface{}{
		"status":        result.status,
		"service":       observability.ServiceName,
		"version":       "dev",
		"checks":        h.healthChecks(),
		"uptimeSeconds": int64(lifecycle.Uptime().Seconds()),
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}
	if result.reason != "" {
		resp["reason"] = result.reason
	}
	writeJSON(w, result.statusCode, resp)
}

// healthChecks reports the state of each dependency. Optional upstreams that
// are not configured report "disabled"; they never fail the service.
func (h *Handler) healthChecks() map[string]string {
	checks := map[string]string{
		"catalog":     "healthy",
		"cultureData": "healthy",
		"intentModel": "rules",
		"liveWeather": "disabled",
	}
	if h.catalog == nil || h.catalog.Len() == 0 {
		checks["catalog"] = "unhealthy"
	}
	if h.cultures == nil {
		checks["cultureData"] = "unhealthy"
	}
	cfg := h.healthConfig
	if cfg == nil {
		return checks
	}
	if cfg.IntentModel != "" {
		checks["intentModel"] = cfg.IntentModel
	}
	if cfg.LiveWeather {
		checks["liveWeather"] = "enabled"
	}
	if cfg.ClimateBreaker != nil {
		checks["climateScraper"] = cfg.ClimateBreaker()
	}
	if cfg.CachePing != nil {
		if err := cfg.CachePing(); err == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
			h.logger.Warn("cache ping failed", zap.String("backend", cfg.CacheBackend), zap.Error(err))
		}
	} else if cfg.CacheBackend != "" {
		checks["cache"] = "healthy"
	}
	return checks
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > overloaded > degraded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	cfg := h.healthConfig
	if cfg == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if cfg.RateLimitRPS > 0 && cfg.OverloadWindow > 0 && cfg.OverloadThresholdPct > 0 {
		threshold := float64(cfg.RateLimitRPS) * cfg.OverloadWindow.Seconds() * float64(cfg.OverloadThresholdPct) / 100
		if float64(traffic.RequestCount(cfg.OverloadWindow)) > threshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	if cfg.DegradedWindow > 0 && cfg.DegradedPct > 0 {
		degraded, total := traffic.DegradedRate(cfg.DegradedWindow)
		if total > 0 && float64(degraded)*100/float64(total) >= float64(cfg.DegradedPct) {
			// Degraded answers are still answers, so the instance stays in rotation.
			return healthResult{"degraded", http.StatusOK, "fallback_rate_breach"}
		}
	}
	if h.catalog == nil || h.catalog.Len() == 0 {
		return healthResult{"degraded", http.StatusServiceUnavailable, "catalog_empty"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}
