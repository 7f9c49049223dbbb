package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Cache backends accepted by cache.backend.
const (
	CacheBackendInMemory  = "in_memory"
	CacheBackendFile      = "file"
	CacheBackendSQLite    = "sqlite"
	CacheBackendMemcached = "memcached"
)

// Config holds service configuration loaded from YAML, the secrets file and env.
type Config struct {
	ServerPort string

	// Neither key is required: without GeminiAPIKey the rule parser answers
	// alone, without WeatherAPIKey live conditions are skipped.
	GeminiAPIKey  string
	GeminiModel   string
	GeminiTimeout time.Duration

	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherAPITimeout time.Duration

	WikipediaURL       string
	WikipediaUserAgent string
	WikipediaTimeout   time.Duration

	RequestTimeout      time.Duration
	QueryMaxLength      int
	NameMinLength       int
	NameMaxLength       int
	RecommendationLimit int
	CORSOrigins         []string

	CacheBackend          string
	CacheTTL              time.Duration
	StaleCacheTTL         time.Duration
	CacheRetention        time.Duration
	CacheFilePath         string
	SQLitePath            string
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	ClimateFetchTimeout   time.Duration

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	RateLimitRPS   int
	RateLimitBurst int

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	OverloadWindow       time.Duration
	OverloadThresholdPct int
	DegradedWindow       time.Duration
	DegradedPct          int

	TrackedCities   []string
	WarmCache       bool
	WarmInterval    time.Duration
	WarmConcurrency int
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Gemini struct {
		Model   string `yaml:"model"`
		Timeout string `yaml:"timeout"`
	} `yaml:"gemini"`

	WeatherAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather_api"`

	Wikipedia struct {
		URL       string `yaml:"url"`
		UserAgent string `yaml:"user_agent"`
		Timeout   string `yaml:"timeout"`
	} `yaml:"wikipedia"`

	Request struct {
		Timeout        string   `yaml:"timeout"`
		QueryMaxLength int      `yaml:"query_max_length"`
		NameMinLength  int      `yaml:"name_min_length"`
		NameMaxLength  int      `yaml:"name_max_length"`
		Limit          int      `yaml:"recommendation_limit"`
		CORSOrigins    []string `yaml:"cors_origins"`
	} `yaml:"request"`

	Cache struct {
		Backend      string `yaml:"backend"`
		TTL          string `yaml:"ttl"`
		StaleTTL     string `yaml:"stale_ttl"`
		Retention    string `yaml:"retention"`
		FetchTimeout string `yaml:"fetch_timeout"`
		File         struct {
			Path string `yaml:"path"`
		} `yaml:"file"`
		SQLite struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Warming struct {
			Enabled     bool   `yaml:"enabled"`
			Interval    string `yaml:"interval"`
			Concurrency int    `yaml:"concurrency"`
		} `yaml:"warming"`
	} `yaml:"cache"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
		CircuitBreaker   struct {
			Enabled          *bool  `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
		DegradedWindow       string `yaml:"degraded_window"`
		DegradedPct          int    `yaml:"degraded_pct"`
	} `yaml:"lifecycle"`

	Metrics struct {
		TrackedCities []string `yaml:"tracked_cities"`
	} `yaml:"metrics"`
}

type secretsFile struct {
	GeminiAPIKey  string `yaml:"gemini_api_key"`
	WeatherAPIKey string `yaml:"weather_api_key"`
}

// envOverrides are applied after the YAML file. Pointer fields stay nil when
// the variable is unset so an explicit zero can still override.
type envOverrides struct {
	ServerPort     string         `env:"SERVER_PORT"`
	GeminiAPIKey   string         `env:"GEMINI_API_KEY"`
	GoogleAPIKey   string         `env:"GOOGLE_API_KEY"`
	GeminiModel    string         `env:"GEMINI_MODEL"`
	WeatherAPIKey  string         `env:"WEATHER_API_KEY"`
	WikipediaURL   string         `env:"WIKIPEDIA_URL"`
	CacheBackend   string         `env:"CACHE_BACKEND"`
	CacheFilePath  string         `env:"CACHE_FILE_PATH"`
	SQLitePath     string         `env:"SQLITE_PATH"`
	MemcachedAddrs string         `env:"MEMCACHED_ADDRS"`
	RequestTimeout *time.Duration `env:"REQUEST_TIMEOUT"`
	RateLimitRPS   *int           `env:"RATE_LIMIT_RPS"`
	RateLimitBurst *int           `env:"RATE_LIMIT_BURST"`
	WarmCache      *bool          `env:"WARM_CACHE"`
	TrackedCities  []string       `env:"TRACKED_CITIES" envSeparator:","`
	CORSOrigins    []string       `env:"CORS_ORIGINS" envSeparator:","`
}

// Load reads config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml
// relative to the working directory, then applies environment overrides.
// Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadDir(filepath.Join(cwd, "config"))
}

// LoadDir is Load with an explicit config directory.
func LoadDir(dir string) (*Config, error) {
	envName := os.Getenv("ENV_NAME")
	if envName == "" {
		envName = "dev"
	}

	configPath := filepath.Join(dir, envName+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	sec, err := loadSecrets(filepath.Join(dir, "secrets.yaml"))
	if err != nil {
		return nil, err
	}

	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := fromFile(fc)
	cfg.GeminiAPIKey = firstNonEmpty(ov.GeminiAPIKey, ov.GoogleAPIKey, sec.GeminiAPIKey)
	cfg.WeatherAPIKey = firstNonEmpty(ov.WeatherAPIKey, sec.WeatherAPIKey)
	applyOverrides(cfg, ov)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	return sec, nil
}

func fromFile(fc fileConfig) *Config {
	cfg := &Config{}

	cfg.ServerPort = firstNonEmpty(fc.Server.Port, "8080")

	cfg.GeminiModel = strings.TrimSpace(fc.Gemini.Model)
	cfg.GeminiTimeout = parseDuration(fc.Gemini.Timeout, 10*time.Second)

	cfg.WeatherAPIURL = firstNonEmpty(fc.WeatherAPI.URL, "https://api.openweathermap.org/data/2.5/weather")
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 2*time.Second)

	cfg.WikipediaURL = strings.TrimSpace(fc.Wikipedia.URL)
	cfg.WikipediaUserAgent = firstNonEmpty(fc.Wikipedia.UserAgent, "travel-wardrobe-service/1.0")
	cfg.WikipediaTimeout = parseDurationOrZero(fc.Wikipedia.Timeout, 5*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 20*time.Second)
	cfg.QueryMaxLength = positiveOr(fc.Request.QueryMaxLength, 500)
	cfg.NameMinLength = positiveOr(fc.Request.NameMinLength, 1)
	cfg.NameMaxLength = positiveOr(fc.Request.NameMaxLength, 100)
	cfg.RecommendationLimit = positiveOr(fc.Request.Limit, 6)
	cfg.CORSOrigins = fc.Request.CORSOrigins

	cfg.CacheBackend = strings.ToLower(firstNonEmpty(fc.Cache.Backend, CacheBackendInMemory))
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 24*time.Hour)
	cfg.StaleCacheTTL = parseDurationOrZero(fc.Cache.StaleTTL, 7*24*time.Hour)
	cfg.CacheRetention = parseDuration(fc.Cache.Retention, 7*24*time.Hour)
	cfg.ClimateFetchTimeout = parseDuration(fc.Cache.FetchTimeout, 15*time.Second)
	cfg.CacheFilePath = firstNonEmpty(fc.Cache.File.Path, "data/climate-cache.json")
	cfg.SQLitePath = firstNonEmpty(fc.Cache.SQLite.Path, "data/climate-cache.db")
	cfg.MemcachedAddrs = firstNonEmpty(fc.Cache.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = positiveOr(fc.Cache.Memcached.MaxIdleConns, 2)
	cfg.WarmCache = fc.Cache.Warming.Enabled
	cfg.WarmInterval = parseDurationOrZero(fc.Cache.Warming.Interval, 0)
	cfg.WarmConcurrency = positiveOr(fc.Cache.Warming.Concurrency, 4)

	cfg.RetryAttempts = positiveOr(fc.Reliability.RetryMaxAttempts, 3)
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 200*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = positiveOr(fc.Reliability.RateLimitRPS, 20)
	cfg.RateLimitBurst = positiveOr(fc.Reliability.RateLimitBurst, 40)

	cb := fc.Reliability.CircuitBreaker
	cfg.CircuitBreakerEnabled = cb.Enabled == nil || *cb.Enabled
	cfg.CircuitBreakerFailureThreshold = positiveOr(cb.FailureThreshold, 5)
	cfg.CircuitBreakerSuccessThreshold = positiveOr(cb.SuccessThreshold, 2)
	cfg.CircuitBreakerTimeout = parseDuration(cb.Timeout, 30*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = positiveOr(fc.Lifecycle.OverloadThresholdPct, 80)
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 5*time.Minute)
	cfg.DegradedPct = positiveOr(fc.Lifecycle.DegradedPct, 50)

	cfg.TrackedCities = fc.Metrics.TrackedCities
	return cfg
}

func applyOverrides(cfg *Config, ov envOverrides) {
	if ov.ServerPort != "" {
		cfg.ServerPort = ov.ServerPort
	}
	if ov.GeminiModel != "" {
		cfg.GeminiModel = ov.GeminiModel
	}
	if ov.WikipediaURL != "" {
		cfg.WikipediaURL = ov.WikipediaURL
	}
	if ov.CacheBackend != "" {
		cfg.CacheBackend = strings.ToLower(strings.TrimSpace(ov.CacheBackend))
	}
	if ov.CacheFilePath != "" {
		cfg.CacheFilePath = ov.CacheFilePath
	}
	if ov.SQLitePath != "" {
		cfg.SQLitePath = ov.SQLitePath
	}
	if ov.MemcachedAddrs != "" {
		cfg.MemcachedAddrs = ov.MemcachedAddrs
	}
	if ov.RequestTimeout != nil {
		cfg.RequestTimeout = *ov.RequestTimeout
	}
	if ov.RateLimitRPS != nil {
		cfg.RateLimitRPS = *ov.RateLimitRPS
	}
	if ov.RateLimitBurst != nil {
		cfg.RateLimitBurst = *ov.RateLimitBurst
	}
	if ov.WarmCache != nil {
		cfg.WarmCache = *ov.WarmCache
	}
	if len(ov.TrackedCities) > 0 {
		cfg.TrackedCities = trimAll(ov.TrackedCities)
	}
	if len(ov.CORSOrigins) > 0 {
		cfg.CORSOrigins = trimAll(ov.CORSOrigins)
	}
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero and negative durations are returned as-is so "0s" can disable a feature.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

func positiveOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// validate performs post-load checks. RequestTimeout is raised above the
// upstream timeouts so a single scrape cannot outlive its request.
func validate(cfg *Config) error {
	if cfg.WikipediaTimeout <= 0 {
		return fmt.Errorf("wikipedia.timeout must be positive")
	}
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.WikipediaTimeout {
		cfg.RequestTimeout = cfg.WikipediaTimeout + time.Second
	}
	switch cfg.CacheBackend {
	case CacheBackendInMemory, CacheBackendFile, CacheBackendSQLite, CacheBackendMemcached:
	default:
		return fmt.Errorf("cache.backend must be in_memory, file, sqlite or memcached, got %q", cfg.CacheBackend)
	}
	if cfg.StaleCacheTTL < 0 {
		return fmt.Errorf("cache.stale_ttl must not be negative")
	}
	if cfg.RateLimitRPS < 0 || cfg.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit values must not be negative")
	}
	if cfg.OverloadThresholdPct > 100 || cfg.DegradedPct > 100 {
		return fmt.Errorf("lifecycle percentages must be at most 100")
	}
	if cfg.NameMinLength > cfg.NameMaxLength {
		return fmt.Errorf("request.name_min_length %d exceeds name_max_length %d", cfg.NameMinLength, cfg.NameMaxLength)
	}
	return nil
}
