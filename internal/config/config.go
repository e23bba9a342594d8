package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const (
	// StoreDriverPostgres persists to PostgreSQL.
	StoreDriverPostgres = "postgres"
	// StoreDriverMemory keeps state in process and seeds a demo catalog.
	StoreDriverMemory = "memory"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	StoreDriver        string
	DatabaseURL        string
	DBMaxConns         int32
	DBAutoMigrate      bool
	RedisURL           string
	CORSAllowedOrigins []string
	IdempotencyTTL     time.Duration
	RateLimitPerMinute int
	SaleStrictStock    bool

	ReportsCacheTTL         time.Duration
	ReportsDefaultRangeDays int
	ReportTimezone          string
	ReportLocation          *time.Location

	Obs ObsConfig
}

// ObsConfig groups logging, metrics and tracing settings.
type ObsConfig struct {
	LogFormat         string
	LogLevel          string
	MetricsNamespace  string
	HTTPBuckets       string
	OTelEnabled       bool
	OTelEndpoint      string
	OTelServiceName   string
	OTelSamplingRatio float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:                  valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                    valueOrDefault(k.String("APP_PORT"), valueOrDefault(k.String("PORT"), "8080")),
		StoreDriver:             strings.ToLower(valueOrDefault(k.String("STORE_DRIVER"), StoreDriverPostgres)),
		DatabaseURL:             strings.TrimSpace(k.String("DATABASE_URL")),
		DBMaxConns:              int32(parseInt(k.String("DB_MAX_CONNS"), 10)),
		DBAutoMigrate:           parseBool(k.String("DB_AUTO_MIGRATE")),
		RedisURL:                strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins:      splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		IdempotencyTTL:          parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		RateLimitPerMinute:      parseInt(k.String("RATE_LIMIT_WRITES_PER_MIN"), 120),
		SaleStrictStock:         parseBool(k.String("SALE_STRICT_STOCK")),
		ReportsCacheTTL:         parseDuration(k.String("REPORTS_CACHE_TTL"), "60s"),
		ReportsDefaultRangeDays: parseInt(k.String("REPORTS_DEFAULT_RANGE_DAYS"), 30),
		ReportTimezone:          valueOrDefault(k.String("REPORT_TIMEZONE"), "UTC"),
		Obs: ObsConfig{
			LogFormat:         valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:          valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsNamespace:  valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "pos"),
			HTTPBuckets:       strings.TrimSpace(k.String("OBS_HTTP_BUCKETS_MS")),
			OTelEnabled:       parseBool(k.String("OTEL_ENABLED")),
			OTelEndpoint:      strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
			OTelServiceName:   valueOrDefault(k.String("OTEL_SERVICE_NAME"), "pos-engine"),
			OTelSamplingRatio: parseFloat(k.String("OTEL_TRACES_SAMPLER_ARG"), 1),
		},
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required")
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("STORE_DRIVER %q is not supported", cfg.StoreDriver)
	}
	if cfg.DBMaxConns <= 0 {
		return nil, errors.New("DB_MAX_CONNS must be positive")
	}
	if cfg.ReportsDefaultRangeDays <= 0 {
		return nil, errors.New("REPORTS_DEFAULT_RANGE_DAYS must be positive")
	}
	if cfg.RateLimitPerMinute < 0 {
		return nil, errors.New("RATE_LIMIT_WRITES_PER_MIN must not be negative")
	}
	if cfg.Obs.OTelSamplingRatio < 0 || cfg.Obs.OTelSamplingRatio > 1 {
		return nil, errors.New("OTEL_TRACES_SAMPLER_ARG must be between 0 and 1")
	}
	loc, err := time.LoadLocation(cfg.ReportTimezone)
	if err != nil {
		return nil, fmt.Errorf("REPORT_TIMEZONE: %w", err)
	}
	cfg.ReportLocation = loc

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.AppEnv))
	return env == "production" || env == "prod"
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt(value string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return v
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
