package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/snapstudio-api/internal/capacity"
	"github.com/noah-isme/snapstudio-api/internal/discount"
)

// Capacity store backends.
const (
	CapacityStoreMemory = "memory"
	CapacityStoreRedis  = "redis"
	CapacityStorePebble = "pebble"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	CurrencyCode       string
	OrderMaxQuantity   int

	DiscountServiceURL     string
	DiscountFallbackPolicy discount.FallbackPolicy
	DiscountTimeout        time.Duration
	CircuitDiscount        CircuitConfig
	Retry                  RetryConfig

	CapacityStore          string
	CapacityPebbleDir      string
	CapacityRegular        int
	CapacityRush24h        int
	CapacityRush12h        int
	CapacityNonWorkingDays []time.Weekday
	DeliveryBaseDays       int
	DeliveryTimezone       *time.Location
	ReservationTiming      capacity.Timing
	OverbookPolicy         capacity.OverbookPolicy
	LockTTL                time.Duration
	LockRetryBackoff       time.Duration

	KafkaBrokers string
	KafkaTopic   string

	IdempotencyTTL          time.Duration
	QuoteTTL                time.Duration
	RateLimitDiscountMax    int
	RateLimitDiscountWindow time.Duration

	HTTPBodyLimitBytes int64
	Security           SecurityConfig

	Obs ObsConfig
}

// SecurityConfig toggles the response security headers.
type SecurityConfig struct {
	Headers               bool
	HSTS                  bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
}

// CircuitConfig tunes the breaker in front of a remote dependency.
type CircuitConfig struct {
	MinRequests int
	FailureRate float64
	OpenFor     time.Duration
}

// RetryConfig tunes retrying HTTP clients.
type RetryConfig struct {
	MaxAttempts   int
	Base          time.Duration
	JitterPercent int
}

// ObsConfig controls logging, metrics and tracing.
type ObsConfig struct {
	LogFormat            string
	LogLevel             string
	MetricsNamespace     string
	EnablePrometheus     bool
	EnableTracing        bool
	TracingExporter      string
	OTLPEndpoint         string
	TracingSamplingRatio float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CurrencyCode:       strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "USD")),
		OrderMaxQuantity:   parseInt(k.String("ORDER_MAX_QUANTITY"), 5000),

		DiscountServiceURL: strings.TrimRight(strings.TrimSpace(k.String("DISCOUNT_SERVICE_URL")), "/"),
		DiscountTimeout:    parseDuration(k.String("DISCOUNT_TIMEOUT"), "2s"),
		CircuitDiscount: CircuitConfig{
			MinRequests: parseInt(k.String("CIRCUIT_DISCOUNT_MIN_REQ"), 10),
			FailureRate: parseFloat(k.String("CIRCUIT_DISCOUNT_FAILURE_RATE"), 0.5),
			OpenFor:     parseDuration(k.String("CIRCUIT_DISCOUNT_OPEN_FOR"), "30s"),
		},
		Retry: RetryConfig{
			MaxAttempts:   parseInt(k.String("RETRY_MAX_ATTEMPTS"), 3),
			Base:          parseDuration(k.String("RETRY_BASE"), "100ms"),
			JitterPercent: parseInt(k.String("RETRY_JITTER_PERCENT"), 20),
		},

		CapacityStore:     strings.ToLower(valueOrDefault(k.String("CAPACITY_STORE"), CapacityStoreMemory)),
		CapacityPebbleDir: strings.TrimSpace(k.String("CAPACITY_PEBBLE_DIR")),
		CapacityRegular:   parseInt(k.String("CAPACITY_REGULAR"), 15),
		CapacityRush24h:   parseInt(k.String("CAPACITY_RUSH24H"), 5),
		CapacityRush12h:   parseInt(k.String("CAPACITY_RUSH12H"), 2),
		DeliveryBaseDays:  parseInt(k.String("DELIVERY_BASE_DAYS"), 2),
		LockTTL:           parseDuration(k.String("LOCK_TTL"), "5s"),
		LockRetryBackoff:  parseDuration(k.String("LOCK_RETRY_BACKOFF"), "25ms"),

		KafkaBrokers: strings.TrimSpace(k.String("KAFKA_BROKERS")),
		KafkaTopic:   valueOrDefault(k.String("KAFKA_TOPIC"), "snapstudio.orders"),

		IdempotencyTTL:          parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		QuoteTTL:                parseDuration(k.String("QUOTE_TTL"), "24h"),
		RateLimitDiscountMax:    parseInt(k.String("RATE_LIMIT_DISCOUNT_MAX"), 10),
		RateLimitDiscountWindow: parseDuration(k.String("RATE_LIMIT_DISCOUNT_WINDOW"), "1m"),

		HTTPBodyLimitBytes: int64(parseInt(k.String("HTTP_BODY_LIMIT_BYTES"), 64<<10)),
		Security: SecurityConfig{
			Headers:               parseBool(k.String("SECURITY_HEADERS"), true),
			HSTS:                  parseBool(k.String("SECURITY_HSTS"), false),
			HSTSMaxAge:            parseInt(k.String("SECURITY_HSTS_MAX_AGE"), 31536000),
			HSTSIncludeSubdomains: parseBool(k.String("SECURITY_HSTS_INCLUDE_SUBDOMAINS"), false),
		},

		Obs: ObsConfig{
			LogFormat:            valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:             valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsNamespace:     valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "snapstudio"),
			EnablePrometheus:     parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			EnableTracing:        parseBool(k.String("OBS_ENABLE_TRACING"), false),
			TracingExporter:      valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:         strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			TracingSamplingRatio: parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
		},
	}

	var err error
	if cfg.DiscountFallbackPolicy, err = discount.ParseFallbackPolicy(k.String("DISCOUNT_FALLBACK_POLICY")); err != nil {
		return nil, err
	}
	if cfg.ReservationTiming, err = capacity.ParseTiming(k.String("RESERVATION_TIMING")); err != nil {
		return nil, err
	}
	if cfg.OverbookPolicy, err = capacity.ParseOverbookPolicy(k.String("OVERBOOK_POLICY")); err != nil {
		return nil, err
	}
	days := valueOrDefault(k.String("CAPACITY_NON_WORKING_DAYS"), "sat,sun")
	if cfg.CapacityNonWorkingDays, err = capacity.ParseWeekdays(days); err != nil {
		return nil, err
	}
	if cfg.DeliveryTimezone, err = time.LoadLocation(valueOrDefault(k.String("DELIVERY_TIMEZONE"), "UTC")); err != nil {
		return nil, fmt.Errorf("DELIVERY_TIMEZONE: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.IsProduction() && c.DiscountFallbackPolicy == discount.FallbackLocal {
		return errors.New("DISCOUNT_FALLBACK_POLICY=local is not allowed in production")
	}
	switch c.CapacityStore {
	case CapacityStoreMemory:
	case CapacityStoreRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when CAPACITY_STORE=redis")
		}
	case CapacityStorePebble:
		if c.CapacityPebbleDir == "" {
			return errors.New("CAPACITY_PEBBLE_DIR is required when CAPACITY_STORE=pebble")
		}
	default:
		return fmt.Errorf("unknown CAPACITY_STORE %q", c.CapacityStore)
	}
	if c.OrderMaxQuantity <= 0 {
		return errors.New("ORDER_MAX_QUANTITY must be positive")
	}
	return c.Capacity().Validate()
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	switch strings.ToLower(strings.TrimSpace(c.AppEnv)) {
	case "production", "prod":
		return true
	default:
		return false
	}
}

// Capacity returns the estimator settings, starting from the reference
// defaults.
func (c *Config) Capacity() capacity.Config {
	cc := capacity.DefaultConfig()
	cc.Capacity = map[capacity.Class]int{
		capacity.ClassRegular: c.CapacityRegular,
		capacity.ClassRush24h: c.CapacityRush24h,
		capacity.ClassRush12h: c.CapacityRush12h,
	}
	cc.NonWorkingDays = c.CapacityNonWorkingDays
	cc.BaseDeliveryDays = c.DeliveryBaseDays
	if c.DeliveryTimezone != nil {
		cc.Location = c.DeliveryTimezone
	}
	return cc
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
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
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

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
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
