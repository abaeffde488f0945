package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-b2b/internal/pricing"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	JWTClockSkew       time.Duration
	CORSAllowedOrigins []string

	PricingRates pricing.Rates

	DraftTTL        time.Duration
	IdempotencyTTL  time.Duration
	LockTTL         time.Duration
	LockRetry       time.Duration
	ListingPageSize int
	ListingMaxPage  int

	TierEditRateMax    int
	TierEditRateWindow time.Duration
	CalculatorRate     string
	BodyLimitBytes     int64

	CatalogSyncURL      string
	CatalogSyncSecret   string
	CatalogSyncTimeout  time.Duration
	SyncMaxRetry        int
	WorkerConcurrency   int
	RetryBase           time.Duration
	RetryMaxAttempts    int
	RetryJitterPercent  float64
	CircuitMinRequests  int
	CircuitFailureRatio float64
	CircuitOpenFor      time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	rates, err := loadRates(k)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          strings.TrimSpace(k.String("JWT_ISSUER")),
		JWTAudience:        strings.TrimSpace(k.String("JWT_AUDIENCE")),
		JWTClockSkew:       parseDuration(k.String("JWT_CLOCK_SKEW"), "30s"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		PricingRates: rates,

		DraftTTL:        parseDuration(k.String("LISTING_DRAFT_TTL"), "2h"),
		IdempotencyTTL:  parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		LockTTL:         parseDuration(k.String("LOCK_TTL"), "10s"),
		LockRetry:       parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),
		ListingPageSize: parseInt(k.String("LISTING_DEFAULT_LIMIT"), 20),
		ListingMaxPage:  parseInt(k.String("LISTING_MAX_LIMIT"), 100),

		TierEditRateMax:    parseInt(k.String("TIER_EDIT_RATE_MAX"), 120),
		TierEditRateWindow: parseDuration(k.String("TIER_EDIT_RATE_WINDOW"), "1m"),
		CalculatorRate:     valueOrDefault(k.String("CALCULATOR_RATE"), "300-M"),
		BodyLimitBytes:     int64(parseInt(k.String("HTTP_BODY_LIMIT_BYTES"), 1<<20)),

		CatalogSyncURL:      strings.TrimSpace(k.String("CATALOG_SYNC_URL")),
		CatalogSyncSecret:   k.String("CATALOG_SYNC_SECRET"),
		CatalogSyncTimeout:  parseDuration(k.String("CATALOG_SYNC_TIMEOUT"), "5s"),
		SyncMaxRetry:        parseInt(k.String("CATALOG_SYNC_MAX_RETRY"), 8),
		WorkerConcurrency:   parseInt(k.String("WORKER_CONCURRENCY"), 5),
		RetryBase:           parseDuration(k.String("RETRY_BASE"), "200ms"),
		RetryMaxAttempts:    parseInt(k.String("RETRY_MAX_ATTEMPTS"), 3),
		RetryJitterPercent:  parseFloat(k.String("RETRY_JITTER_PERCENT"), 0.2),
		CircuitMinRequests:  parseInt(k.String("CIRCUIT_MIN_REQUESTS"), 10),
		CircuitFailureRatio: parseFloat(k.String("CIRCUIT_FAILURE_RATIO"), 0.5),
		CircuitOpenFor:      parseDuration(k.String("CIRCUIT_OPEN_FOR"), "30s"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate reports every missing or inconsistent setting at once.
func (c *Config) validate() error {
	var errs []error
	for _, req := range []struct{ key, val string }{
		{"DATABASE_URL", c.DatabaseURL},
		{"REDIS_URL", c.RedisURL},
		{"JWT_SECRET", c.JWTSecret},
	} {
		if strings.TrimSpace(req.val) == "" {
			errs = append(errs, fmt.Errorf("%s is required", req.key))
		}
	}
	if c.LockRetry >= c.LockTTL {
		errs = append(errs, fmt.Errorf("LOCK_RETRY_BACKOFF (%s) must be shorter than LOCK_TTL (%s)", c.LockRetry, c.LockTTL))
	}
	if c.TierEditRateMax <= 0 {
		errs = append(errs, errors.New("TIER_EDIT_RATE_MAX must be positive"))
	}
	if c.RetryJitterPercent < 0 || c.RetryJitterPercent > 1 {
		errs = append(errs, errors.New("RETRY_JITTER_PERCENT must be within [0,1]"))
	}
	if c.ListingPageSize <= 0 || c.ListingPageSize > c.ListingMaxPage {
		errs = append(errs, fmt.Errorf("LISTING_DEFAULT_LIMIT must be within 1..%d", c.ListingMaxPage))
	}
	return errors.Join(errs...)
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

// Calculator returns a pricing calculator using the configured rates.
func (c *Config) Calculator() pricing.Calculator {
	return pricing.NewCalculator(c.PricingRates)
}

func loadRates(k *koanf.Koanf) (pricing.Rates, error) {
	rates := pricing.DefaultRates()
	fields := []struct {
		key string
		dst *decimal.Decimal
	}{
		{key: "PRICING_COMMISSION_RATE", dst: &rates.Commission},
		{key: "PRICING_DELIVERY_FEE", dst: &rates.DeliveryFee},
		{key: "PRICING_TAX_RATE", dst: &rates.Tax},
	}
	for _, f := range fields {
		raw := strings.TrimSpace(k.String(f.key))
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return pricing.Rates{}, fmt.Errorf("%s: %w", f.key, err)
		}
		if d.IsNegative() {
			return pricing.Rates{}, fmt.Errorf("%s must not be negative", f.key)
		}
		*f.dst = d
	}
	return rates, nil
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

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}
