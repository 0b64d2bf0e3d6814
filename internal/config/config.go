package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/dinhdungweb/Helios-account/internal/domain"
	"github.com/dinhdungweb/Helios-account/internal/pricing"
	pkgconfig "github.com/dinhdungweb/Helios-account/pkg/config"
	"github.com/dinhdungweb/Helios-account/pkg/database"
	"github.com/dinhdungweb/Helios-account/pkg/httpclient"
	"github.com/dinhdungweb/Helios-account/pkg/tracing"
)

// Guard backends.
const (
	GuardLocal = "local"
	GuardRedis = "redis"
)

// Config holds all configuration for the tier pricing service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort           int      `env:"HTTP_PORT" envDefault:"8080"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Redis and OpenTelemetry share their settings with pkg/.
	Redis   database.RedisConfig
	Tracing tracing.Config

	SlowCommandThresholdMs int `env:"LOG_SLOW_REDIS_MS" envDefault:"100"`

	// Kafka
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	EventsEnabled bool     `env:"EVENTS_ENABLED" envDefault:"true"`

	// Storefront and order API
	StorefrontURL       string `env:"STOREFRONT_URL,required"`
	OrderAPIURL         string `env:"ORDER_API_URL,required"`
	OrderAPIKey         string `env:"ORDER_API_KEY"`
	OrderTimeoutSeconds int    `env:"ORDER_TIMEOUT_SECONDS" envDefault:"15"`

	// Circuit breaker settings for storefront and order API calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Sessions. SessionSecret verifies the signed customer payload rendered
	// by the theme; JWTSecret signs the session tokens this service issues.
	SessionSecret     string `env:"SESSION_SECRET,required"`
	JWTSecret         string `env:"JWT_SECRET,required"`
	SessionTTLMinutes int    `env:"SESSION_TTL_MINUTES" envDefault:"120"`

	// Tier discounts, e.g. TIER_DISCOUNTS="Gold=10,Platinum=15".
	TierDiscounts map[string]int    `env:"TIER_DISCOUNTS" envKeyValSeparator:"="`
	TierCodes     map[string]string `env:"TIER_CODES" envKeyValSeparator:"="`

	// Discount scope
	DiscountScope    string   `env:"DISCOUNT_SCOPE" envDefault:"all"`
	ScopeTags        []string `env:"SCOPE_TAGS" envSeparator:","`
	ScopeCollections []string `env:"SCOPE_COLLECTIONS" envSeparator:","`

	// Catalog lookups
	CollectionCacheTTLSeconds int `env:"COLLECTION_CACHE_TTL_SECONDS" envDefault:"300"`
	ProductFetchConcurrency   int `env:"PRODUCT_FETCH_CONCURRENCY" envDefault:"4"`
	CollectionMaxPages        int `env:"COLLECTION_MAX_PAGES" envDefault:"20"`

	// In-flight guard
	GuardBackend    string `env:"GUARD_BACKEND" envDefault:"local"`
	GuardTTLSeconds int    `env:"GUARD_TTL_SECONDS" envDefault:"30"`

	// Per-IP limit on session start and checkout routes. 0 disables it.
	RateLimitRPS   int `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst int `env:"RATE_LIMIT_BURST" envDefault:"10"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load tier pricing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.EventsEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when EVENTS_ENABLED is set")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.Tracing.SampleRate)
	}
	for name, rawURL := range map[string]string{
		"STOREFRONT_URL": c.StorefrontURL,
		"ORDER_API_URL":  c.OrderAPIURL,
	} {
		u, err := url.ParseRequestURI(rawURL)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, rawURL, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%s must be an http(s) URL, got %q", name, rawURL)
		}
	}
	if c.OrderTimeoutSeconds <= 0 {
		return fmt.Errorf("ORDER_TIMEOUT_SECONDS must be positive, got %d", c.OrderTimeoutSeconds)
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.SessionTTLMinutes <= 0 {
		return fmt.Errorf("SESSION_TTL_MINUTES must be positive, got %d", c.SessionTTLMinutes)
	}
	if _, err := c.TierTable(); err != nil {
		return fmt.Errorf("TIER_DISCOUNTS: %w", err)
	}
	if _, err := c.ScopePolicy(); err != nil {
		return fmt.Errorf("DISCOUNT_SCOPE: %w", err)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}
	if c.GuardBackend != GuardLocal && c.GuardBackend != GuardRedis {
		return fmt.Errorf("GUARD_BACKEND must be %q or %q, got %q", GuardLocal, GuardRedis, c.GuardBackend)
	}
	if c.GuardTTLSeconds < c.OrderTimeoutSeconds {
		return fmt.Errorf("GUARD_TTL_SECONDS (%d) must not be shorter than ORDER_TIMEOUT_SECONDS (%d)",
			c.GuardTTLSeconds, c.OrderTimeoutSeconds)
	}
	return nil
}

// TierTable returns the configured tier percentages, or the defaults when
// TIER_DISCOUNTS is unset.
func (c *Config) TierTable() (domain.TierTable, error) {
	if len(c.TierDiscounts) == 0 {
		return domain.DefaultTierTable(), nil
	}
	return domain.NewTierTable(c.TierDiscounts)
}

// CodeBook returns the per-tier discount codes.
func (c *Config) CodeBook() pricing.CodeBook {
	return pricing.NewCodeBook(c.TierCodes)
}

// ScopePolicy returns the active discount scope.
func (c *Config) ScopePolicy() (domain.ScopePolicy, error) {
	return domain.NewScopePolicy(c.DiscountScope, c.ScopeTags, c.ScopeCollections)
}

// SessionTTL returns the session token lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// OrderTimeout returns the order creation budget.
func (c *Config) OrderTimeout() time.Duration {
	return time.Duration(c.OrderTimeoutSeconds) * time.Second
}

// CollectionCacheTTL returns how long collection listings are cached.
func (c *Config) CollectionCacheTTL() time.Duration {
	return time.Duration(c.CollectionCacheTTLSeconds) * time.Second
}

// GuardTTL returns how long a Redis guard key outlives a crashed holder.
func (c *Config) GuardTTL() time.Duration {
	return time.Duration(c.GuardTTLSeconds) * time.Second
}

// CircuitBreaker returns the breaker settings for the named upstream.
func (c *Config) CircuitBreaker(name string) httpclient.CircuitBreakerConfig {
	return httpclient.CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  c.CBMaxRequests,
		Interval:     time.Duration(c.CBInterval) * time.Second,
		Timeout:      time.Duration(c.CBTimeout) * time.Second,
		FailureRatio: c.CBFailureRatio,
		MinRequests:  c.CBMinRequests,
	}
}
