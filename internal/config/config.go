package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	pkgconfig "github.com/yardline/marketclient/pkg/config"
)

// Session store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Payment providers.
const (
	PaymentMock   = "mock"
	PaymentEscrow = "escrow"
)

// Config holds all configuration for the marketplace client daemon.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// HTTP server. The daemon serves a single local user, so it binds to
	// loopback unless told otherwise.
	HTTPHost string `env:"HTTP_HOST" envDefault:"127.0.0.1"`
	HTTPPort int    `env:"HTTP_PORT" envDefault:"8090"`

	// Backend
	BackendBaseURL        string `env:"BACKEND_BASE_URL" envDefault:"http://localhost:8000"`
	BackendTimeoutSeconds int    `env:"BACKEND_TIMEOUT_SECONDS" envDefault:"15"`
	BackendMaxRetries     int    `env:"BACKEND_MAX_RETRIES" envDefault:"2"`

	// Circuit breaker settings for backend and escrow calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Session persistence
	SessionStore string `env:"SESSION_STORE" envDefault:"file"`
	SessionFile  string `env:"SESSION_FILE" envDefault:".yardline/session.json"`
	RedisHost    string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort    int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass    string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB      int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix  string `env:"REDIS_KEY_PREFIX" envDefault:"yardline:"`

	// Offline fallback mints local identities when the backend is
	// unreachable. Refused in production.
	OfflineFallback bool `env:"OFFLINE_FALLBACK" envDefault:"true"`

	// Payment
	PaymentProvider       string `env:"PAYMENT_PROVIDER" envDefault:"mock"`
	EscrowBaseURL         string `env:"ESCROW_BASE_URL" envDefault:"http://localhost:8010"`
	PaymentTimeoutSeconds int    `env:"PAYMENT_TIMEOUT_SECONDS" envDefault:"30"`

	// Kafka event forwarding
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"yardline.client.events"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Rate limits on calls that reach the backend. Zero RPS disables.
	AuthRateLimitRPS         float64 `env:"AUTH_RATE_LIMIT_RPS" envDefault:"1"`
	AuthRateLimitBurst       int     `env:"AUTH_RATE_LIMIT_BURST" envDefault:"5"`
	ConsultantRateLimitRPS   float64 `env:"CONSULTANT_RATE_LIMIT_RPS" envDefault:"0.2"`
	ConsultantRateLimitBurst int     `env:"CONSULTANT_RATE_LIMIT_BURST" envDefault:"3"`

	// CORS for the presentation layer dev server
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load marketd config: %w", err)
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
	for name, rawURL := range map[string]string{
		"BACKEND_BASE_URL": c.BackendBaseURL,
		"ESCROW_BASE_URL":  c.EscrowBaseURL,
	} {
		if rawURL == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := url.ParseRequestURI(rawURL); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, rawURL, err)
		}
	}
	if c.BackendTimeoutSeconds < 1 {
		return fmt.Errorf("BACKEND_TIMEOUT_SECONDS must be positive, got %d", c.BackendTimeoutSeconds)
	}
	if c.BackendMaxRetries < 0 {
		return fmt.Errorf("BACKEND_MAX_RETRIES must not be negative, got %d", c.BackendMaxRetries)
	}
	if c.PaymentTimeoutSeconds < 1 {
		return fmt.Errorf("PAYMENT_TIMEOUT_SECONDS must be positive, got %d", c.PaymentTimeoutSeconds)
	}
	switch c.SessionStore {
	case StoreMemory, StoreRedis:
	case StoreFile:
		if c.SessionFile == "" {
			return fmt.Errorf("SESSION_FILE is required when SESSION_STORE=file")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be one of memory, file, redis, got %q", c.SessionStore)
	}
	switch c.PaymentProvider {
	case PaymentMock, PaymentEscrow:
	default:
		return fmt.Errorf("PAYMENT_PROVIDER must be %q or %q, got %q", PaymentMock, PaymentEscrow, c.PaymentProvider)
	}
	if c.IsProduction() {
		if c.OfflineFallback {
			return fmt.Errorf("OFFLINE_FALLBACK must be disabled when ENVIRONMENT=production")
		}
		if c.PaymentProvider == PaymentMock {
			return fmt.Errorf("PAYMENT_PROVIDER=mock is not allowed when ENVIRONMENT=production")
		}
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}
	if c.AuthRateLimitRPS < 0 || c.ConsultantRateLimitRPS < 0 {
		return fmt.Errorf("rate limit RPS must not be negative")
	}
	if c.AuthRateLimitBurst < 1 || c.ConsultantRateLimitBurst < 1 {
		return fmt.Errorf("rate limit burst must be at least 1")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// IsProduction reports whether the daemon runs in production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort)
}

// BackendTimeout returns the per-request timeout for backend calls.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.BackendTimeoutSeconds) * time.Second
}

// PaymentTimeout bounds a single charge attempt.
func (c *Config) PaymentTimeout() time.Duration {
	return time.Duration(c.PaymentTimeoutSeconds) * time.Second
}
