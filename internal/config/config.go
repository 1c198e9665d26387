// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/yourorg/payment-settlement/internal/adapter/nicepay"
	"github.com/yourorg/payment-settlement/internal/retry"
	"github.com/yourorg/payment-settlement/internal/router/circuitbreaker"
)

// Config is the immutable process configuration.
type Config struct {
	Port        string
	Environment string
	DatabaseURL string // empty selects the in-memory store
	RedisAddr   string // empty selects the in-process lock
	JWTSecret   string
	FrontendURL string

	ProductServiceURL string
	UserServiceURL    string
	OrderServiceURL   string
	HTTPClientTimeout time.Duration

	NicePay        nicepay.Config
	GatewayBackoff retry.Backoff
	Breaker        circuitbreaker.Config
	LockTTL        time.Duration
	TracingEnabled bool
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	e := env{lookup: lookup}
	cfg := &Config{
		Port:              e.str("PORT", "8080"),
		Environment:       e.str("ENVIRONMENT", "development"),
		DatabaseURL:       e.str("DATABASE_URL", ""),
		RedisAddr:         e.str("REDIS_ADDR", ""),
		JWTSecret:         e.str("JWT_SECRET", ""),
		FrontendURL:       e.str("FRONTEND_URL", "http://localhost:3000"),
		ProductServiceURL: e.str("PRODUCT_SERVICE_URL", "http://localhost:8081"),
		UserServiceURL:    e.str("USER_SERVICE_URL", "http://localhost:8082"),
		OrderServiceURL:   e.str("ORDER_SERVICE_URL", "http://localhost:8083"),
		HTTPClientTimeout: e.duration("HTTP_CLIENT_TIMEOUT", 5*time.Second),
		NicePay: nicepay.Config{
			ClientID:  e.str("NICEPAY_CLIENT_ID", "test-client-id"),
			SecretKey: e.str("NICEPAY_SECRET_KEY", "test-secret-key"),
			BaseURL:   e.str("NICEPAY_BASE_URL", "https://sandbox-api.nicepay.co.kr"),
			ReturnURL: e.str("NICEPAY_RETURN_URL", "http://localhost:8080/api/payments/return"),
			CancelURL: e.str("NICEPAY_CANCEL_URL", "http://localhost:8080/api/payments/cancel"),
		},
		GatewayBackoff: retry.Backoff{
			MaxAttempts: e.integer("GATEWAY_RETRY_MAX_ATTEMPTS", retry.DefaultBackoff.MaxAttempts),
			Initial:     e.duration("GATEWAY_RETRY_INITIAL", retry.DefaultBackoff.Initial),
			Multiplier:  e.float("GATEWAY_RETRY_MULTIPLIER", retry.DefaultBackoff.Multiplier),
			Max:         e.duration("GATEWAY_RETRY_MAX", retry.DefaultBackoff.Max),
		},
		Breaker: circuitbreaker.Config{
			FailureThreshold: e.integer("BREAKER_FAILURE_THRESHOLD", 5),
			ResetTimeout:     e.duration("BREAKER_RESET_TIMEOUT", 30*time.Second),
		},
		LockTTL:        e.duration("APPROVAL_LOCK_TTL", 60*time.Second),
		TracingEnabled: e.boolean("TRACING_ENABLED", false),
	}
	if e.err != nil {
		return nil, e.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.GatewayBackoff.MaxAttempts < 1 {
		return fmt.Errorf("GATEWAY_RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.GatewayBackoff.MaxAttempts)
	}
	if c.GatewayBackoff.Multiplier < 1 {
		return fmt.Errorf("GATEWAY_RETRY_MULTIPLIER must be at least 1, got %g", c.GatewayBackoff.Multiplier)
	}
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("BREAKER_FAILURE_THRESHOLD must be at least 1, got %d", c.Breaker.FailureThreshold)
	}
	if c.NicePay.BaseURL == "" {
		return fmt.Errorf("NICEPAY_BASE_URL must not be empty")
	}
	if c.Environment == "production" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool { return c.Environment == "production" }

// env records the first parse error so FromEnv can read every key in one pass.
type env struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *env) str(key, def string) string {
	if v, ok := e.lookup(key); ok && v != "" {
		return v
	}
	return def
}

func (e *env) fail(key, v string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s=%q: %w", key, v, err)
	}
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return d
}

func (e *env) integer(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return n
}

func (e *env) float(key string, def float64) float64 {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return f
}

func (e *env) boolean(key string, def bool) bool {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return b
}
