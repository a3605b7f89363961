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

// DefaultFrontendURL is used when FRONTEND_URL is not set.
const DefaultFrontendURL = "http://localhost:5173"

// DefaultBookImageURL is the product image shown on the hosted checkout page.
const DefaultBookImageURL = "https://via.placeholder.com/400x300?text=Piggy+and+Kay"

// Ledger backends accepted by LEDGER_BACKEND.
const (
	LedgerNone     = "none"
	LedgerRedis    = "redis"
	LedgerPostgres = "postgres"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv              string
	Port                string
	FrontendURL         string
	StripeSecretKey     string
	StripeWebhookSecret string
	BookTitle           string
	BookImageURL        string

	RedisURL      string
	DatabaseURL   string
	LedgerBackend string

	IdempotencyTTL       time.Duration
	RateLimitCheckoutMax int
	RateLimitWindow      time.Duration

	GatewayTimeout      time.Duration
	CircuitMinRequests  int
	CircuitFailureRatio float64
	CircuitOpenFor      time.Duration

	BodyLimitBytes  int64
	SecurityHeaders bool
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:               strings.ToLower(valueOrDefault(k.String("APP_ENV"), "development")),
		Port:                 valueOrDefault(k.String("PORT"), "3001"),
		FrontendURL:          strings.TrimRight(valueOrDefault(k.String("FRONTEND_URL"), DefaultFrontendURL), "/"),
		StripeSecretKey:      strings.TrimSpace(k.String("STRIPE_SECRET_KEY")),
		StripeWebhookSecret:  strings.TrimSpace(k.String("STRIPE_WEBHOOK_SECRET")),
		BookTitle:            valueOrDefault(k.String("BOOK_TITLE"), "Piggy & Kay: The Sparkle Within"),
		BookImageURL:         valueOrDefault(k.String("BOOK_IMAGE_URL"), DefaultBookImageURL),
		RedisURL:             strings.TrimSpace(k.String("REDIS_URL")),
		DatabaseURL:          strings.TrimSpace(k.String("DATABASE_URL")),
		LedgerBackend:        strings.ToLower(valueOrDefault(k.String("LEDGER_BACKEND"), LedgerNone)),
		IdempotencyTTL:       parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		RateLimitCheckoutMax: parseInt(k.String("RATE_LIMIT_CHECKOUT_MAX"), 20),
		RateLimitWindow:      parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		GatewayTimeout:       parseDuration(k.String("GATEWAY_TIMEOUT"), "30s"),
		CircuitMinRequests:   parseInt(k.String("CIRCUIT_MIN_REQUESTS"), 5),
		CircuitFailureRatio:  parseFloat(k.String("CIRCUIT_FAILURE_RATIO"), 0.5),
		CircuitOpenFor:       parseDuration(k.String("CIRCUIT_OPEN_FOR"), "30s"),
		BodyLimitBytes:       int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		SecurityHeaders:      parseBoolDefault(k.String("SECURITY_HEADERS"), true),
		ShutdownTimeout:      parseDuration(k.String("SHUTDOWN_TIMEOUT"), "10s"),
	}

	switch cfg.LedgerBackend {
	case LedgerNone:
	case LedgerRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("REDIS_URL is required for the redis ledger")
		}
	case LedgerPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres ledger")
		}
	default:
		return nil, fmt.Errorf("unsupported LEDGER_BACKEND %q", cfg.LedgerBackend)
	}

	if cfg.IsProduction() && cfg.StripeSecretKey == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is required in production")
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with the production posture.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "3001"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// SuccessURL is where the provider redirects after a completed payment.
func (c *Config) SuccessURL() string {
	return c.FrontendURL + "/?success=true"
}

// CancelURL is where the provider redirects when the buyer backs out.
func (c *Config) CancelURL() string {
	return c.FrontendURL + "/?canceled=true"
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
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

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
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
