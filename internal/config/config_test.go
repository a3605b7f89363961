package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/preorder-api/internal/config"
)

func baseEnv() map[string]string {
	return map[string]string{
		"APP_ENV":               "",
		"PORT":                  "",
		"FRONTEND_URL":          "",
		"STRIPE_SECRET_KEY":     "",
		"STRIPE_WEBHOOK_SECRET": "",
		"LEDGER_BACKEND":        "",
		"REDIS_URL":             "",
		"DATABASE_URL":          "",
		"RATE_LIMIT_WINDOW":     "",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(baseEnv())
	require.NoError(t, err)

	require.Equal(t, "development", cfg.AppEnv)
	require.False(t, cfg.IsProduction())
	require.Equal(t, ":3001", cfg.HTTPAddr())
	require.Equal(t, config.DefaultFrontendURL, cfg.FrontendURL)
	require.Equal(t, "http://localhost:5173/?success=true", cfg.SuccessURL())
	require.Equal(t, "http://localhost:5173/?canceled=true", cfg.CancelURL())
	require.Equal(t, config.LedgerNone, cfg.LedgerBackend)
	require.Equal(t, time.Minute, cfg.RateLimitWindow)
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = "8080"
	env["FRONTEND_URL"] = "https://piggyandkay.com/"
	env["STRIPE_WEBHOOK_SECRET"] = "whsec_test"
	env["RATE_LIMIT_WINDOW"] = "not-a-duration"

	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "https://piggyandkay.com", cfg.FrontendURL)
	require.Equal(t, "whsec_test", cfg.StripeWebhookSecret)
	require.Equal(t, time.Minute, cfg.RateLimitWindow)
}

func TestLoadProductionRequiresSecretKey(t *testing.T) {
	env := baseEnv()
	env["APP_ENV"] = "production"
	_, err := config.LoadForTests(env)
	require.Error(t, err)

	env["STRIPE_SECRET_KEY"] = "sk_live_x"
	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
}

func TestLoadLedgerBackendValidation(t *testing.T) {
	env := baseEnv()
	env["LEDGER_BACKEND"] = "redis"
	_, err := config.LoadForTests(env)
	require.Error(t, err)

	env["REDIS_URL"] = "redis://localhost:6379/0"
	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, config.LedgerRedis, cfg.LedgerBackend)

	env["LEDGER_BACKEND"] = "mongo"
	_, err = config.LoadForTests(env)
	require.Error(t, err)
}
