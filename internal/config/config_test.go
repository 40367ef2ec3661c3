package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvConfigPath, "DATABASE_URL", "PG_DSN", "HTTP_ADDR", "AUTH_JWT_SECRET", "JWT_SECRET",
		"AUTH_TOKEN_TTL", "CURRENCY", "BILL_DUE_DAYS", "BILL_WORKERS", "RATE_CACHE_TTL",
		"NOTIFY_WEBHOOK_URL", "LOG_LEVEL", "LOG_DEVELOPMENT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, 30, cfg.BillDueDays)
	require.Equal(t, "GHS", cfg.Currency)
	require.Error(t, cfg.Validate())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "waterbill.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_url: postgres://file/db
jwt_secret: from-file
currency: eur
bill_due_days: 14
rate_cache_ttl: 90s
notify:
  webhook_url: https://hooks.example/bills
log:
  level: debug
  format: console
`), 0o600))
	t.Setenv(EnvConfigPath, path)
	t.Setenv("BILL_DUE_DAYS", "21")
	t.Setenv("LOG_DEVELOPMENT", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "postgres://file/db", cfg.DatabaseURL)
	require.Equal(t, "from-file", cfg.JWTSecret)
	require.Equal(t, "EUR", cfg.Currency)
	require.Equal(t, 21, cfg.BillDueDays)
	require.Equal(t, 90*time.Second, cfg.RateCacheTTL)
	require.Equal(t, "https://hooks.example/bills", cfg.Notify.WebhookURL)
	require.Equal(t, "debug", cfg.Log.Level)
	require.True(t, cfg.Log.Development)
	require.Equal(t, 5*time.Second, cfg.Notify.Timeout)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConfigPath, filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	require.Error(t, err)
}

func TestValidate_Currency(t *testing.T) {
	cfg := Default()
	cfg.DatabaseURL = "postgres://x"
	cfg.JWTSecret = "s"
	cfg.Currency = "DOLLARS"
	require.Error(t, cfg.Validate())
}
