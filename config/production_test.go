package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("ADMIN_PASSWORD_HASH", "$2a$10$abcdefghijklmnopqrstuv")
	t.Setenv("EMAIL_PROVIDER", "mock")
}

func TestLoadProductionConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)

	assert.Equal(t, "survey", cfg.Database.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.Survey.APIBaseURL)
	assert.Equal(t, 10*time.Second, cfg.Survey.SubmitTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Cache.IdempotencyTTL)
	assert.Equal(t, time.Minute, cfg.Cache.SweepInterval)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Empty(t, cfg.Digest.CronSpec)
	assert.False(t, cfg.Deployment.IsDevelopment())
}

func TestLoadProductionConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("SURVEY_SUBMIT_TIMEOUT", "3s")
	t.Setenv("NOTIFY_EMAIL", "ops@example.com")
	t.Setenv("DIGEST_CRON", "0 8 * * *")
	t.Setenv("APP_ENV", "Development")
	t.Setenv("DB_PORT", "not-a-number")

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, 3*time.Second, cfg.Survey.SubmitTimeout)
	assert.Equal(t, "ops@example.com", cfg.Digest.Recipient, "digest falls back to the notify address")
	assert.Equal(t, 5432, cfg.Database.Port, "unparsable values keep the default")
	assert.True(t, cfg.Deployment.IsDevelopment())
}

func TestLoadProductionConfigRejectsInvalid(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_SECRET_KEY", "short")
	t.Setenv("SURVEY_API_BASE_URL", "/relative")
	t.Setenv("LOG_LEVEL", "verbose")

	_, err := LoadProductionConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET_KEY")
	assert.Contains(t, err.Error(), "SURVEY_API_BASE_URL")
	assert.Contains(t, err.Error(), "LOG_LEVEL")
}

func TestValidateProductionConfigEmail(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := LoadProductionConfig()
	require.NoError(t, err)

	cfg.Email.Provider = "smtp"
	cfg.Email.Username = ""
	err = ValidateProductionConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP_USER")

	cfg.Email.Provider = "carrier-pigeon"
	err = ValidateProductionConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMAIL_PROVIDER")
}

func TestDatabaseConfigConnectionStrings(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5433, Name: "survey", User: "app", Password: "p@ss word", SSLMode: "require"}

	assert.Equal(t, "host=db port=5433 user=app password=p@ss word dbname=survey sslmode=require", c.DSN())
	assert.Equal(t, "postgres://app:p%40ss%20word@db:5433/survey?sslmode=require", c.URL())
}

func TestLoadProductionConfigProxyAndPageKey(t *testing.T) {
	setRequiredEnv(t)

	first, err := LoadProductionConfig()
	require.NoError(t, err)
	second, err := LoadProductionConfig()
	require.NoError(t, err)

	assert.Equal(t, "X-Real-IP", first.Server.ProxyHeader)
	assert.Empty(t, first.Server.TrustedProxies)
	assert.Len(t, first.Survey.PageKey, 64)
	assert.NotEqual(t, first.Survey.PageKey, second.Survey.PageKey, "each process gets its own key")

	t.Setenv("SERVER_TRUSTED_PROXIES", "127.0.0.1, 10.0.0.0/8")
	t.Setenv("SURVEY_PAGE_KEY", "fixed-page-key-0123456789")
	cfg, err := LoadProductionConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1", "10.0.0.0/8"}, cfg.Server.TrustedProxies)
	assert.Equal(t, "fixed-page-key-0123456789", cfg.Survey.PageKey)

	t.Setenv("SERVER_TRUSTED_PROXIES", "proxy.local")
	t.Setenv("SURVEY_PAGE_KEY", "short")
	_, err = LoadProductionConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_TRUSTED_PROXIES")
	assert.Contains(t, err.Error(), "SURVEY_PAGE_KEY")
}
