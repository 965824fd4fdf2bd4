package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()

	t.Setenv("OPENROUTER_API_KEY", "sk-or-test-key")
	t.Setenv("CSRF_KEY", "0123456789abcdef0123456789abcdef")
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, ":8080", cfg.Server.Address)
		assert.Equal(t, "development", cfg.Server.Environment)
		assert.True(t, cfg.IsDevelopment())
		assert.False(t, cfg.Security.SecureCookies)

		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, "fitcheck", cfg.Database.Name)

		assert.Equal(t, "allenai/molmo-2-8b:free", cfg.OpenRouter.VisionModel)
		assert.Equal(t, "allenai/molmo-2-8b:free", cfg.OpenRouter.TextModel)
		assert.Equal(t, "Outfit Fitcheck", cfg.OpenRouter.SiteName)

		assert.Equal(t, int64(10<<20), cfg.Limits.MaxUploadBytes)
		assert.Equal(t, 50, cfg.Limits.DefaultUserQuota)
		assert.Equal(t, 20, cfg.Limits.DashboardPageSize)
	})

	t.Run("overrides", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("APP_ENV", "production")
		t.Setenv("SERVER_ADDRESS", ":9000")
		t.Setenv("SERVER_READ_TIMEOUT", "30s")
		t.Setenv("OPENROUTER_VISION_MODEL", "openai/gpt-4o-mini")
		t.Setenv("MAX_UPLOAD_MB", "5")

		cfg, err := Load()
		require.NoError(t, err)

		assert.True(t, cfg.IsProduction())
		assert.True(t, cfg.Security.SecureCookies)
		assert.Equal(t, ":9000", cfg.Server.Address)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, "openai/gpt-4o-mini", cfg.OpenRouter.VisionModel)
		assert.Equal(t, int64(5<<20), cfg.Limits.MaxUploadBytes)
	})

	t.Run("missing api key", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("OPENROUTER_API_KEY", "")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OPENROUTER_API_KEY")
	})

	t.Run("short csrf key", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("CSRF_KEY", "too-short")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 32 characters")
	})

	t.Run("unknown environment", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("APP_ENV", "testing")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "APP_ENV")
	})

	t.Run("invalid upload limit", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("MAX_UPLOAD_MB", "lots")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "MAX_UPLOAD_MB")
	})
}
