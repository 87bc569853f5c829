package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("requires postgres password", func(t *testing.T) {
		t.Setenv("POSTGRES_PASSWORD", "")
		t.Setenv("JWT_SECRET_KEY", "secret")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("requires jwt secret", func(t *testing.T) {
		t.Setenv("POSTGRES_PASSWORD", "pw")
		t.Setenv("JWT_SECRET_KEY", "")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("applies defaults", func(t *testing.T) {
		t.Setenv("POSTGRES_PASSWORD", "pw")
		t.Setenv("JWT_SECRET_KEY", "secret")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 30*time.Minute, cfg.JWT.AccessTokenTTL)
		assert.Equal(t, "visitor_id", cfg.Visitor.CookieName)
		assert.Equal(t, 30*24*time.Hour, cfg.Visitor.MaxAge)
		assert.Equal(t, 5, cfg.Content.RecommendedLimit)
		assert.Equal(t, 100, cfg.Content.MaxPageSize)
		assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
		assert.False(t, cfg.IsProduction())
	})

	t.Run("reads overrides and ignores malformed values", func(t *testing.T) {
		t.Setenv("POSTGRES_PASSWORD", "pw")
		t.Setenv("JWT_SECRET_KEY", "secret")
		t.Setenv("JWT_ACCESS_TOKEN_TTL", "1h")
		t.Setenv("RECOMMENDED_CITIES_LIMIT", "not-a-number")
		t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
		t.Setenv("VISITOR_COOKIE_SECURE", "true")
		t.Setenv("APP_ENV", "Production")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, time.Hour, cfg.JWT.AccessTokenTTL)
		assert.Equal(t, 5, cfg.Content.RecommendedLimit)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
		assert.True(t, cfg.Visitor.Secure)
		assert.True(t, cfg.IsProduction())
	})
}
