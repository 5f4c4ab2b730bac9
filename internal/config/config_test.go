package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.AuthSecret)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "http://till.local, http://admin.local ,")
	t.Setenv("AUTO_MIGRATE", "true")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CART_TTL", "90m")
	t.Setenv("ACCESS_TOKEN_TTL", "not-a-duration")
	t.Setenv("CURRENCY", "ugx")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Address())
	assert.Equal(t, []string{"http://till.local", "http://admin.local"}, cfg.AllowedOrigins)
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 90*time.Minute, cfg.CartTTL)
	assert.Equal(t, 8*time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, "UGX", cfg.Currency)
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "primary")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadBusinessTimeZone(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, cfg.BusinessLocation)

	t.Setenv("BUSINESS_TZ", "Africa/Nairobi")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "Africa/Nairobi", cfg.BusinessLocation.String())

	t.Setenv("BUSINESS_TZ", "Mars/Olympus")
	_, err = Load()
	assert.Error(t, err)
}
