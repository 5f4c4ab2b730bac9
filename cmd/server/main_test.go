package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedpos/backend/internal/cache"
	"feedpos/backend/internal/config"
	"feedpos/backend/internal/store/memory"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short", AccessTokenTTL: time.Hour})
	assert.Error(t, err)

	err = validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", AccessTokenTTL: 72 * time.Hour})
	assert.Error(t, err)
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", AccessTokenTTL: 8 * time.Hour})
	assert.NoError(t, err)
}

func TestOpenRepositoryDefaultsToMemory(t *testing.T) {
	repo, closeFn, err := openRepository(context.Background(), config.Config{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, closeFn)
	assert.IsType(t, &memory.Store{}, repo)
}

func TestOpenCartStorePrefersRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	carts, closeFn := openCartStore(context.Background(), config.Config{RedisAddr: mr.Addr()}, zerolog.Nop())
	require.NotNil(t, closeFn)
	defer closeFn()
	assert.IsType(t, &cache.RedisCartStore{}, carts)
}

func TestOpenCartStoreFallsBackToMemory(t *testing.T) {
	carts, closeFn := openCartStore(context.Background(), config.Config{}, zerolog.Nop())
	assert.Nil(t, closeFn)
	assert.IsType(t, &cache.MemoryCartStore{}, carts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	carts, closeFn = openCartStore(ctx, config.Config{RedisAddr: "127.0.0.1:1"}, zerolog.Nop())
	assert.Nil(t, closeFn)
	assert.IsType(t, &cache.MemoryCartStore{}, carts)
}
