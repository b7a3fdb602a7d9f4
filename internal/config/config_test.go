package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, 15, cfg.Auth.AccessTTLMin)
	assert.Equal(t, "registration.events", cfg.Broker.Queue)
	assert.True(t, cfg.Cache.Caches("get"))
	assert.False(t, cfg.Cache.Caches("POST"))
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_DRIVER", "sqlite")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "oracle")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported DB_DRIVER")
}

func TestLoadMySQLNeedsUser(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("DB_USER", "")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("DB_USER", "church")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.DB.Driver)
}

func TestLoadAdminPair(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("ADMIN_EMAIL", "office@parish.org")

	_, err := Load()
	require.Error(t, err)
}

func TestRateLimitNormalize(t *testing.T) {
	c := RateLimitConfig{Capacity: 0, RefillTokens: 0, RefillInterval: 2 * time.Second, TTL: time.Second}
	c.normalize()
	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 1, c.RefillTokens)
	assert.Equal(t, 10*time.Second, c.TTL)
}

func TestRedisAddress(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: "6380", Addr: "x:1"}.Address())
	assert.Equal(t, "x:1", RedisConfig{Addr: "x:1"}.Address())
}
