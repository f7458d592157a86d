package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "med-dispatch-api", cfg.AppName)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Dispatch.HoldDuration)
	assert.Equal(t, time.Minute, cfg.Dispatch.MonitorInterval)
	assert.Equal(t, 64, cfg.Dispatch.EventBuffer)
	assert.True(t, cfg.Database.RunMigrations)
	assert.True(t, cfg.Keycloak.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("HTTP_ADDRESS", ":9999")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DISPATCH_HOLD_DURATION", "15m")
	t.Setenv("DISPATCH_MONITOR_INTERVAL", "10s")
	t.Setenv("KEYCLOAK_ENABLED", "false")
	t.Setenv("DB_MAX_CONNS", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, ":9999", cfg.HTTP.Address)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 15*time.Minute, cfg.Dispatch.HoldDuration)
	assert.Equal(t, 10*time.Second, cfg.Dispatch.MonitorInterval)
	assert.False(t, cfg.Keycloak.Enabled)
	assert.Equal(t, int32(5), cfg.Database.MaxConns)
}
