package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, 30*time.Second, cfg.API.RetryBudget)
	assert.Equal(t, 3, cfg.API.MaxAttempts)
	assert.Equal(t, 1000, cfg.Limits.SearchMax)
	assert.Equal(t, 10000, cfg.Limits.AlarmsMax)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.True(t, cfg.Geo.Enabled)
	assert.Equal(t, 100, cfg.Geo.RolloutPercentage)
	assert.Equal(t, 24*time.Hour, cfg.Geo.CacheTTL)
	assert.Equal(t, 5*time.Second, cfg.Geo.SoftBudget)
	assert.InDelta(t, 0.9, cfg.Geo.TargetSuccessRate, 1e-9)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9999
api:
  base_url: https://msp.example.com
  token: file-token
cache:
  backend: redis
  redis:
    addr: 127.0.0.1:6379
geo:
  rollout_percentage: 25
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "https://msp.example.com", cfg.API.BaseURL)
	assert.Equal(t, "file-token", cfg.API.Token)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "127.0.0.1:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, 25, cfg.Geo.RolloutPercentage)
	// Untouched keys keep their defaults.
	assert.Equal(t, 1000, cfg.Limits.SearchMax)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GATEWATCH_API_TOKEN", "env-token")
	t.Setenv("GATEWATCH_SERVER_PORT", "7070")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.API.Token)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		message string
	}{
		{
			name:    "bad port",
			yaml:    "server:\n  port: -1\n",
			message: "invalid server port",
		},
		{
			name:    "rollout out of range",
			yaml:    "geo:\n  rollout_percentage: 150\n",
			message: "rollout percentage must be 0-100",
		},
		{
			name:    "unknown cache backend",
			yaml:    "cache:\n  backend: memcached\n",
			message: "unknown cache backend",
		},
		{
			name:    "redis backend without addr",
			yaml:    "cache:\n  backend: redis\n",
			message: "requires cache.redis.addr",
		},
		{
			name:    "non-positive ceiling",
			yaml:    "limits:\n  search_max: 0\n",
			message: "limit ceilings must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o600))

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
