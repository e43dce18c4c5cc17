package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "jwt:\n  signing_key: k\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.State.Backend)
	assert.Equal(t, []string{"gs", "sr"}, cfg.Games)
	assert.Equal(t, 24*time.Hour, cfg.Mys.ProfileTTL)
	assert.Equal(t, 4, cfg.Sweep.Concurrency)
	assert.Zero(t, cfg.Sweep.Interval)
}

func TestLoadReadsFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 9000
state:
  backend: redis
sweep:
  interval: 6h
  concurrency: 8
games: [gs]
admin:
  user_keys: ["10001"]
mys:
  health_endpoint: http://probe.local/check
`))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.State.Backend)
	assert.Equal(t, 6*time.Hour, cfg.Sweep.Interval)
	assert.Equal(t, 8, cfg.Sweep.Concurrency)
	assert.Equal(t, []string{"gs"}, cfg.Games)
	assert.Equal(t, []string{"10001"}, cfg.Admin.UserKeys)
	assert.Equal(t, "http://probe.local/check", cfg.Mys.HealthEndpoint)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "7000")
	cfg, err := Load(writeConfig(t, "server:\n  port: 9000\n"))
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
