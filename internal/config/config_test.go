package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scryforge/scrybot/internal/config"
)

func TestLoad_DefaultsWithToken(t *testing.T) {
	t.Setenv(config.EnvToken, "test-token")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "test-token", cfg.Token)
	assert.Equal(t, 6, cfg.Browse.ListWindow)
	assert.Equal(t, 5, cfg.Browse.ArtsWindow)
	assert.Equal(t, 4, cfg.Queue.Workers)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 500, cfg.Track.Capacity)
}

func TestLoad_MissingTokenFails(t *testing.T) {
	t.Setenv(config.EnvToken, "")

	_, err := config.Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.EnvToken)
}

func TestLoad_FileThenEnvOverride(t *testing.T) {
	t.Setenv(config.EnvToken, "test-token")
	t.Setenv(config.EnvWorkers, "9")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
browse:
  list_window: 4
queue:
  workers: 2
session:
  ttl: 1h
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 4, cfg.Browse.ListWindow)
	assert.Equal(t, 5, cfg.Browse.ArtsWindow, "unset file values keep defaults")
	assert.Equal(t, 9, cfg.Queue.Workers, "environment beats file")
	assert.Equal(t, time.Hour, cfg.Session.TTL)
}

func TestLoad_MissingFileFails(t *testing.T) {
	t.Setenv(config.EnvToken, "test-token")

	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv(config.EnvToken, "test-token")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queue:\n  workers: 0\n"), 0o600))

	_, err := config.Load(path)
	assert.Error(t, err)
}
