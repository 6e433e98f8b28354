package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.API.BaseURL)
	assert.Equal(t, "/api/notifications/subscribe", cfg.API.StreamPath)
	assert.Equal(t, 5, cfg.Sync.ReconnectDelaySec)
	assert.Equal(t, 60, cfg.Sync.TimeAgoIntervalSec)
	assert.Equal(t, "sqlite", cfg.State.Backend)
	assert.Equal(t, 20, cfg.Display.PageSize)
}

func TestLoadConfig_FileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://hub.example.com
  snapshot_size: 10
sync:
  reconnect_delay_sec: 0
  language: ko
state:
  backend: redis
`), 0o644))

	t.Setenv("WORKHUB_STATE_REDIS_ADDR", "redis.internal:6380")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://hub.example.com", cfg.API.BaseURL)
	assert.Equal(t, 10, cfg.API.SnapshotSize)
	assert.Equal(t, 5, cfg.Sync.ReconnectDelaySec, "non-positive delay falls back")
	assert.Equal(t, "ko", cfg.Sync.Language)
	assert.Equal(t, "redis", cfg.State.Backend)
	assert.Equal(t, "redis.internal:6380", cfg.State.RedisAddr)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unclosed"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	cfg.API.BaseURL = "https://saved.example.com"
	cfg.Display.PageSize = 42

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://saved.example.com", loaded.API.BaseURL)
	assert.Equal(t, 42, loaded.Display.PageSize)
}
