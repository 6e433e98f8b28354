package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// APIConfig holds the connection settings for the Work Hub backend.
type APIConfig struct {
	// BaseURL is the root URL of the backend (e.g., https://hub.example.com).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds every REST request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// MaxRetries is how many times a rate-limited request is retried.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// StreamPath is the server-sent events endpoint.
	StreamPath string `mapstructure:"stream_path" yaml:"stream_path"`

	// SnapshotSize is the page size requested for the initial snapshot.
	SnapshotSize int `mapstructure:"snapshot_size" yaml:"snapshot_size"`
}

// SyncConfig tunes the notification synchronization core.
type SyncConfig struct {
	ReconnectDelaySec  int    `mapstructure:"reconnect_delay_sec" yaml:"reconnect_delay_sec"`
	TimeAgoIntervalSec int    `mapstructure:"time_ago_interval_sec" yaml:"time_ago_interval_sec"`
	Language           string `mapstructure:"language" yaml:"language"`
}

// StateConfig selects and configures the shared key/value backend.
type StateConfig struct {
	// Backend is one of "sqlite", "redis" or "memory".
	Backend        string `mapstructure:"backend" yaml:"backend"`
	SQLitePath     string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	RedisAddr      string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisDB        int    `mapstructure:"redis_db" yaml:"redis_db"`
	PollIntervalMs int    `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
}

// LoggerConfig controls structured logging output.
type LoggerConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	OutputPath string `mapstructure:"output_path" yaml:"output_path"`
}

// MetricsConfig enables the prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme    string `mapstructure:"theme" yaml:"theme"`
	PageSize int    `mapstructure:"page_size" yaml:"page_size"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	State   StateConfig   `mapstructure:"state" yaml:"state"`
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/workhub/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "workhub", "config.yaml")
}

// DefaultStateDir returns the directory holding the local state database
// and log file.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "state", "workhub")
}

// configDefaults are applied both to viper and to the zero config.
func configDefaults() map[string]any {
	stateDir := DefaultStateDir()
	return map[string]any{
		"api.base_url":               "http://localhost:8080",
		"api.timeout_sec":            30,
		"api.max_retries":            3,
		"api.stream_path":            "/api/notifications/subscribe",
		"api.snapshot_size":          50,
		"sync.reconnect_delay_sec":   5,
		"sync.time_ago_interval_sec": 60,
		"sync.language":              "en",
		"state.backend":              "sqlite",
		"state.sqlite_path":          filepath.Join(stateDir, "state.db"),
		"state.redis_addr":           "localhost:6379",
		"state.redis_db":             0,
		"state.poll_interval_ms":     500,
		"logger.level":               "info",
		"logger.format":              "text",
		"logger.output_path":         "stderr",
		"metrics.addr":               "",
		"display.theme":              "default",
		"display.page_size":          20,
	}
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("WORKHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for k, val := range configDefaults() {
		v.SetDefault(k, val)
	}
	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A .env file in the working directory is loaded first so WORKHUB_*
// variables defined there override file values. A missing config file is
// not an error; defaults (plus environment) are returned instead.
func LoadConfig(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Sync.ReconnectDelaySec <= 0 {
		cfg.Sync.ReconnectDelaySec = 5
	}
	if cfg.Sync.TimeAgoIntervalSec <= 0 {
		cfg.Sync.TimeAgoIntervalSec = 60
	}
	if cfg.Display.PageSize <= 0 {
		cfg.Display.PageSize = 20
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("sync", cfg.Sync)
	v.Set("state", cfg.State)
	v.Set("logger", cfg.Logger)
	v.Set("metrics", cfg.Metrics)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
