// Package config loads campusfeed settings.
//
// Sources, lowest precedence first: built-in defaults, a config file (TOML
// or YAML, by default <data_dir>/config.toml), a .env file, and environment
// variables prefixed CAMPUSFEED_ with dots replaced by underscores
// (remote.dsn -> CAMPUSFEED_REMOTE_DSN).
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CAMPUSFEED"

// Config is the effective configuration.
type Config struct {
	// DataDir holds the local cache, intents, session and default database.
	DataDir string `mapstructure:"data_dir"`

	Remote  RemoteConfig  `mapstructure:"remote"`
	Storage StorageConfig `mapstructure:"storage"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Daemon  DaemonConfig  `mapstructure:"daemon"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Log     LogConfig     `mapstructure:"log"`
}

// RemoteConfig selects the remote store. An empty DSN means the remote is
// not configured and the feed runs from the local cache only.
type RemoteConfig struct {
	DSN string `mapstructure:"dsn"`
}

// StorageConfig locates the object buckets.
type StorageConfig struct {
	Dir       string `mapstructure:"dir"`
	PublicURL string `mapstructure:"public_url"`
}

// FeedConfig configures the push feed.
type FeedConfig struct {
	Port int    `mapstructure:"port"`
	URL  string `mapstructure:"url"`
}

// DaemonConfig configures the background sync daemon.
type DaemonConfig struct {
	ReplayInterval   time.Duration `mapstructure:"replay_interval"`
	DebounceInterval time.Duration `mapstructure:"debounce_interval"`
}

// SyncConfig configures intent replay.
type SyncConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
}

// LogConfig configures log output. An empty File logs to stderr.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// LoadOptions points Load at explicit files.
type LoadOptions struct {
	// ConfigFile overrides the <data_dir>/config.toml lookup. It must exist.
	ConfigFile string
	// EnvFile is loaded if present (default ".env").
	EnvFile string
}

// DefaultDataDir returns ~/.campusfeed, or .campusfeed when there is no
// home directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".campusfeed"
	}
	return filepath.Join(home, ".campusfeed")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Storage: StorageConfig{
			PublicURL: "http://localhost:8787/storage",
		},
		Feed: FeedConfig{
			Port: 8787,
		},
		Daemon: DaemonConfig{
			ReplayInterval:   30 * time.Second,
			DebounceInterval: 100 * time.Millisecond,
		},
		Sync: SyncConfig{
			MaxAttempts: 5,
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("remote.dsn", d.Remote.DSN)
	v.SetDefault("storage.dir", d.Storage.Dir)
	v.SetDefault("storage.public_url", d.Storage.PublicURL)
	v.SetDefault("feed.port", d.Feed.Port)
	v.SetDefault("feed.url", d.Feed.URL)
	v.SetDefault("daemon.replay_interval", d.Daemon.ReplayInterval)
	v.SetDefault("daemon.debounce_interval", d.Daemon.DebounceInterval)
	v.SetDefault("sync.max_attempts", d.Sync.MaxAttempts)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
}

// Load reads the configuration from every source and validates it.
func Load(opts LoadOptions) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(v.GetString("data_dir"))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("invalid config: data_dir is required")
	}
	if c.Feed.Port < 0 || c.Feed.Port > 65535 {
		return fmt.Errorf("invalid config: feed.port %d out of range", c.Feed.Port)
	}
	if c.Daemon.ReplayInterval <= 0 {
		return fmt.Errorf("invalid config: daemon.replay_interval must be positive")
	}
	if c.Daemon.DebounceInterval <= 0 {
		return fmt.Errorf("invalid config: daemon.debounce_interval must be positive")
	}
	if c.Sync.MaxAttempts <= 0 {
		return fmt.Errorf("invalid config: sync.max_attempts must be positive")
	}
	return nil
}

// RemoteConfigured reports whether a remote DSN is set.
func (c *Config) RemoteConfigured() bool {
	return strings.TrimSpace(c.Remote.DSN) != ""
}

// StorageDir returns the bucket root, <data_dir>/storage by default.
func (c *Config) StorageDir() string {
	if c.Storage.Dir != "" {
		return c.Storage.Dir
	}
	return filepath.Join(c.DataDir, "storage")
}

// Path returns the default config file location for this data dir.
func (c *Config) Path() string {
	return filepath.Join(c.DataDir, "config.toml")
}

// fileConfig is the on-disk shape. Durations are written as strings so the
// file stays readable ("30s" rather than nanoseconds).
type fileConfig struct {
	DataDir string `toml:"data_dir"`
	Remote  struct {
		DSN string `toml:"dsn"`
	} `toml:"remote"`
	Storage struct {
		Dir       string `toml:"dir"`
		PublicURL string `toml:"public_url"`
	} `toml:"storage"`
	Feed struct {
		Port int    `toml:"port"`
		URL  string `toml:"url"`
	} `toml:"feed"`
	Daemon struct {
		ReplayInterval   string `toml:"replay_interval"`
		DebounceInterval string `toml:"debounce_interval"`
	} `toml:"daemon"`
	Sync struct {
		MaxAttempts int `toml:"max_attempts"`
	} `toml:"sync"`
	Log struct {
		File       string `toml:"file"`
		MaxSizeMB  int    `toml:"max_size_mb"`
		MaxBackups int    `toml:"max_backups"`
		MaxAgeDays int    `toml:"max_age_days"`
	} `toml:"log"`
}

func (c *Config) toFile() fileConfig {
	var f fileConfig
	f.DataDir = c.DataDir
	f.Remote.DSN = c.Remote.DSN
	f.Storage.Dir = c.Storage.Dir
	f.Storage.PublicURL = c.Storage.PublicURL
	f.Feed.Port = c.Feed.Port
	f.Feed.URL = c.Feed.URL
	f.Daemon.ReplayInterval = c.Daemon.ReplayInterval.String()
	f.Daemon.DebounceInterval = c.Daemon.DebounceInterval.String()
	f.Sync.MaxAttempts = c.Sync.MaxAttempts
	f.Log.File = c.Log.File
	f.Log.MaxSizeMB = c.Log.MaxSizeMB
	f.Log.MaxBackups = c.Log.MaxBackups
	f.Log.MaxAgeDays = c.Log.MaxAgeDays
	return f
}

// WriteTOML encodes the configuration as TOML.
func (c *Config) WriteTOML(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(c.toFile()); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// WriteFile writes the configuration to path. An existing file is kept
// unless force is set.
func (c *Config) WriteFile(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmpPath := path + ".tmp"
	// #nosec G304 - controlled path from CLI
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	err = c.WriteTOML(file)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
