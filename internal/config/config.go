// Package config reads and writes ~/.followtrack/config.toml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Cache backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config represents the global ~/.followtrack/config.toml.
type Config struct {
	DefaultProfile string       `toml:"default_profile"`
	Sync           SyncConfig   `toml:"sync"`
	Cache          CacheConfig  `toml:"cache"`
	Source         SourceConfig `toml:"source"`
	Log            LogConfig    `toml:"log"`
}

// SyncConfig controls reconciliation and the notification feed.
type SyncConfig struct {
	Interval             Duration `toml:"interval"`
	MaxNewFollowers      int      `toml:"max_new_followers"`
	MaxUnfollowEvents    int      `toml:"max_unfollow_events"`
	MaxMutualConnections int      `toml:"max_mutual_connections"`
	Milestones           bool     `toml:"milestones"`
	// MaxNotifications caps the retained feed; 0 keeps everything.
	MaxNotifications     int      `toml:"max_notifications"`
	UndoWindow           Duration `toml:"undo_window"`
}

// CacheConfig selects the cache backend.
type CacheConfig struct {
	Backend   string   `toml:"backend"`
	RedisAddr string   `toml:"redis_addr"`
	RedisTTL  Duration `toml:"redis_ttl"`
	// Namespace defaults to the profile name when empty.
	Namespace string `toml:"namespace"`
}

// SourceConfig shapes the synthetic relationship source.
type SourceConfig struct {
	Seed      int64   `toml:"seed"`
	Followers int     `toml:"followers"`
	Following int     `toml:"following"`
	Overlap   float64 `toml:"overlap"`
	Churn     float64 `toml:"churn"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration encoded as a string like "10s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DefaultProfile: "main",
		Sync: SyncConfig{
			Interval:          Duration{15 * time.Minute},
			MaxNewFollowers:   10,
			MaxUnfollowEvents: 10,
			Milestones:        true,
			MaxNotifications:  200,
			UndoWindow:        Duration{10 * time.Second},
		},
		Cache: CacheConfig{
			Backend:   BackendSQLite,
			RedisAddr: "localhost:6379",
		},
		Source: SourceConfig{
			Seed:      1,
			Followers: 120,
			Following: 140,
			Overlap:   0.6,
			Churn:     0.05,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads config from the given path on top of Default. Returns error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate checks values that the session cannot work with.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case BackendSQLite, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Sync.MaxNewFollowers < 0 || c.Sync.MaxUnfollowEvents < 0 || c.Sync.MaxMutualConnections < 0 || c.Sync.MaxNotifications < 0 {
		return errors.New("sync limits must not be negative")
	}
	if c.Source.Churn < 0 || c.Source.Churn > 1 || c.Source.Overlap < 0 || c.Source.Overlap > 1 {
		return errors.New("source churn and overlap must be within [0, 1]")
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
