package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mgomes/launchr/internal/fsutil"
)

const (
	defaultLogLevel       = "info"
	defaultCommandTimeout = 10
	defaultIconSize       = 128
	defaultIconParallel   = 8
)

var defaultApplicationFolders = []string{"/System/Applications/", "/Applications/"}

// Config holds process-level knobs. User-facing preferences live in the
// settings store instead.
type Config struct {
	UserDataDir           string   `json:"user_data_dir"`
	LogLevel              string   `json:"log_level"`
	CommandTimeoutSeconds int      `json:"command_timeout_seconds"`
	IconParallelism       int      `json:"icon_parallelism"`
	IconSize              int      `json:"icon_size"`
	ApplicationFolders    []string `json:"application_folders"`
	CustomEntriesPath     string   `json:"custom_entries_path"`
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "launchr"), nil
}

func configPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

func DBPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "launchr.db"), nil
}

func LogPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "launchr.log"), nil
}

func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return defaultConfig()
	}
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Save() error {
	path, err := configPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	data = append(data, '\n')
	return fsutil.WriteFileAtomic(path, data, 0600)
}

// ApplyDefaults fills every zero field.
func (c *Config) ApplyDefaults() error {
	if c.UserDataDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return err
		}
		c.UserDataDir = filepath.Join(dir, "data")
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.CommandTimeoutSeconds <= 0 {
		c.CommandTimeoutSeconds = defaultCommandTimeout
	}
	if c.IconParallelism <= 0 {
		c.IconParallelism = defaultIconParallel
	}
	if c.IconSize == 0 {
		c.IconSize = defaultIconSize
	}
	if len(c.ApplicationFolders) == 0 {
		c.ApplicationFolders = append([]string(nil), defaultApplicationFolders...)
	}
	if c.CustomEntriesPath == "" {
		dir, err := ConfigDir()
		if err != nil {
			return err
		}
		c.CustomEntriesPath = filepath.Join(dir, "entries.yaml")
	}
	return nil
}

func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}

// IconScale is the longest icon edge in pixels, or 0 when a negative
// icon_size turned scaling off.
func (c *Config) IconScale() int {
	return max(0, c.IconSize)
}

func defaultConfig() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}
