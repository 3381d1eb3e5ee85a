package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration
type Config struct {
	Version    int              `toml:"version"`
	Browser    BrowserConfig    `toml:"browser"`
	Extraction ExtractionConfig `toml:"extraction"`
	Watch      WatchConfig      `toml:"watch"`
	Output     OutputConfig     `toml:"output"`
}

type BrowserConfig struct {
	Headless bool `toml:"headless"`
}

type ExtractionConfig struct {
	SettleDelayMs            int  `toml:"settle_delay_ms"`
	ResolveMentionIdentities bool `toml:"resolve_mention_identities"`
	AuthenticatedPass        bool `toml:"authenticated_pass"`
	DeauthenticatedPass      bool `toml:"deauthenticated_pass"`
}

type WatchConfig struct {
	Posts         []string `toml:"posts"`
	IntervalHours int      `toml:"interval_hours"`
	Timezone      string   `toml:"timezone"`
}

type OutputConfig struct {
	Dir string `toml:"dir"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Browser: BrowserConfig{
			Headless: true,
		},
		Extraction: ExtractionConfig{
			SettleDelayMs:            250,
			ResolveMentionIdentities: false,
			AuthenticatedPass:        true,
			DeauthenticatedPass:      false,
		},
		Watch: WatchConfig{
			Posts:         []string{},
			IntervalHours: 6,
			Timezone:      "UTC",
		},
	}
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "fbgrab"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the platform-appropriate cache directory
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "fbgrab"), nil
}

// OutputDir returns the configured output directory, defaulting to the cache dir.
func (c *Config) OutputDir() (string, error) {
	if c.Output.Dir != "" {
		return c.Output.Dir, nil
	}
	return CacheDir()
}

// Load reads config from disk
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
