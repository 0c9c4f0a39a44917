package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Streak fallback policies for habits the backend has no streak for.
const (
	StreakFallbackPlaceholder = "placeholder"
	StreakFallbackUnavailable = "unavailable"
)

// APIConfig holds connection settings for the tracking service.
type APIConfig struct {
	// BaseURL is the root of the REST API (e.g., http://localhost:8080/api).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds every request, including mutations.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// CacheConfig holds per-view staleness thresholds in seconds.
type CacheConfig struct {
	StaleSec map[string]int `mapstructure:"stale_sec" yaml:"stale_sec"`
}

// RefreshConfig controls the background refresher.
type RefreshConfig struct {
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme          string `mapstructure:"theme" yaml:"theme"`
	StreakFallback string `mapstructure:"streak_fallback" yaml:"streak_fallback"`
}

// StorageConfig locates the local database.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Refresh RefreshConfig `mapstructure:"refresh" yaml:"refresh"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
}

// Timeout returns the API timeout as a duration.
func (c *AppConfig) Timeout() time.Duration {
	if c.API.TimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.API.TimeoutSec) * time.Second
}

// RefreshInterval returns the background refresh interval.
func (c *AppConfig) RefreshInterval() time.Duration {
	if c.Refresh.IntervalSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Refresh.IntervalSec) * time.Second
}

// StaleTimes converts the configured thresholds to durations keyed by
// cache-key prefix ("tasks", "tasks/by-date", ...).
func (c *AppConfig) StaleTimes() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.Cache.StaleSec))
	for k, v := range c.Cache.StaleSec {
		out[k] = time.Duration(v) * time.Second
	}
	return out
}

// ConfigDir returns ~/.config/habitboard, or the working directory when
// the home directory cannot be determined.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "habitboard")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/habitboard/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

func defaultStaleSec() map[string]int {
	return map[string]int{
		"tasks":          30,
		"tasks/by-date":  10,
		"tasks/calendar": 30,
		"tasks/streaks":  60,
		"stats":          300,
		"profile":        300,
	}
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL:    "http://localhost:8080/api",
			TimeoutSec: 10,
		},
		Cache:   CacheConfig{StaleSec: defaultStaleSec()},
		Refresh: RefreshConfig{IntervalSec: 15},
		Display: DisplayConfig{
			Theme:          "default",
			StreakFallback: StreakFallbackPlaceholder,
		},
		Storage: StorageConfig{
			DBPath: filepath.Join(ConfigDir(), "habitboard.db"),
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A .env file in the working directory is loaded first, and HABITBOARD_*
// environment variables override file values (api.base_url becomes
// HABITBOARD_API_BASE_URL). If the file does not exist, defaults are used.
func LoadConfig(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("habitboard")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultAppConfig()
	v.SetDefault("api.base_url", def.API.BaseURL)
	v.SetDefault("api.timeout_sec", def.API.TimeoutSec)
	v.SetDefault("refresh.interval_sec", def.Refresh.IntervalSec)
	v.SetDefault("display.theme", def.Display.Theme)
	v.SetDefault("display.streak_fallback", def.Display.StreakFallback)
	v.SetDefault("storage.db_path", def.Storage.DBPath)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Partial stale_sec maps from the file replace the whole map; put the
	// missing prefixes back.
	for k, sec := range defaultStaleSec() {
		if _, ok := cfg.Cache.StaleSec[k]; !ok {
			if cfg.Cache.StaleSec == nil {
				cfg.Cache.StaleSec = make(map[string]int)
			}
			cfg.Cache.StaleSec[k] = sec
		}
	}

	switch cfg.Display.StreakFallback {
	case StreakFallbackPlaceholder, StreakFallbackUnavailable:
	default:
		return nil, fmt.Errorf(
			"invalid display.streak_fallback %q: use %q or %q",
			cfg.Display.StreakFallback,
			StreakFallbackPlaceholder, StreakFallbackUnavailable,
		)
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
	v.Set("cache", cfg.Cache)
	v.Set("refresh", cfg.Refresh)
	v.Set("display", cfg.Display)
	v.Set("storage", cfg.Storage)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
