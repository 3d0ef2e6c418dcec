// Package config loads mentalmath's YAML configuration and applies
// MENTALMATH_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level structure of config.yaml.
type Config struct {
	LogLevel string         `yaml:"log_level"` // "debug" | "info" | "warn" | "error"
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Telegram TelegramConfig `yaml:"telegram"`
	Bot      BotConfig      `yaml:"bot"`
	Session  SessionConfig  `yaml:"session"`
}

// DatabaseConfig selects the progress database.
type DatabaseConfig struct {
	// DSN is a postgres:// URL or a SQLite file path. Empty means the
	// default SQLite file under the user's data directory.
	DSN string `yaml:"dsn"`
}

// RedisConfig configures the leaderboard cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TelegramConfig configures the Bot API client.
type TelegramConfig struct {
	Token          string `yaml:"token"`
	BaseURL        string `yaml:"base_url"`
	PollTimeout    int    `yaml:"poll_timeout"`    // seconds
	RequestTimeout int    `yaml:"request_timeout"` // seconds, on top of the poll timeout
	RetryAttempts  int    `yaml:"retry_attempts"`
}

// BotConfig tunes update handling.
type BotConfig struct {
	MaxConcurrent    int `yaml:"max_concurrent"`
	LeaderboardLimit int `yaml:"leaderboard_limit"`
	ErrorBackoff     int `yaml:"error_backoff"` // seconds
}

// SessionConfig tunes the session engine.
type SessionConfig struct {
	StoreTimeout int `yaml:"store_timeout"` // seconds
}

const (
	appDir     = "mentalmath"
	configFile = "config.yaml"

	maxPollTimeout = 50
)

// ErrMissingToken is returned by ValidateBot when no bot token is set.
var ErrMissingToken = errors.New("telegram token is not set (telegram.token or MENTALMATH_TELEGRAM_TOKEN)")

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Telegram: TelegramConfig{
			BaseURL:        "https://api.telegram.org",
			PollTimeout:    30,
			RequestTimeout: 10,
			RetryAttempts:  3,
		},
		Bot: BotConfig{
			MaxConcurrent:    64,
			LeaderboardLimit: 10,
			ErrorBackoff:     5,
		},
		Session: SessionConfig{
			StoreTimeout: 10,
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/mentalmath/config.yaml, falling back
// to ~/.config.
func DefaultPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, appDir, configFile), nil
}

// Load builds the effective configuration: defaults, then the YAML file,
// then environment variables. An explicit path must exist; the default
// path is optional.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if err := cfg.readFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// Write saves cfg to path, creating the directory if needed.
func Write(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	// The file may hold the bot token.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ApplyEnv overlays MENTALMATH_* variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %q is not a number", name, v)
		}
		*dst = n
		return nil
	}

	// TELEGRAM_BOT_TOKEN is the name most hosting guides use.
	str("TELEGRAM_BOT_TOKEN", &c.Telegram.Token)
	str("MENTALMATH_TELEGRAM_TOKEN", &c.Telegram.Token)
	str("MENTALMATH_TELEGRAM_BASE_URL", &c.Telegram.BaseURL)
	str("MENTALMATH_DB", &c.Database.DSN)
	str("MENTALMATH_REDIS_ADDR", &c.Redis.Addr)
	str("MENTALMATH_REDIS_PASSWORD", &c.Redis.Password)
	str("MENTALMATH_LOG_LEVEL", &c.LogLevel)

	return errors.Join(
		num("MENTALMATH_REDIS_DB", &c.Redis.DB),
		num("MENTALMATH_TELEGRAM_POLL_TIMEOUT", &c.Telegram.PollTimeout),
		num("MENTALMATH_BOT_MAX_CONCURRENT", &c.Bot.MaxConcurrent),
	)
}

// Validate checks values that apply to every command.
func (c *Config) Validate() error {
	var errs []error
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("redis.db must not be negative, got %d", c.Redis.DB))
	}
	if c.Session.StoreTimeout <= 0 {
		errs = append(errs, fmt.Errorf("session.store_timeout must be positive, got %d", c.Session.StoreTimeout))
	}
	return errors.Join(errs...)
}

// ValidateBot checks the settings the Telegram bot needs on top of Validate.
func (c *Config) ValidateBot() error {
	errs := []error{c.Validate()}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		errs = append(errs, ErrMissingToken)
	}
	if !strings.HasPrefix(c.Telegram.BaseURL, "http://") && !strings.HasPrefix(c.Telegram.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("telegram.base_url must be an http(s) URL, got %q", c.Telegram.BaseURL))
	}
	if c.Telegram.PollTimeout < 1 || c.Telegram.PollTimeout > maxPollTimeout {
		errs = append(errs, fmt.Errorf("telegram.poll_timeout must be between 1 and %d, got %d", maxPollTimeout, c.Telegram.PollTimeout))
	}
	if c.Telegram.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("telegram.request_timeout must be positive, got %d", c.Telegram.RequestTimeout))
	}
	if c.Telegram.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("telegram.retry_attempts must be at least 1, got %d", c.Telegram.RetryAttempts))
	}
	if c.Bot.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("bot.max_concurrent must be at least 1, got %d", c.Bot.MaxConcurrent))
	}
	if c.Bot.LeaderboardLimit < 1 {
		errs = append(errs, fmt.Errorf("bot.leaderboard_limit must be at least 1, got %d", c.Bot.LeaderboardLimit))
	}
	return errors.Join(errs...)
}

// ParseLevel maps a log level name to its slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
