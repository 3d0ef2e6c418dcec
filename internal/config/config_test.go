package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.ErrorIs(t, cfg.ValidateBot(), ErrMissingToken)

	cfg.Telegram.Token = "123:abc"
	assert.NoError(t, cfg.ValidateBot())
}

func TestWriteThenLoad(t *testing.T) {
	t.Setenv("MENTALMATH_TELEGRAM_TOKEN", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Telegram.Token = "123:abc"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Bot.LeaderboardLimit = 25
	require.NoError(t, Write(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "123:abc", loaded.Telegram.Token)
	assert.Equal(t, "localhost:6379", loaded.Redis.Addr)
	assert.Equal(t, 25, loaded.Bot.LeaderboardLimit)
	assert.Equal(t, 30, loaded.Telegram.PollTimeout)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\ntelegram:\n  poll_timeout: 5\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5, cfg.Telegram.PollTimeout)
	assert.Equal(t, "https://api.telegram.org", cfg.Telegram.BaseURL)
	assert.Equal(t, 64, cfg.Bot.MaxConcurrent)
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_DefaultPathIsOptional(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Telegram.PollTimeout)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("telegram: [oops"), 0o600))
	_, err := Load(path)
	assert.ErrorContains(t, err, "parsing config")
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"TELEGRAM_BOT_TOKEN":               "generic",
		"MENTALMATH_TELEGRAM_TOKEN":        "specific",
		"MENTALMATH_DB":                    "postgres://localhost/mm",
		"MENTALMATH_REDIS_ADDR":            "redis:6379",
		"MENTALMATH_REDIS_DB":              "2",
		"MENTALMATH_TELEGRAM_POLL_TIMEOUT": "15",
		"MENTALMATH_LOG_LEVEL":             "",
	}))
	require.NoError(t, err)
	assert.Equal(t, "specific", cfg.Telegram.Token, "prefixed variable wins")
	assert.Equal(t, "postgres://localhost/mm", cfg.Database.DSN)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 15, cfg.Telegram.PollTimeout)
	assert.Equal(t, "info", cfg.LogLevel, "empty variables are ignored")
}

func TestApplyEnv_BadNumber(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{"MENTALMATH_REDIS_DB": "two"}))
	assert.ErrorContains(t, err, "MENTALMATH_REDIS_DB")
	assert.Equal(t, 0, cfg.Redis.DB)
}

func TestValidateBot_ReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Telegram.Token = "123:abc"
	cfg.Telegram.BaseURL = "api.telegram.org"
	cfg.Telegram.PollTimeout = 90
	cfg.Bot.MaxConcurrent = 0
	cfg.LogLevel = "loud"

	err := cfg.ValidateBot()
	require.Error(t, err)
	for _, want := range []string{"base_url", "poll_timeout", "max_concurrent", "unknown log level"} {
		assert.ErrorContains(t, err, want)
	}
	assert.NotErrorIs(t, err, ErrMissingToken)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}
