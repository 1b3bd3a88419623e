package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, info, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Empty(t, info.Path)
	assert.True(t, info.PasswordDefault)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9000

[workbook]
path = "/data/summary.xlsx"
layout = "v1"

[refresh]
hour = 5
`)
	t.Setenv("UPDATE_HOUR", "7")
	t.Setenv("SUMMARY_SHEET", "스타일수 기준")
	t.Setenv("DASHBOARD_PASSWORD", "secret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, info, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, info.Path)
	assert.False(t, info.PasswordDefault)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "/data/summary.xlsx", cfg.Workbook.Path)
	assert.Equal(t, "v1", cfg.Workbook.Layout)
	assert.Equal(t, 7, cfg.Refresh.Hour)
	assert.Equal(t, "스타일수 기준", cfg.Workbook.Sheet)
	assert.Equal(t, "secret", cfg.Auth.Password)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	// 未设置的项保持默认
	assert.Equal(t, 48, cfg.Workbook.DefaultWeek1)
	assert.Equal(t, 3600, cfg.Sync.IntervalSeconds)
}

func TestLoad_InvalidToml(t *testing.T) {
	path := writeConfig(t, "[server\nport = ")
	_, _, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	path := writeConfig(t, "[refresh]\nhour = 25\n")
	_, _, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh.hour")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultConfig().Validate())

	cases := map[string]func(*AppConfig){
		"empty path":  func(c *AppConfig) { c.Workbook.Path = " " },
		"layout":      func(c *AppConfig) { c.Workbook.Layout = "v3" },
		"week":        func(c *AppConfig) { c.Workbook.DefaultWeek2 = 61 },
		"minute":      func(c *AppConfig) { c.Refresh.Minute = 60 },
		"sync":        func(c *AppConfig) { c.Sync.IntervalSeconds = 0 },
		"port":        func(c *AppConfig) { c.Server.Port = 0 },
		"no password": func(c *AppConfig) { c.Auth.Password = "" },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestPollInterval(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Refresh.PollIntervalSeconds = 7200
	assert.Equal(t, time.Hour, cfg.PollInterval())

	cfg.Sync.URL = "https://onedrive.live.com/embed?x=1"
	cfg.Sync.IntervalSeconds = 600
	assert.Equal(t, 10*time.Minute, cfg.PollInterval())
}

func TestSave_RoundTripWithoutPassword(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Server.Port = 8123
	cfg.Auth.Password = "secret"
	path := filepath.Join(t.TempDir(), "out", "config.toml")
	require.NoError(t, Save(cfg, path))
	assert.Equal(t, "secret", cfg.Auth.Password)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.Contains(t, string(data), "8123")
}
