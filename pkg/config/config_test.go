package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ScopeAll, cfg.AggregateScope)
	assert.Equal(t, 50, cfg.API.PerPage)
	assert.Equal(t, 0, cfg.API.MaxPages)
	assert.Equal(t, Duration(30*time.Second), cfg.API.Timeout)
	assert.Equal(t, "0 9 * * *", cfg.Schedule.Cron)
	assert.Equal(t, 1, cfg.Schedule.Retries)
	assert.Empty(t, cfg.Redis.Addr, "ledger is off by default")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }, "data_dir is required"},
		{"bad scope", func(c *Config) { c.AggregateScope = "latest" }, "aggregate_scope"},
		{"zero per page", func(c *Config) { c.API.PerPage = 0 }, "api.per_page"},
		{"negative max pages", func(c *Config) { c.API.MaxPages = -1 }, "api.max_pages"},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, "api.timeout"},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad cron", func(c *Config) { c.Schedule.Cron = "every day" }, "schedule.cron"},
		{"negative retries", func(c *Config) { c.Schedule.Retries = -1 }, "schedule.retries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_TOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir = "/srv/lake"
aggregate_scope = "current_run"

[api]
per_page = 200
max_pages = 10
timeout = "5s"

[log]
level = "debug"
pretty = true

[schedule]
cron = "30 6 * * 1-5"
retries = 3
retry_delay = "1m"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/lake", cfg.DataDir)
	assert.Equal(t, ScopeCurrentRun, cfg.AggregateScope)
	assert.Equal(t, 200, cfg.API.PerPage)
	assert.Equal(t, 10, cfg.API.MaxPages)
	assert.Equal(t, Duration(5*time.Second), cfg.API.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
	assert.Equal(t, 3, cfg.Schedule.Retries)
	assert.Equal(t, Duration(time.Minute), cfg.Schedule.RetryDelay)
	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultConfig().API.BaseURL, cfg.API.BaseURL)
	assert.Equal(t, Duration(30*time.Minute), cfg.Schedule.MaxRetryDelay)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("data_dir = [unterminated"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)

	invalid := filepath.Join(t.TempDir(), "invalid.toml")
	require.NoError(t, os.WriteFile(invalid, []byte(`aggregate_scope = "everything"`), 0o644))
	_, err = Load(invalid)
	assert.ErrorContains(t, err, "aggregate_scope")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvDataDir:        "/tmp/lake",
		EnvAggregateScope: "current_run",
		EnvPerPage:        "25",
		EnvTimeout:        "2s",
		EnvRPS:            "0",
		EnvLogPretty:      "true",
		EnvRedisAddr:      "redis:6379",
		EnvRetries:        "2",
		EnvUserAgent:      "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(lookup))

	assert.Equal(t, "/tmp/lake", cfg.DataDir)
	assert.Equal(t, ScopeCurrentRun, cfg.AggregateScope)
	assert.Equal(t, 25, cfg.API.PerPage)
	assert.Equal(t, Duration(2*time.Second), cfg.API.Timeout)
	assert.Equal(t, float64(0), cfg.API.RequestsPerSecond)
	assert.True(t, cfg.Log.Pretty)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Schedule.Retries)
	assert.Equal(t, DefaultConfig().API.UserAgent, cfg.API.UserAgent, "empty values are ignored")
}

func TestApplyEnv_BadValues(t *testing.T) {
	for key, val := range map[string]string{
		EnvPerPage:   "many",
		EnvTimeout:   "soon",
		EnvRPS:       "fast",
		EnvLogPretty: "sure",
	} {
		t.Run(key, func(t *testing.T) {
			cfg := DefaultConfig()
			err := cfg.ApplyEnv(func(k string) (string, bool) {
				if k == key {
					return val, true
				}
				return "", false
			})
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestDerivedConfigs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/lake"
	cfg.API.MaxPages = 4
	cfg.Log.File = "logs/pipeline.log"

	assert.Equal(t, filepath.Join("/lake", "silver"), cfg.Layout().Silver)
	assert.Equal(t, 30*time.Second, cfg.Client().Timeout)
	assert.Equal(t, 4, cfg.Pagination().MaxPages)
	assert.Equal(t, 50, cfg.Pagination().PerPage)
	assert.Equal(t, "logs/pipeline.log", cfg.Logging().File)
	assert.Equal(t, "0 9 * * *", cfg.Scheduler().Cron)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler().RetryDelay)
}

func TestEncode_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	data, err := cfg.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), "30s")
	assert.Contains(t, string(data), "[schedule]")

	path := filepath.Join(t.TempDir(), "out.toml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	t.Setenv(EnvDataDir, "")

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
