// Package config holds the single immutable configuration passed to every
// pipeline stage.
//
// Values come from DefaultConfig, then an optional TOML file, then
// BREWERY_* environment variables; the CLI applies its flags last.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"

	"github.com/lucasllimati/Projeto-AB-InBev/pkg/client"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/lake"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/logging"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/pagination"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/schedule"
)

// AggregateScope selects which partition units the aggregator reads.
type AggregateScope string

const (
	// ScopeAll reads every unit present in the silver directory, including
	// units left over from earlier runs.
	ScopeAll AggregateScope = "all"

	// ScopeCurrentRun reads only the units listed in the last clean run's
	// manifest.
	ScopeCurrentRun AggregateScope = "current_run"
)

// Duration is a time.Duration written as a Go duration string in TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the full pipeline configuration.
type Config struct {
	// DataDir is the root of the bronze/silver/gold layout.
	DataDir string `toml:"data_dir"`

	// AggregateScope is "all" or "current_run".
	AggregateScope AggregateScope `toml:"aggregate_scope"`

	API      APIConfig      `toml:"api"`
	Log      LogConfig      `toml:"log"`
	Redis    RedisConfig    `toml:"redis"`
	Schedule ScheduleConfig `toml:"schedule"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// APIConfig configures the source API and the page walk.
type APIConfig struct {
	BaseURL           string   `toml:"base_url"`
	UserAgent         string   `toml:"user_agent"`
	PerPage           int      `toml:"per_page"`
	MaxPages          int      `toml:"max_pages"`
	Timeout           Duration `toml:"timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
}

// LogConfig configures the diagnostic log stream.
type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
	File   string `toml:"file"`
}

// RedisConfig configures the optional run ledger. An empty Addr disables it.
type RedisConfig struct {
	Addr     string   `toml:"addr"`
	Password string   `toml:"password"`
	DB       int      `toml:"db"`
	LockTTL  Duration `toml:"lock_ttl"`

	// CacheLookups keeps single-brewery lookups in Redis. CacheRetain is how
	// long a stale entry is kept for conditional revalidation.
	CacheLookups bool     `toml:"cache_lookups"`
	CacheRetain  Duration `toml:"cache_retain"`
}

// ScheduleConfig configures the built-in scheduler.
type ScheduleConfig struct {
	Cron          string   `toml:"cron"`
	Retries       int      `toml:"retries"`
	RetryDelay    Duration `toml:"retry_delay"`
	MaxRetryDelay Duration `toml:"max_retry_delay"`
}

// MetricsConfig configures the /metrics listener of the scheduler.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DataDir:        "data",
		AggregateScope: ScopeAll,
		API: APIConfig{
			BaseURL:           client.DefaultBaseURL,
			UserAgent:         "brewery-pipeline/1.0",
			PerPage:           50,
			MaxPages:          0,
			Timeout:           Duration(30 * time.Second),
			RequestsPerSecond: 5,
			Burst:             1,
		},
		Log: LogConfig{
			Level:  string(logging.LevelInfo),
			Pretty: false,
			File:   "",
		},
		Redis: RedisConfig{
			DB:           0,
			LockTTL:      Duration(30 * time.Minute),
			CacheLookups: true,
			CacheRetain:  Duration(24 * time.Hour),
		},
		Schedule: ScheduleConfig{
			Cron:          "0 9 * * *",
			Retries:       1,
			RetryDelay:    Duration(5 * time.Minute),
			MaxRetryDelay: Duration(30 * time.Minute),
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Load reads the TOML file at path over the defaults and applies the
// environment. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values no stage can work with.
func (c Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	switch c.AggregateScope {
	case ScopeAll, ScopeCurrentRun:
	default:
		errs = append(errs, fmt.Errorf("aggregate_scope must be %q or %q (got %q)", ScopeAll, ScopeCurrentRun, c.AggregateScope))
	}
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	if c.API.PerPage < 1 {
		errs = append(errs, fmt.Errorf("api.per_page must be >= 1 (got %d)", c.API.PerPage))
	}
	if c.API.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("api.max_pages must be >= 0 (got %d)", c.API.MaxPages))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be > 0"))
	}
	switch logging.LogLevel(c.Log.Level) {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if c.Redis.LockTTL <= 0 {
		errs = append(errs, errors.New("redis.lock_ttl must be > 0"))
	}
	if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
		errs = append(errs, fmt.Errorf("schedule.cron: %w", err))
	}
	if c.Schedule.Retries < 0 {
		errs = append(errs, fmt.Errorf("schedule.retries must be >= 0 (got %d)", c.Schedule.Retries))
	}

	return errors.Join(errs...)
}

// Layout returns the lake layout under DataDir.
func (c Config) Layout() lake.Layout {
	return lake.NewLayout(c.DataDir)
}

// Client returns the API client configuration.
func (c Config) Client() client.Config {
	return client.Config{
		BaseURL:           c.API.BaseURL,
		UserAgent:         c.API.UserAgent,
		Timeout:           time.Duration(c.API.Timeout),
		RequestsPerSecond: c.API.RequestsPerSecond,
		Burst:             c.API.Burst,
	}
}

// Pagination returns the page walk configuration.
func (c Config) Pagination() pagination.Config {
	p := pagination.DefaultConfig()
	p.PerPage = c.API.PerPage
	p.MaxPages = c.API.MaxPages
	return p
}

// Logging returns the logger configuration.
func (c Config) Logging() logging.Config {
	l := logging.DefaultConfig()
	l.Level = logging.LogLevel(c.Log.Level)
	l.Pretty = c.Log.Pretty
	l.File = c.Log.File
	return l
}

// Encode renders c as TOML.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

// Scheduler returns the cron schedule and retry policy.
func (c Config) Scheduler() schedule.Config {
	return schedule.Config{
		Cron:          c.Schedule.Cron,
		Retries:       c.Schedule.Retries,
		RetryDelay:    time.Duration(c.Schedule.RetryDelay),
		MaxRetryDelay: time.Duration(c.Schedule.MaxRetryDelay),
	}
}
