package config

import (
	"fmt"
	"strconv"
	"time"
)

// Environment variables read by ApplyEnv.
const (
	EnvDataDir        = "BREWERY_DATA_DIR"
	EnvAggregateScope = "BREWERY_AGGREGATE_SCOPE"
	EnvBaseURL        = "BREWERY_API_BASE_URL"
	EnvUserAgent      = "BREWERY_USER_AGENT"
	EnvPerPage        = "BREWERY_PER_PAGE"
	EnvMaxPages       = "BREWERY_MAX_PAGES"
	EnvTimeout        = "BREWERY_API_TIMEOUT"
	EnvRPS            = "BREWERY_REQUESTS_PER_SECOND"
	EnvLogLevel       = "BREWERY_LOG_LEVEL"
	EnvLogPretty      = "BREWERY_LOG_PRETTY"
	EnvLogFile        = "BREWERY_LOG_FILE"
	EnvRedisAddr      = "BREWERY_REDIS_ADDR"
	EnvRedisPassword  = "BREWERY_REDIS_PASSWORD"
	EnvRedisDB        = "BREWERY_REDIS_DB"
	EnvCron           = "BREWERY_SCHEDULE"
	EnvRetries        = "BREWERY_RETRIES"
	EnvMetricsAddr    = "BREWERY_METRICS_ADDR"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides fields from set, non-empty environment variables.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		return v, ok && v != ""
	}

	strs := map[string]*string{
		EnvDataDir:       &c.DataDir,
		EnvBaseURL:       &c.API.BaseURL,
		EnvUserAgent:     &c.API.UserAgent,
		EnvLogLevel:      &c.Log.Level,
		EnvLogFile:       &c.Log.File,
		EnvRedisAddr:     &c.Redis.Addr,
		EnvRedisPassword: &c.Redis.Password,
		EnvCron:          &c.Schedule.Cron,
		EnvMetricsAddr:   &c.Metrics.Addr,
	}
	for key, dst := range strs {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	if v, ok := get(EnvAggregateScope); ok {
		c.AggregateScope = AggregateScope(v)
	}

	ints := map[string]*int{
		EnvPerPage:  &c.API.PerPage,
		EnvMaxPages: &c.API.MaxPages,
		EnvRedisDB:  &c.Redis.DB,
		EnvRetries:  &c.Schedule.Retries,
	}
	for key, dst := range ints {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	if v, ok := get(EnvTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.API.Timeout = Duration(d)
	}
	if v, ok := get(EnvRPS); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRPS, err)
		}
		c.API.RequestsPerSecond = f
	}
	if v, ok := get(EnvLogPretty); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLogPretty, err)
		}
		c.Log.Pretty = b
	}
	return nil
}
