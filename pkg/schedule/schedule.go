// Package schedule runs the pipeline on a cron schedule and retries failed
// stages with exponential backoff.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/lucasllimati/Projeto-AB-InBev/pkg/stage"
)

// Prometheus metrics for scheduled runs.
var (
	scheduleRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brewery_schedule_runs_total",
		Help: "Total scheduled pipeline runs by outcome",
	}, []string{"outcome"})

	scheduleRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brewery_schedule_retries_total",
		Help: "Total stage retries by stage",
	}, []string{"stage"})

	scheduleRetryBackoff = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "brewery_schedule_retry_backoff_seconds",
		Help:    "Backoff before a stage retry in seconds",
		Buckets: []float64{1, 10, 60, 300, 900, 1800},
	})

	scheduleSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brewery_schedule_overlaps_total",
		Help: "Total runs skipped because the previous run was still going",
	})
)

// ErrBusy is returned when a run is requested while another is in progress.
var ErrBusy = errors.New("pipeline run already in progress")

// Runner executes one stage. *pipeline.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, name stage.Name) (stage.Result, error)
}

// Config holds the schedule and retry policy.
type Config struct {
	// Cron is a standard five-field cron expression.
	Cron string

	// Retries is how many times a failed stage is run again.
	Retries int

	// RetryDelay is the backoff before the first retry. It doubles for each
	// further retry.
	RetryDelay time.Duration

	// MaxRetryDelay caps the backoff.
	MaxRetryDelay time.Duration
}

// DefaultConfig returns a daily run at 09:00 with one retry after five
// minutes.
func DefaultConfig() Config {
	return Config{
		Cron:          "0 9 * * *",
		Retries:       1,
		RetryDelay:    5 * time.Minute,
		MaxRetryDelay: 30 * time.Minute,
	}
}

// Scheduler runs the stages in order, one run at a time.
type Scheduler struct {
	runner Runner
	config Config
	logger zerolog.Logger
	cron   *cron.Cron

	running sync.Mutex
	sleep   func(ctx context.Context, d time.Duration) error
}

// New validates config and builds a scheduler.
func New(runner Runner, config Config, logger zerolog.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if _, err := cron.ParseStandard(config.Cron); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", config.Cron, err)
	}
	if config.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0 (got %d)", config.Retries)
	}
	if config.Retries > 0 && config.RetryDelay <= 0 {
		return nil, fmt.Errorf("retry delay must be > 0 (got %s)", config.RetryDelay)
	}
	if config.MaxRetryDelay < config.RetryDelay {
		config.MaxRetryDelay = config.RetryDelay
	}

	return &Scheduler{
		runner: runner,
		config: config,
		logger: logger.With().Str("component", "schedule").Logger(),
		sleep:  sleepContext,
	}, nil
}

// RunOnce runs every stage in order, retrying a failed stage up to the
// configured number of times, and stops at the first stage that still
// fails. It returns ErrBusy without running anything when another run is in
// progress.
func (s *Scheduler) RunOnce(ctx context.Context) ([]stage.Result, error) {
	if !s.running.TryLock() {
		scheduleSkippedTotal.Inc()
		return nil, ErrBusy
	}
	defer s.running.Unlock()

	started := time.Now()
	results := make([]stage.Result, 0, len(stage.Order))
	for _, name := range stage.Order {
		res, err := s.runStage(ctx, name)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		if !res.OK() {
			scheduleRunsTotal.WithLabelValues("failed").Inc()
			s.logger.Error().
				Str("stage", string(name)).
				Str("error_class", string(res.Class)).
				Dur("duration", time.Since(started)).
				Msg("Scheduled run failed")
			return results, nil
		}
	}

	scheduleRunsTotal.WithLabelValues("success").Inc()
	s.logger.Info().Dur("duration", time.Since(started)).Msg("Scheduled run completed")
	return results, nil
}

func (s *Scheduler) runStage(ctx context.Context, name stage.Name) (stage.Result, error) {
	backoff := s.config.RetryDelay
	for attempt := 1; ; attempt++ {
		res, err := s.runner.Run(ctx, name)
		if err != nil {
			return res, err
		}
		if res.OK() || attempt > s.config.Retries {
			return res, nil
		}

		scheduleRetriesTotal.WithLabelValues(string(name)).Inc()

		// ±20% jitter
		wait := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		scheduleRetryBackoff.Observe(wait.Seconds())
		s.logger.Warn().
			Str("stage", string(name)).
			Str("error_class", string(res.Class)).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying stage after backoff")

		if err := s.sleep(ctx, wait); err != nil {
			return res, nil
		}

		backoff *= 2
		if backoff > s.config.MaxRetryDelay {
			backoff = s.config.MaxRetryDelay
		}
	}
}

// Start registers the run on the cron schedule and starts the cron loop.
// Runs triggered while a previous run is still going are skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New(
		cron.WithLogger(cronLogger{s.logger}),
		cron.WithChain(cron.Recover(cronLogger{s.logger})),
	)
	_, err := c.AddFunc(s.config.Cron, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Scheduled run skipped")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", s.config.Cron, err)
	}

	s.cron = c
	c.Start()
	s.logger.Info().Str("cron", s.config.Cron).Msg("Scheduler started")
	return nil
}

// Next returns the next scheduled run time, or the zero time when the
// scheduler is not started.
func (s *Scheduler) Next() time.Time {
	if s.cron == nil {
		return time.Time{}
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop stops the cron loop and waits for a running pipeline to finish or
// for ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info().Msg("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
