// Package pipeline implements the four brewery pipeline stages:
//
//	Extract            API pages       -> bronze raw snapshot (JSON)
//	Convert            raw snapshot    -> bronze table (CSV + schema sidecar)
//	CleanAndPartition  bronze table    -> silver units (Parquet per state)
//	Aggregate          silver units    -> gold aggregate (Parquet)
//
// Stages share nothing in memory. Each reads only the committed artifact of
// its predecessor, fully rewrites its own output, and returns a
// stage.Result instead of an error.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/rs/zerolog"

	"github.com/lucasllimati/Projeto-AB-InBev/pkg/client"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/columnar"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/config"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/lake"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/logging"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/pagination"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/runstate"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/stage"
)

// Ledger records stage results and serializes runs of the same stage.
// *runstate.Store implements it.
type Ledger interface {
	Record(ctx context.Context, res stage.Result) error
	Acquire(ctx context.Context, name stage.Name, ttl time.Duration) (runstate.ReleaseFunc, error)
}

// Pipeline runs the stages against one configuration.
type Pipeline struct {
	cfg     config.Config
	layout  lake.Layout
	fetcher pagination.PageFetcher
	codec   *columnar.Codec
	ledger  Ledger
	logger  zerolog.Logger
	now     func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithFetcher replaces the API client used by Extract.
func WithFetcher(f pagination.PageFetcher) Option {
	return func(p *Pipeline) { p.fetcher = f }
}

// WithLedger records every stage result and takes the stage lock around
// each run.
func WithLedger(l Ledger) Option {
	return func(p *Pipeline) { p.ledger = l }
}

// WithLogger sets the base logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock sets the clock used for manifest timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New validates cfg and builds a pipeline. Without WithFetcher the brewery
// API client is built from cfg.
func New(cfg config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	p := &Pipeline{
		cfg:    cfg,
		layout: cfg.Layout(),
		codec:  columnar.New(nil),
		logger: logging.NewLogger("pipeline"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.fetcher == nil {
		c, err := client.New(cfg.Client())
		if err != nil {
			return nil, fmt.Errorf("create client: %w", err)
		}
		p.fetcher = c
	}
	return p, nil
}

// Layout returns the artifact layout the pipeline writes to.
func (p *Pipeline) Layout() lake.Layout { return p.layout }

// Run executes one stage by name.
func (p *Pipeline) Run(ctx context.Context, name stage.Name) (stage.Result, error) {
	switch name {
	case stage.Extract:
		return p.Extract(ctx), nil
	case stage.Convert:
		return p.Convert(ctx), nil
	case stage.Clean:
		return p.CleanAndPartition(ctx), nil
	case stage.Aggregate:
		return p.Aggregate(ctx), nil
	default:
		return stage.Result{}, fmt.Errorf("unknown stage %q", name)
	}
}

// RunAll executes every stage in order and stops after the first failure.
// It returns the results of the stages that ran.
func (p *Pipeline) RunAll(ctx context.Context) []stage.Result {
	var results []stage.Result
	for _, name := range stage.Order {
		res, _ := p.Run(ctx, name)
		results = append(results, res)
		if !res.OK() {
			p.logger.Error().
				Str("stage", string(name)).
				Str("error_class", string(res.Class)).
				Msg("Pipeline stopped at failed stage")
			break
		}
	}
	return results
}

// run wraps body in the stage boundary, the stage lock and the ledger.
func (p *Pipeline) run(ctx context.Context, name stage.Name, body stage.Body) stage.Result {
	locked := body
	if p.ledger != nil {
		locked = func(ctx context.Context, log zerolog.Logger) (stage.Outcome, error) {
			release, err := p.ledger.Acquire(ctx, name, time.Duration(p.cfg.Redis.LockTTL))
			if err != nil {
				return stage.Outcome{}, stage.Internal(err)
			}
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					log.Warn().Err(err).Msg("Failed to release stage lock")
				}
			}()
			return body(ctx, log)
		}
	}

	res := stage.Run(ctx, name, p.logger, locked)

	if p.ledger != nil {
		if err := p.ledger.Record(context.WithoutCancel(ctx), res); err != nil {
			p.logger.Warn().Err(err).Str("stage", string(name)).Msg("Failed to record stage result")
		}
	}
	return res
}

// missing classifies an open error on an upstream artifact.
func missing(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return stage.Integrity(fmt.Errorf("%w: %s", stage.ErrMissingArtifact, path))
	}
	return stage.Integrity(fmt.Errorf("open %s: %w", path, err))
}

// invalid classifies a parse error on an upstream artifact.
func invalid(path string, err error) error {
	return stage.Integrity(fmt.Errorf("%w: %s: %w", stage.ErrInvalidArtifact, path, err))
}
