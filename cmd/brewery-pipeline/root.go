package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lucasllimati/Projeto-AB-InBev/pkg/config"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/logging"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/pipeline"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/runstate"
)

// app carries the state shared by every subcommand of one invocation.
type app struct {
	configPath string
	dataDir    string
	baseURL    string
	scope      string
	logLevel   string
	logPretty  bool
	logFile    string
	redisAddr  string

	cfg       config.Config
	logger    zerolog.Logger
	logCloser io.Closer
	redis     *redis.Client
	ledger    *runstate.Store
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "brewery-pipeline",
		Short: "Batch pipeline from the Open Brewery DB to per-state aggregates",
		Long: `brewery-pipeline extracts every brewery from the Open Brewery DB API,
converts the raw snapshot into a typed table, cleans and partitions it by
state, and aggregates brewery counts per type and state.

Stages read only the committed output of the previous stage under the data
directory (bronze, silver, gold) and can be run one at a time.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "TOML config file")
	flags.StringVar(&a.dataDir, "data-dir", "", "root of the bronze/silver/gold layout")
	flags.StringVar(&a.baseURL, "api-url", "", "brewery API base URL")
	flags.StringVar(&a.scope, "scope", "", `aggregate scope: "all" or "current_run"`)
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&a.logPretty, "log-pretty", false, "human-readable log output")
	flags.StringVar(&a.logFile, "log-file", "", "append JSON logs to this file")
	flags.StringVar(&a.redisAddr, "redis-addr", "", "Redis address of the run ledger (empty disables it)")

	for _, name := range stageNames {
		root.AddCommand(newStageCmd(a, name))
	}
	root.AddCommand(
		newRunCmd(a),
		newLookupCmd(a),
		newScheduleCmd(a),
		newStatusCmd(a),
		newConfigCmd(a),
	)
	return root
}

// setup loads the configuration, applies flags over it and connects the
// ledger when one is configured.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = a.dataDir
	}
	if flags.Changed("api-url") {
		cfg.API.BaseURL = a.baseURL
	}
	if flags.Changed("scope") {
		cfg.AggregateScope = config.AggregateScope(a.scope)
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-pretty") {
		cfg.Log.Pretty = a.logPretty
	}
	if flags.Changed("log-file") {
		cfg.Log.File = a.logFile
	}
	if flags.Changed("redis-addr") {
		cfg.Redis.Addr = a.redisAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logCfg := cfg.Logging()
	logCfg.Output = cmd.ErrOrStderr()
	logger, closer, err := logging.SetupWithFile(logCfg)
	if err != nil {
		return err
	}
	a.logger = logger.With().Str("component", "cli").Logger()
	a.logCloser = closer

	if cfg.Redis.Addr == "" {
		return nil
	}
	a.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	if err := a.redis.Ping(ctx).Err(); err != nil {
		a.logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Run ledger unavailable, continuing without it")
		a.redis.Close()
		a.redis = nil
		return nil
	}
	a.ledger = runstate.New(a.redis, logging.NewLogger("runstate"))
	a.logger.Debug().Str("addr", cfg.Redis.Addr).Msg("Connected to run ledger")
	return nil
}

func (a *app) teardown() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	return errors.Join(errs...)
}

func (a *app) pipeline() (*pipeline.Pipeline, error) {
	opts := []pipeline.Option{pipeline.WithLogger(a.logger)}
	if a.ledger != nil {
		opts = append(opts, pipeline.WithLedger(a.ledger))
	}
	p, err := pipeline.New(a.cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}
	return p, nil
}
