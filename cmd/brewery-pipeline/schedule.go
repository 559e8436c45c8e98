package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucasllimati/Projeto-AB-InBev/pkg/metrics"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/schedule"
)

func newScheduleCmd(a *app) *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on the configured cron schedule",
		Long: `schedule runs every stage on the cron expression from the config
(default daily at 09:00), retrying failed stages with backoff, and serves
/metrics and /health until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, err := a.pipeline()
			if err != nil {
				return err
			}
			sched, err := schedule.New(p, a.cfg.Scheduler(), a.logger)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              a.cfg.Metrics.Addr,
				Handler:           newMetricsMux(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			srvErr := make(chan error, 1)
			go func() {
				a.logger.Info().Str("addr", srv.Addr).Msg("Serving metrics")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					srvErr <- err
				}
			}()

			if err := sched.Start(ctx); err != nil {
				return err
			}
			a.logger.Info().Time("next_run", sched.Next()).Msg("Waiting for next scheduled run")

			if runNow {
				go func() {
					if _, err := sched.RunOnce(ctx); err != nil {
						a.logger.Warn().Err(err).Msg("Immediate run skipped")
					}
				}()
			}

			select {
			case <-ctx.Done():
				a.logger.Info().Msg("Shutting down")
			case err := <-srvErr:
				a.logger.Error().Err(err).Msg("Metrics server failed")
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn().Err(err).Msg("Metrics server shutdown")
			}
			if err := sched.Stop(shutdownCtx); err != nil {
				return fmt.Errorf("stop scheduler: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&runNow, "now", false, "also run the pipeline once immediately")
	return cmd
}

func newMetricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", healthHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}
