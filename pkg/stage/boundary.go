package stage

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for stage outcomes.
var (
	stageRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brewery_stage_runs_total",
		Help: "Total stage invocations by stage and status",
	}, []string{"stage", "status"})

	stageFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brewery_stage_failures_total",
		Help: "Total stage failures by stage and error class",
	}, []string{"stage", "class"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "brewery_stage_duration_seconds",
		Help:    "Stage duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"stage"})

	stageLastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "brewery_stage_last_success_timestamp_seconds",
		Help: "Unix time of the last successful run per stage",
	}, []string{"stage"})
)

// Body is the work of one stage. It receives a logger already tagged with the
// stage name and run ID.
type Body func(ctx context.Context, logger zerolog.Logger) (Outcome, error)

// Run executes body inside an error boundary. Errors and panics are logged and
// converted into a failed Result; they never reach the caller.
func Run(ctx context.Context, name Name, logger zerolog.Logger, body Body) (res Result) {
	res = Result{
		Stage:     name,
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	stageLog := logger.With().Str("stage", string(name)).Str("run_id", res.RunID).Logger()
	stageLog.Info().Msg("Stage started")

	defer func() {
		if r := recover(); r != nil {
			res.fail(Internal(fmt.Errorf("panic: %v", r)))
			stageLog.Error().
				Str("error_class", string(res.Class)).
				Str("stack", string(debug.Stack())).
				Msgf("Stage panicked: %v", r)
		}
		res.Duration = time.Since(res.StartedAt)
		stageRunsTotal.WithLabelValues(string(name), string(res.Status)).Inc()
		stageDuration.WithLabelValues(string(name)).Observe(res.Duration.Seconds())
		if res.Status == StatusFailed {
			stageFailuresTotal.WithLabelValues(string(name), string(res.Class)).Inc()
		} else {
			stageLastSuccess.WithLabelValues(string(name)).SetToCurrentTime()
		}
	}()

	if err := ctx.Err(); err != nil {
		res.fail(Internal(err))
		stageLog.Error().Err(err).Msg("Stage not started: context done")
		return res
	}

	out, err := body(context.WithValue(ctx, runIDKey{}, res.RunID), stageLog)
	if err != nil {
		res.fail(err)
		stageLog.Error().
			Err(err).
			Str("error_class", string(res.Class)).
			Dur("duration", time.Since(res.StartedAt)).
			Msg("Stage failed")
		return res
	}

	res.Status = out.Status
	if res.Status == "" {
		res.Status = StatusSuccess
	}
	res.Message = out.Message
	res.Artifacts = out.Artifacts
	res.RowsIn = out.RowsIn
	res.RowsOut = out.RowsOut
	res.Counters = out.Counters

	event := stageLog.Info()
	if res.Status == StatusSkipped {
		event = stageLog.Warn()
	}
	event.
		Str("status", string(res.Status)).
		Int("rows_in", res.RowsIn).
		Int("rows_out", res.RowsOut).
		Strs("artifacts", res.Artifacts).
		Dur("duration", time.Since(res.StartedAt)).
		Msg("Stage finished")

	return res
}

type runIDKey struct{}

// RunID returns the run ID of the stage invocation ctx belongs to, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

func (r *Result) fail(err error) {
	r.Status = StatusFailed
	r.Class = ClassOf(err)
	r.Message = err.Error()
	r.err = err
}
