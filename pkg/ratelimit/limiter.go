// Package ratelimit paces outgoing API requests on the client side.
//
// The public brewery API publishes no rate-limit headers, so the client
// spaces its own requests with a token bucket instead of reacting to
// server-side error budgets.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request pacing.
var (
	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "brewery_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a request slot",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brewery_rate_limit_throttles_total",
		Help: "Total number of requests delayed by the rate limiter",
	})
)

// throttleThreshold is the wait above which a request counts as throttled.
const throttleThreshold = time.Millisecond

// Limiter gates requests to a fixed rate. A nil or disabled Limiter lets
// every request through.
type Limiter struct {
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// New returns a limiter allowing rps requests per second with the given
// burst. rps <= 0 disables pacing.
func New(rps float64, burst int, logger zerolog.Logger) *Limiter {
	if rps <= 0 {
		return &Limiter{logger: logger}
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}
}

// Enabled reports whether requests are paced.
func (l *Limiter) Enabled() bool {
	return l != nil && l.limiter != nil
}

// Wait blocks until a request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if !l.Enabled() {
		return nil
	}

	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	waited := time.Since(start)
	rateLimitWaitSeconds.Observe(waited.Seconds())
	if waited > throttleThreshold {
		rateLimitThrottlesTotal.Inc()
		l.logger.Debug().Dur("waited", waited).Msg("Request throttled")
	}
	return nil
}
