// Package ratelimit paces outgoing API requests with a token bucket so a
// client never exceeds the configured request rate.
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
	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rickmorty_rate_limit_waits_total",
		Help: "Total number of requests delayed by the client-side rate limiter",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rickmorty_rate_limit_wait_seconds",
		Help:    "Time requests spent waiting for a rate limiter token",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})
)

// Config holds the limiter configuration.
type Config struct {
	// RequestsPerSecond is the sustained request rate. Zero or negative disables pacing.
	RequestsPerSecond float64

	// Burst is the number of requests allowed back to back (minimum 1).
	Burst int
}

// DefaultConfig returns a polite default for the public API.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 5,
		Burst:             2,
	}
}

// Limiter gates requests on a token bucket.
type Limiter struct {
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewLimiter creates a Limiter. A non-positive rate yields an unlimited limiter.
func NewLimiter(cfg Config, logger zerolog.Logger) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return &Limiter{
			limiter: rate.NewLimiter(rate.Inf, 0),
			logger:  logger,
		}
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  logger,
	}
}

// Unlimited reports whether the limiter lets every request through immediately.
func (l *Limiter) Unlimited() bool {
	return l.limiter.Limit() == rate.Inf
}

// Wait blocks until a request may proceed or ctx is done. A wait that would
// outlast the ctx deadline fails immediately with context.DeadlineExceeded.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.Unlimited() {
		return nil
	}

	throttled := l.limiter.Tokens() < 1
	start := time.Now()

	if err := l.limiter.Wait(ctx); err != nil {
		if ctx.Err() == nil {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	if throttled {
		waited := time.Since(start)
		rateLimitWaitsTotal.Inc()
		rateLimitWaitSeconds.Observe(waited.Seconds())
		l.logger.Debug().Dur("delay", waited).Msg("Request delayed by rate limiter")
	}
	return nil
}
