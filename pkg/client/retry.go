package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	helixRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helix_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	helixRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "helix_retry_backoff_seconds",
		Help:    "Wait before a retry by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	helixRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helix_retry_exhausted_total",
		Help: "Total number of calls that exhausted their attempts by last error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration

	// BackoffMultiplier is applied to the backoff after every retry.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

func (rc RetryConfig) normalized() RetryConfig {
	if rc.MaxAttempts < 1 {
		rc.MaxAttempts = 1
	}
	if rc.InitialBackoff < 0 {
		rc.InitialBackoff = 0
	}
	if rc.BackoffMultiplier < 1 {
		rc.BackoffMultiplier = 2.0
	}
	return rc
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryWithBackoff runs fn until it succeeds, fails with a non-retryable
// class, or MaxAttempts is reached. The wait before the k-th retry is
// InitialBackoff * multiplier^(k-1) unless the failed attempt carried a
// server-suggested wait, which then replaces the backoff for that retry only.
// The backoff keeps growing either way.
func (c *Client) retryWithBackoff(ctx context.Context, endpoint string, fn func(attempt int) (Payload, error)) (Payload, error) {
	rc := c.retry.normalized()
	backoff := rc.InitialBackoff

	var lastErr error
	for attempt := 1; ; attempt++ {
		payload, err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				c.logger.Info().
					Str("endpoint", endpoint).
					Int("attempt", attempt).
					Msg("Helix request succeeded after retry")
			}
			return payload, nil
		}

		lastErr = err
		if errors.Is(err, ErrContextCancelled) {
			return nil, lastErr
		}

		errClass := classOf(err)
		if !shouldRetry(errClass) {
			return nil, lastErr
		}

		if attempt >= rc.MaxAttempts {
			helixRetryExhaustedTotal.WithLabelValues(string(errClass)).Inc()
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempt, lastErr)
		}

		delay := backoff
		var he *HelixError
		if errors.As(err, &he) && he.HasRetryAfter {
			delay = he.RetryAfter
		}

		helixRetriesTotal.WithLabelValues(string(errClass)).Inc()
		helixRetryBackoffSeconds.WithLabelValues(string(errClass)).Observe(delay.Seconds())

		c.logger.Info().
			Str("endpoint", endpoint).
			Str("error_class", string(errClass)).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Retrying Helix request")

		if err := c.sleep(ctx, delay); err != nil {
			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return nil, fmt.Errorf("%w: %w", ErrContextCancelled, err)
		}

		backoff = time.Duration(float64(backoff) * rc.BackoffMultiplier)
	}
}
