package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/helix-channel-crawler/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	helixPointsRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "helix_ratelimit_points_remaining",
		Help: "Points remaining in the current Helix rate limit bucket",
	})

	helixRateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helix_ratelimit_waits_total",
		Help: "Total number of requests delayed until the Helix bucket reset",
	})
)

// Tracker records Helix bucket headers and tells callers how long to hold
// off before the next request.
type Tracker struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewTracker creates a tracker. A nil store falls back to a MemoryStore.
func NewTracker(store Store, logger zerolog.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{
		store:  store,
		logger: logging.NewLogger(logger, "ratelimit"),
		now:    time.Now,
	}
}

// GetState returns the last recorded bucket, or nil if none was seen yet.
func (t *Tracker) GetState(ctx context.Context) (*BucketState, error) {
	state, err := t.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rate limit state: %w", err)
	}
	return state, nil
}

// UpdateFromHeaders parses Helix rate limit headers and stores the bucket.
// Responses without the headers are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remaining, err := strconv.Atoi(strings.TrimSpace(remainStr))
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		return fmt.Errorf("%s header missing", HeaderReset)
	}
	resetUnix, err := strconv.ParseInt(strings.TrimSpace(resetStr), 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}

	limit := 0
	if limitStr := headers.Get(HeaderLimit); limitStr != "" {
		if limit, err = strconv.Atoi(strings.TrimSpace(limitStr)); err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderLimit, err)
		}
	}

	state := &BucketState{
		Limit:      limit,
		Remaining:  remaining,
		ResetAt:    time.Unix(resetUnix, 0),
		LastUpdate: t.now(),
	}

	if err := t.store.Save(ctx, state); err != nil {
		return err
	}

	helixPointsRemaining.Set(float64(remaining))

	if state.RunningLow() {
		t.logger.Warn().
			Int("remaining", remaining).
			Int("limit", limit).
			Time("reset_at", state.ResetAt).
			Msg("Helix rate limit bucket running low")
	} else {
		t.logger.Debug().
			Int("remaining", remaining).
			Int("limit", limit).
			Time("reset_at", state.ResetAt).
			Msg("Helix rate limit state updated")
	}

	return nil
}

// WaitDuration returns how long to wait before the next request. It is zero
// unless the last known bucket is empty and has not reset yet.
func (t *Tracker) WaitDuration(ctx context.Context) (time.Duration, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return 0, err
	}
	if state == nil {
		return 0, nil
	}

	now := t.now()
	if state.IsStale(now, MaxStateAge) || !state.Exhausted(now) {
		return 0, nil
	}

	wait := capServerWait(state.TimeUntilReset(now))
	helixRateLimitWaitsTotal.Inc()
	t.logger.Warn().
		Int("remaining", state.Remaining).
		Dur("wait_duration", wait).
		Msg("Helix rate limit bucket empty - waiting for reset")

	return wait, nil
}

// SuggestedWait extracts the server's suggested wait from a 429 response:
// Retry-After (delta seconds or HTTP date) first, then Ratelimit-Reset.
// The boolean is false when neither header yields a usable value. Non-finite
// or out-of-range delta seconds are unusable; every result is capped at
// MaxServerWait.
func SuggestedWait(headers http.Header, now time.Time) (time.Duration, bool) {
	if v := strings.TrimSpace(headers.Get(HeaderRetryAfter)); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			if d, ok := secondsToDuration(secs); ok {
				return capServerWait(d), true
			}
		} else if at, err := http.ParseTime(v); err == nil {
			return capServerWait(at.Sub(now)), true
		}
	}

	if v := strings.TrimSpace(headers.Get(HeaderReset)); v != "" {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			return capServerWait(time.Unix(unix, 0).Sub(now)), true
		}
	}

	return 0, false
}

// secondsToDuration converts delta seconds, rejecting negative, NaN, infinite
// and values that overflow time.Duration.
func secondsToDuration(secs float64) (time.Duration, bool) {
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs < 0 {
		return 0, false
	}
	if secs >= float64(math.MaxInt64)/float64(time.Second) {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

// capServerWait clamps d to [0, MaxServerWait].
func capServerWait(d time.Duration) time.Duration {
	return max(0, min(d, MaxServerWait))
}
