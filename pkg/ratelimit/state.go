// Package ratelimit tracks the Helix token bucket advertised through the
// Ratelimit-Limit, Ratelimit-Remaining and Ratelimit-Reset response headers,
// and derives how long a caller should wait before issuing the next request.
package ratelimit

import (
	"time"
)

// Helix rate limit response headers.
const (
	HeaderLimit      = "Ratelimit-Limit"
	HeaderRemaining  = "Ratelimit-Remaining"
	HeaderReset      = "Ratelimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Redis key suffixes for shared bucket state. The full key is
// "helix:<prefix>:<suffix>".
const (
	RedisKeyLimit      = "rate_limit:limit"
	RedisKeyRemaining  = "rate_limit:remaining"
	RedisKeyReset      = "rate_limit:reset_timestamp"
	RedisKeyLastUpdate = "rate_limit:last_update"
)

// MaxStateAge bounds how long a recorded bucket is trusted. Helix buckets
// refill within a minute, so older state no longer describes the server.
const MaxStateAge = 2 * time.Minute

// MaxServerWait caps every wait derived from server headers. A reset or
// Retry-After further out than this is treated as a bad header.
const MaxServerWait = MaxStateAge

// LowWatermark is the remaining-points level below which a bucket is
// reported as running low in logs.
const LowWatermark = 10

// BucketState is the last known Helix bucket for one client id.
type BucketState struct {
	// Limit is the bucket size (Ratelimit-Limit).
	Limit int `json:"limit"`

	// Remaining is the number of points left (Ratelimit-Remaining).
	Remaining int `json:"remaining"`

	// ResetAt is when the bucket refills (Ratelimit-Reset, epoch seconds).
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was recorded.
	LastUpdate time.Time `json:"last_update"`
}

// IsStale returns true if the state is older than maxAge.
func (s *BucketState) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.LastUpdate) > maxAge
}

// Exhausted reports whether no points remain and the bucket has not reset yet.
func (s *BucketState) Exhausted(now time.Time) bool {
	return s.Remaining <= 0 && now.Before(s.ResetAt)
}

// RunningLow reports whether the bucket is below LowWatermark but not empty.
func (s *BucketState) RunningLow() bool {
	return s.Remaining > 0 && s.Remaining < LowWatermark
}

// TimeUntilReset returns the duration until the bucket refills, or 0 if the
// reset time has already passed.
func (s *BucketState) TimeUntilReset(now time.Time) time.Duration {
	d := s.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
