package client

import (
	"errors"
	"fmt"
	"time"
)

// Common errors produced while executing a Helix call. Client.Do returns
// them; Client.Get logs them and degrades to an empty Payload.
var (
	// ErrRetryExhausted is returned when all attempts are used up.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context ends during a wait.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrDecode marks a 2xx response whose body is not a JSON object.
	ErrDecode = errors.New("decode response body")
)

// HelixError represents a failed Helix attempt with additional context.
type HelixError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string

	// RetryAfter is the server-suggested wait, valid when HasRetryAfter is set.
	RetryAfter    time.Duration
	HasRetryAfter bool

	Err error
}

// Error implements the error interface.
func (e *HelixError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("helix %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("helix %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *HelixError) Unwrap() error {
	return e.Err
}

// classOf extracts the error class from err, defaulting to network.
func classOf(err error) ErrorClass {
	var he *HelixError
	if errors.As(err, &he) {
		return he.ErrorClass
	}
	if errors.Is(err, ErrDecode) {
		return ErrorClassDecode
	}
	return ErrorClassNetwork
}

// shouldRetry determines if an error should be retried based on its classification.
// A 2xx body that fails to decode is assumed not to heal on its own.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassDecode:
		return false
	default:
		// client, server, rate_limit and network failures are all retried
		return true
	}
}
