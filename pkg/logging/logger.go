// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup builds the root logger for a crawl run and installs it as the
// zerolog global so that third-party code logging through log.Logger ends up
// in the same stream. Crawler components receive the returned logger (or a
// child of it) through their constructors.
func Setup(cfg Config) zerolog.Logger {
	level := ParseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts LogLevel to zerolog.Level. Unknown values map to info.
func ParseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger derives a child logger tagged with the given component name.
func NewLogger(base zerolog.Logger, component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}

// Nop returns a disabled logger, convenient for tests and optional wiring.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Individual Helix requests (endpoint, attempt)
//   - Channels skipped for lacking an id
//   - Rate limit bucket updates
//
// Info: Normal operation events
//   - Keyword start/finish with channel counts
//   - Retries scheduled after a failed attempt
//   - Records exported
//
// Warn: Warning conditions that don't prevent operation
//   - 429 responses and proactive rate limit waits
//   - Unexpected HTTP status or network errors
//   - Per-field enrichment failures
//   - Empty run (nothing to export)
//
// Error: Error conditions requiring attention
//   - Retry attempts exhausted for a call
//   - Undecodable 2xx bodies
//   - Keyword processing aborted by an unexpected failure
//   - Configuration errors
//
// Context Fields:
//   - run_id: crawl run identifier
//   - endpoint: Helix endpoint path
//   - status: HTTP status code
//   - attempt: 1-based attempt number within one call
//   - error_class: client, server, rate_limit, network, decode
//   - backoff: delay before the next attempt
//   - keyword: search keyword being processed
//   - channel_id: channel being enriched
//   - field: enrichment field (stream, video, clip, schedule)
