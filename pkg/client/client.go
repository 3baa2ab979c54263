// Package client provides the Helix HTTP transport: authenticated GET calls
// with rate-limit handling and retry, degrading to an empty Payload instead
// of returning errors.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/helix-channel-crawler/pkg/logging"
	"github.com/Sternrassler/helix-channel-crawler/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for Helix client operations.
var (
	helixRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helix_requests_total",
		Help: "Total Helix requests by endpoint and status",
	}, []string{"endpoint", "status"})

	helixRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "helix_request_duration_seconds",
		Help:    "Helix request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	helixErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helix_errors_total",
		Help: "Total Helix errors by class",
	}, []string{"class"})
)

// DefaultBaseURL is the public Helix API root.
const DefaultBaseURL = "https://api.twitch.tv/helix"

// maxLoggedBody caps how much of an unexpected response body is logged.
const maxLoggedBody = 200

// ErrorClass represents a classification of failed attempts.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a 2xx response with an unparseable body.
	ErrorClassDecode ErrorClass = "decode"
)

// Payload is a decoded Helix JSON object. A nil Payload is the empty result.
type Payload map[string]any

// Empty reports whether the payload carries no data.
func (p Payload) Empty() bool {
	return len(p) == 0
}

// Client is the Helix transport.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	tracker    *ratelimit.Tracker
	retry      RetryConfig
	sleep      Sleeper
	now        func() time.Time
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the Helix root, e.g. https://api.twitch.tv/helix.
	BaseURL string

	// ClientID is sent as the Client-Id header.
	ClientID string

	// AccessToken is sent as "Authorization: Bearer <token>".
	AccessToken string

	// UserAgent header.
	UserAgent string

	// Timeout bounds every single attempt.
	Timeout time.Duration

	// Retry
	MaxAttempts    int
	InitialBackoff time.Duration

	// RequestsPerSecond paces outgoing attempts client-side; 0 disables pacing.
	RequestsPerSecond float64

	// Tracker observes Ratelimit-* headers; nil disables proactive waits.
	Tracker *ratelimit.Tracker

	// Logger is the parent logger; the client derives a component logger from it.
	Logger zerolog.Logger
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(clientID, accessToken string) Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		ClientID:       clientID,
		AccessToken:    accessToken,
		UserAgent:      "helix-channel-crawler/0.1.0",
		Timeout:        15 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		Logger:         logging.Nop(),
	}
}

// New creates a new Helix client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client id is required")
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be >= 1 (got %d)", cfg.MaxAttempts)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %v)", cfg.Timeout)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	retry := DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxAttempts
	retry.InitialBackoff = cfg.InitialBackoff

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: limiter,
		tracker: cfg.Tracker,
		retry:   retry,
		sleep:   sleepContext,
		now:     time.Now,
		config:  cfg,
		logger:  logging.NewLogger(cfg.Logger, "helix-client"),
	}, nil
}

// Get performs one logical GET against a Helix endpoint. It never fails:
// exhausted retries, undecodable bodies and cancelled contexts all yield a
// nil Payload after being logged.
func (c *Client) Get(ctx context.Context, path string, query url.Values) Payload {
	payload, err := c.Do(ctx, path, query)
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("endpoint", path).
			Str("query", query.Encode()).
			Str("error_class", string(classOf(err))).
			Msg("Helix call failed - returning empty result")
		return nil
	}
	return payload
}

// Do performs the GET with retry and returns the classified error, if any.
// Most callers want Get.
func (c *Client) Do(ctx context.Context, path string, query url.Values) (Payload, error) {
	endpoint := "/" + strings.TrimPrefix(path, "/")
	target := c.buildURL(endpoint, query)

	// serverPaced is set when the previous attempt already slept for a
	// server-suggested wait, which then stands in for the tracker wait.
	serverPaced := false
	return c.retryWithBackoff(ctx, endpoint, func(attempt int) (Payload, error) {
		if err := c.waitForCapacity(ctx, endpoint, !serverPaced); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrContextCancelled, err)
		}
		payload, err := c.attempt(ctx, endpoint, target, attempt)
		var he *HelixError
		serverPaced = errors.As(err, &he) && he.HasRetryAfter
		return payload, err
	})
}

// waitForCapacity applies the client-side pacer and, when useTracker is set,
// the tracked Helix bucket. Neither counts as an attempt.
func (c *Client) waitForCapacity(ctx context.Context, endpoint string, useTracker bool) error {
	if useTracker && c.tracker != nil {
		wait, err := c.tracker.WaitDuration(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Rate limit state unavailable")
		} else if wait > 0 {
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}
	return nil
}

// attempt issues exactly one HTTP request and classifies the outcome.
func (c *Client) attempt(ctx context.Context, endpoint, target string, attempt int) (Payload, error) {
	startTime := time.Now()
	defer func() {
		helixRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &HelixError{ErrorClass: ErrorClassNetwork, Message: "create request", Err: err}
	}
	req.Header.Set("Client-Id", c.config.ClientID)
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("attempt", attempt).
		Msg("Executing Helix request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		helixErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		helixRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Warn().
			Err(err).
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Msg("Helix request failed")
		return nil, &HelixError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	helixRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if c.tracker != nil {
		if err := c.tracker.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		helixErrorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()

		wait, ok := ratelimit.SuggestedWait(resp.Header, c.now())
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Bool("server_wait", ok).
			Dur("retry_after", wait).
			Msg("Rate limited by Helix")

		return nil, &HelixError{
			StatusCode:    resp.StatusCode,
			ErrorClass:    ErrorClassRateLimit,
			Message:       resp.Status,
			RetryAfter:    wait,
			HasRetryAfter: ok,
		}
	}

	body, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if readErr != nil {
			helixErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return nil, &HelixError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassNetwork, Message: "read body", Err: readErr}
		}
		var payload Payload
		if err := json.Unmarshal(body, &payload); err != nil {
			helixErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
			c.logger.Error().
				Err(err).
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Msg("Failed to decode Helix response")
			return nil, &HelixError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassDecode, Message: "invalid JSON body", Err: errors.Join(ErrDecode, err)}
		}
		return payload, nil
	}

	errClass := classifyStatus(resp.StatusCode)
	helixErrorsTotal.WithLabelValues(string(errClass)).Inc()
	c.logger.Warn().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Str("error_class", string(errClass)).
		Int("attempt", attempt).
		Str("body", truncate(string(body), maxLoggedBody)).
		Msg("Unexpected Helix status")

	return nil, &HelixError{
		StatusCode: resp.StatusCode,
		ErrorClass: errClass,
		Message:    resp.Status,
	}
}

// classifyStatus categorizes a non-2xx, non-429 status.
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 500:
		return ErrorClassServer
	case status >= 400:
		return ErrorClassClient
	default:
		// 1xx/3xx that the transport did not follow
		return ErrorClassServer
	}
}

func (c *Client) buildURL(endpoint string, query url.Values) string {
	target := strings.TrimSuffix(c.config.BaseURL, "/") + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetSleeper replaces the wait function used for backoff and rate-limit
// delays (for testing).
func (c *Client) SetSleeper(s Sleeper) {
	c.sleep = s
}
