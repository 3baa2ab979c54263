// Package testutil provides testing utilities for the Helix crawler.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// MockHelixResponse defines the behavior for a mock Helix endpoint response.
type MockHelixResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is one request observed by the mock server.
type RecordedRequest struct {
	Path   string
	Query  url.Values
	Header http.Header
}

// MockHelix is a configurable mock Helix server for testing.
type MockHelix struct {
	server    *httptest.Server
	mu        sync.RWMutex
	handlers  map[string]func(w http.ResponseWriter, r *http.Request)
	sequences map[string][]MockHelixResponse
	requests  []RecordedRequest
}

// NewMockHelix creates a new mock Helix server.
func NewMockHelix() *MockHelix {
	mock := &MockHelix{
		handlers:  make(map[string]func(w http.ResponseWriter, r *http.Request)),
		sequences: make(map[string][]MockHelixResponse),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requests = append(mock.requests, RecordedRequest{
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
		})

		if seq := mock.sequences[r.URL.Path]; len(seq) > 0 {
			resp := seq[0]
			if len(seq) > 1 {
				mock.sequences[r.URL.Path] = seq[1:]
			}
			mock.mu.Unlock()
			writeResponse(w, resp)
			return
		}

		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockHelix) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockHelix) Close() {
	m.server.Close()
}

// Reset clears recorded requests.
func (m *MockHelix) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// SetHandler sets a custom handler for one path.
func (m *MockHelix) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockHelix) SetResponse(path string, resp MockHelixResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, _ *http.Request) {
		writeResponse(w, resp)
	})
}

// SetSequence configures responses served in order for a path. The last
// response repeats once the sequence is consumed.
func (m *MockHelix) SetSequence(path string, responses ...MockHelixResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[path] = responses
}

// Requests returns a copy of all recorded requests.
func (m *MockHelix) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestsFor returns the recorded requests for one path.
func (m *MockHelix) RequestsFor(path string) []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []RecordedRequest
	for _, r := range m.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockHelix) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

func writeResponse(w http.ResponseWriter, resp MockHelixResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

// defaultHandler answers every unknown path with an empty data list.
func defaultHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"data": []}`))
}

// NewDataResponse creates a 200 OK list response with an optional cursor.
func NewDataResponse(cursor string, items ...map[string]any) MockHelixResponse {
	if items == nil {
		items = []map[string]any{}
	}
	body := map[string]any{"data": items}
	if cursor != "" {
		body["pagination"] = map[string]any{"cursor": cursor}
	} else {
		body["pagination"] = map[string]any{}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		panic(fmt.Sprintf("marshal mock body: %v", err))
	}
	return NewHealthyResponse(string(raw))
}

// NewHealthyResponse creates a standard 200 OK response with bucket headers.
func NewHealthyResponse(data string) MockHelixResponse {
	return MockHelixResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Ratelimit-Limit":     "800",
			"Ratelimit-Remaining": "799",
			"Ratelimit-Reset":     strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10),
			"Content-Type":        "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response. An empty
// retryAfter omits the Retry-After header.
func NewRateLimitResponse(retryAfter string) MockHelixResponse {
	headers := map[string]string{
		"Content-Type": "application/json; charset=utf-8",
	}
	if retryAfter != "" {
		headers["Retry-After"] = retryAfter
	}
	return MockHelixResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error":"Too Many Requests","status":429,"message":"rate limit exceeded"}`,
		Headers:    headers,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockHelixResponse {
	return MockHelixResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error":"Internal Server Error","status":500,"message":""}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewMalformedResponse creates a 200 OK response whose body is not JSON.
func NewMalformedResponse() MockHelixResponse {
	return MockHelixResponse{
		StatusCode: http.StatusOK,
		Body:       `{"data": [`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
