// Package enrich attaches live-stream state, latest video, top clip and next
// schedule to a discovered channel. Each lookup fails on its own: an error or
// panic in one leaves the field absent and never affects the other three.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/Sternrassler/helix-channel-crawler/internal/extract"
	"github.com/Sternrassler/helix-channel-crawler/pkg/client"
	"github.com/Sternrassler/helix-channel-crawler/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var enrichmentLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "helix_enrichment_lookups_total",
	Help: "Total enrichment lookups by field and outcome (found, absent, failed)",
}, []string{"field", "outcome"})

// Helix endpoints used for enrichment.
const (
	PathStreams  = "/streams"
	PathVideos   = "/videos"
	PathClips    = "/clips"
	PathSchedule = "/schedule"
)

// Field names as they appear in logs and metrics.
const (
	FieldStream   = "stream"
	FieldVideo    = "latest_video"
	FieldClip     = "top_clip"
	FieldSchedule = "next_schedule"
)

// ErrPanic marks a lookup that panicked and was recovered.
var ErrPanic = errors.New("enrichment lookup panicked")

// EnrichmentError describes one failed lookup.
type EnrichmentError struct {
	ChannelID string
	Field     string
	Endpoint  string
	Err       error
}

// Error implements the error interface.
func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("enrich %s for channel %s via %s: %v", e.Field, e.ChannelID, e.Endpoint, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *EnrichmentError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one lookup. Value is nil when the channel has no
// such item or the lookup failed; Err is set only in the latter case.
type Result[T any] struct {
	Value *T
	Err   error
}

// OK reports whether the lookup completed without error.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Enrichment holds the four independent lookup results for one channel.
type Enrichment struct {
	Stream   Result[extract.Stream]
	Video    Result[extract.Video]
	Clip     Result[extract.Clip]
	Schedule Result[extract.Schedule]
}

// Failed returns the errors of all failed lookups.
func (e Enrichment) Failed() []error {
	var errs []error
	for _, err := range []error{e.Stream.Err, e.Video.Err, e.Clip.Err, e.Schedule.Err} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Doer performs one Helix GET and reports failures.
// *client.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, path string, query url.Values) (client.Payload, error)
}

// Orchestrator runs the per-channel lookups.
type Orchestrator struct {
	helix  Doer
	logger zerolog.Logger
}

// New creates an Orchestrator.
func New(helix Doer, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		helix:  helix,
		logger: logging.NewLogger(logger, "enrich"),
	}
}

// Enrich runs the stream, video, clip and schedule lookups for channelID in
// that order. It never fails as a whole.
func (o *Orchestrator) Enrich(ctx context.Context, channelID string) Enrichment {
	return Enrichment{
		Stream: lookup(ctx, o, channelID, FieldStream, PathStreams,
			url.Values{"user_id": {channelID}, "first": {"1"}},
			firstItem, extract.ParseStream),
		Video: lookup(ctx, o, channelID, FieldVideo, PathVideos,
			url.Values{"user_id": {channelID}, "sort": {"time"}, "first": {"1"}},
			firstItem, extract.ParseVideo),
		Clip: lookup(ctx, o, channelID, FieldClip, PathClips,
			url.Values{"broadcaster_id": {channelID}, "first": {"1"}},
			firstItem, extract.ParseClip),
		Schedule: lookup(ctx, o, channelID, FieldSchedule, PathSchedule,
			url.Values{"broadcaster_id": {channelID}, "first": {"1"}},
			scheduleObject, extract.ParseSchedule),
	}
}

// lookup is the failure boundary around a single enrichment call.
func lookup[T any](
	ctx context.Context,
	o *Orchestrator,
	channelID, field, endpoint string,
	query url.Values,
	pick func(client.Payload) map[string]any,
	parse func(map[string]any) *T,
) (res Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			res = Result[T]{Err: o.fail(channelID, field, endpoint, fmt.Errorf("%w: %v", ErrPanic, r))}
		}
	}()

	payload, err := o.helix.Do(ctx, endpoint, query)
	if err != nil {
		return Result[T]{Err: o.fail(channelID, field, endpoint, err)}
	}

	raw := pick(payload)
	if raw == nil {
		enrichmentLookupsTotal.WithLabelValues(field, "absent").Inc()
		return Result[T]{}
	}

	value := parse(raw)
	if value == nil {
		enrichmentLookupsTotal.WithLabelValues(field, "absent").Inc()
	} else {
		enrichmentLookupsTotal.WithLabelValues(field, "found").Inc()
	}
	return Result[T]{Value: value}
}

func (o *Orchestrator) fail(channelID, field, endpoint string, err error) error {
	enrichmentLookupsTotal.WithLabelValues(field, "failed").Inc()
	o.logger.Warn().
		Err(err).
		Str("channel_id", channelID).
		Str("field", field).
		Str("endpoint", endpoint).
		Msg("Enrichment lookup failed")
	return &EnrichmentError{ChannelID: channelID, Field: field, Endpoint: endpoint, Err: err}
}

// firstItem returns data[0] of a list response.
func firstItem(payload client.Payload) map[string]any {
	items, ok := payload["data"].([]any)
	if !ok || len(items) == 0 {
		return nil
	}
	item, _ := items[0].(map[string]any)
	return item
}

// scheduleObject returns the schedule object, found under "data" or, in
// older shapes, under "schedule".
func scheduleObject(payload client.Payload) map[string]any {
	for _, key := range []string{"data", "schedule"} {
		if obj, ok := payload[key].(map[string]any); ok && len(obj) > 0 {
			return obj
		}
	}
	return nil
}
