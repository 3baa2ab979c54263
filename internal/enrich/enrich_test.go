package enrich

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/Sternrassler/helix-channel-crawler/pkg/client"
	"github.com/rs/zerolog"
)

type call struct {
	path  string
	query url.Values
}

// fakeHelix answers Do from canned payloads; paths listed in fail return an
// error and paths listed in panics panic.
type fakeHelix struct {
	mu       sync.Mutex
	payloads map[string]client.Payload
	fail     map[string]bool
	panics   map[string]bool
	calls    []call
}

func (f *fakeHelix) Do(_ context.Context, path string, query url.Values) (client.Payload, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{path: path, query: query})
	f.mu.Unlock()

	if f.panics[path] {
		panic("boom on " + path)
	}
	if f.fail[path] {
		return nil, &client.HelixError{StatusCode: 500, ErrorClass: client.ErrorClassServer, Message: "500 Internal Server Error"}
	}
	return f.payloads[path], nil
}

func list(item map[string]any) client.Payload {
	return client.Payload{"data": []any{item}}
}

func fullHelix() *fakeHelix {
	return &fakeHelix{
		payloads: map[string]client.Payload{
			PathStreams: list(map[string]any{"id": "s1", "title": "live now", "viewer_count": 12.0}),
			PathVideos:  list(map[string]any{"id": "v1", "duration": "1h2m3s"}),
			PathClips:   list(map[string]any{"id": "c1", "duration": 30.5}),
			PathSchedule: {"data": map[string]any{
				"segments": []any{map[string]any{"id": "seg1", "title": "weekly"}},
			}},
		},
	}
}

func TestEnrich_AllFieldsPresent(t *testing.T) {
	helix := fullHelix()
	o := New(helix, zerolog.Nop())

	e := o.Enrich(context.Background(), "141981764")

	if e.Stream.Value == nil || e.Stream.Value.ID != "s1" {
		t.Errorf("Stream = %+v, want id s1", e.Stream.Value)
	}
	if e.Video.Value == nil || e.Video.Value.LengthSeconds != 3723 {
		t.Errorf("Video = %+v, want 3723s", e.Video.Value)
	}
	if e.Clip.Value == nil || e.Clip.Value.DurationSeconds != 30 {
		t.Errorf("Clip = %+v, want 30s", e.Clip.Value)
	}
	if e.Schedule.Value == nil || e.Schedule.Value.ID != "seg1" {
		t.Errorf("Schedule = %+v, want seg1", e.Schedule.Value)
	}
	if len(e.Failed()) != 0 {
		t.Errorf("Failed() = %v, want none", e.Failed())
	}
}

func TestEnrich_CallOrderAndQueries(t *testing.T) {
	helix := fullHelix()
	o := New(helix, zerolog.Nop())

	o.Enrich(context.Background(), "42")

	want := []call{
		{PathStreams, url.Values{"user_id": {"42"}, "first": {"1"}}},
		{PathVideos, url.Values{"user_id": {"42"}, "sort": {"time"}, "first": {"1"}}},
		{PathClips, url.Values{"broadcaster_id": {"42"}, "first": {"1"}}},
		{PathSchedule, url.Values{"broadcaster_id": {"42"}, "first": {"1"}}},
	}
	if len(helix.calls) != len(want) {
		t.Fatalf("calls = %d, want %d", len(helix.calls), len(want))
	}
	for i, w := range want {
		got := helix.calls[i]
		if got.path != w.path {
			t.Errorf("call[%d] path = %s, want %s", i, got.path, w.path)
		}
		if got.query.Encode() != w.query.Encode() {
			t.Errorf("call[%d] query = %s, want %s", i, got.query.Encode(), w.query.Encode())
		}
	}
}

func TestEnrich_OneFailureIsolated(t *testing.T) {
	paths := []string{PathStreams, PathVideos, PathClips, PathSchedule}

	for _, mode := range []string{"error", "panic"} {
		for _, failing := range paths {
			t.Run(mode+failing, func(t *testing.T) {
				helix := fullHelix()
				if mode == "error" {
					helix.fail = map[string]bool{failing: true}
				} else {
					helix.panics = map[string]bool{failing: true}
				}
				o := New(helix, zerolog.Nop())

				e := o.Enrich(context.Background(), "7")

				present := map[string]bool{
					PathStreams:  e.Stream.Value != nil,
					PathVideos:   e.Video.Value != nil,
					PathClips:    e.Clip.Value != nil,
					PathSchedule: e.Schedule.Value != nil,
				}
				for _, p := range paths {
					if p == failing && present[p] {
						t.Errorf("%s should be absent", p)
					}
					if p != failing && !present[p] {
						t.Errorf("%s should be present", p)
					}
				}

				if len(helix.calls) != 4 {
					t.Errorf("calls = %d, want 4", len(helix.calls))
				}

				failed := e.Failed()
				if len(failed) != 1 {
					t.Fatalf("Failed() = %v, want exactly one", failed)
				}
				var ee *EnrichmentError
				if !errors.As(failed[0], &ee) {
					t.Fatalf("error %T is not *EnrichmentError", failed[0])
				}
				if ee.Endpoint != failing || ee.ChannelID != "7" {
					t.Errorf("EnrichmentError = %+v, want endpoint %s channel 7", ee, failing)
				}
				if mode == "panic" && !errors.Is(failed[0], ErrPanic) {
					t.Errorf("panic should wrap ErrPanic, got %v", failed[0])
				}
			})
		}
	}
}

func TestEnrich_AbsentIsNotFailure(t *testing.T) {
	helix := &fakeHelix{payloads: map[string]client.Payload{
		PathStreams:  {"data": []any{}},
		PathSchedule: {"data": map[string]any{"segments": nil}},
	}}
	o := New(helix, zerolog.Nop())

	e := o.Enrich(context.Background(), "1")

	if e.Stream.Value != nil || !e.Stream.OK() {
		t.Errorf("offline channel: Stream = %+v", e.Stream)
	}
	if e.Video.Value != nil || e.Clip.Value != nil || e.Schedule.Value != nil {
		t.Error("missing data should leave fields absent")
	}
	if len(e.Failed()) != 0 {
		t.Errorf("Failed() = %v, want none", e.Failed())
	}
}

func TestScheduleObject(t *testing.T) {
	seg := map[string]any{"segments": []any{}}
	tests := []struct {
		name    string
		payload client.Payload
		wantNil bool
	}{
		{name: "under data", payload: client.Payload{"data": seg}},
		{name: "under schedule", payload: client.Payload{"schedule": seg}},
		{name: "empty data falls back", payload: client.Payload{"data": map[string]any{}, "schedule": seg}},
		{name: "data is a list", payload: client.Payload{"data": []any{}}, wantNil: true},
		{name: "nil", payload: nil, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scheduleObject(tt.payload)
			if (got == nil) != tt.wantNil {
				t.Errorf("scheduleObject() = %v, wantNil %v", got, tt.wantNil)
			}
		})
	}
}

func TestEnrichmentError(t *testing.T) {
	inner := errors.New("timeout")
	err := &EnrichmentError{ChannelID: "9", Field: FieldClip, Endpoint: PathClips, Err: inner}

	want := "enrich top_clip for channel 9 via /clips: timeout"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, inner) {
		t.Error("errors.Is should find wrapped error")
	}
}
