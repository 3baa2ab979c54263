package pagination

import (
	"context"
	"fmt"
	"testing"
)

// scriptedFetcher serves a fixed list of pages and records every cursor it
// was called with.
type scriptedFetcher struct {
	pages   []Page
	cursors []string
}

func (f *scriptedFetcher) fetch(_ context.Context, cursor string) Page {
	f.cursors = append(f.cursors, cursor)
	idx := len(f.cursors) - 1
	if idx >= len(f.pages) {
		return Page{}
	}
	return f.pages[idx]
}

func makePage(n int, cursor string) Page {
	data := make([]Entity, n)
	for i := range data {
		data[i] = Entity{"id": fmt.Sprintf("%s-%d", cursor, i)}
	}
	return Page{Data: data, Cursor: cursor}
}

func drain(t *testing.T, p *Paginator) []int {
	t.Helper()
	var sizes []int
	for page := range p.Pages(context.Background()) {
		sizes = append(sizes, len(page))
	}
	return sizes
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPaginator_Termination(t *testing.T) {
	tests := []struct {
		name       string
		pages      []Page
		maxItems   int
		wantSizes  []int
		wantFetch  int
		wantReason StopReason
	}{
		{
			name:       "single page without cursor",
			pages:      []Page{makePage(2, "")},
			maxItems:   10,
			wantSizes:  []int{2},
			wantFetch:  1,
			wantReason: StopNoCursor,
		},
		{
			name:       "truncates to remaining quota",
			pages:      []Page{makePage(100, "c1"), makePage(100, "c2"), makePage(50, "")},
			maxItems:   150,
			wantSizes:  []int{100, 50},
			wantFetch:  2,
			wantReason: StopMaxItems,
		},
		{
			name:       "quota equals first page",
			pages:      []Page{makePage(5, "c1"), makePage(5, "")},
			maxItems:   5,
			wantSizes:  []int{5},
			wantFetch:  1,
			wantReason: StopMaxItems,
		},
		{
			name:       "empty page stops despite cursor",
			pages:      []Page{makePage(3, "c1"), {Cursor: "c2"}},
			maxItems:   10,
			wantSizes:  []int{3},
			wantFetch:  2,
			wantReason: StopEmptyPage,
		},
		{
			name:       "empty first page",
			pages:      []Page{{}},
			maxItems:   10,
			wantSizes:  nil,
			wantFetch:  1,
			wantReason: StopEmptyPage,
		},
		{
			name:       "unbounded follows cursors to the end",
			pages:      []Page{makePage(100, "c1"), makePage(100, "c2"), makePage(50, "")},
			maxItems:   0,
			wantSizes:  []int{100, 100, 50},
			wantFetch:  3,
			wantReason: StopNoCursor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &scriptedFetcher{pages: tt.pages}
			p := New(f.fetch, tt.maxItems)

			sizes := drain(t, p)

			if !equalInts(sizes, tt.wantSizes) {
				t.Errorf("page sizes = %v, want %v", sizes, tt.wantSizes)
			}
			if len(f.cursors) != tt.wantFetch {
				t.Errorf("fetch calls = %d, want %d", len(f.cursors), tt.wantFetch)
			}
			if p.Reason() != tt.wantReason {
				t.Errorf("Reason() = %v, want %v", p.Reason(), tt.wantReason)
			}
		})
	}
}

func TestPaginator_YieldsMinOfTotalAndMax(t *testing.T) {
	pageSizes := []int{7, 13, 4, 9}
	total := 33

	for _, maxItems := range []int{1, 6, 7, 8, 20, 33, 50} {
		t.Run(fmt.Sprintf("max_%d", maxItems), func(t *testing.T) {
			pages := make([]Page, len(pageSizes))
			for i, n := range pageSizes {
				cursor := fmt.Sprintf("c%d", i+1)
				if i == len(pageSizes)-1 {
					cursor = ""
				}
				pages[i] = makePage(n, cursor)
			}
			f := &scriptedFetcher{pages: pages}
			p := New(f.fetch, maxItems)

			got := 0
			for _, n := range drain(t, p) {
				got += n
			}

			want := min(total, maxItems)
			if got != want {
				t.Errorf("yielded %d items, want %d", got, want)
			}
			if p.Total() != want {
				t.Errorf("Total() = %d, want %d", p.Total(), want)
			}

			// Stop reason and call count must agree: no fetch after the stop.
			calls := len(f.cursors)
			if _, ok := p.Next(context.Background()); ok {
				t.Error("Next() after termination = true, want false")
			}
			if len(f.cursors) != calls {
				t.Errorf("fetch called after termination (%d -> %d)", calls, len(f.cursors))
			}
		})
	}
}

func TestPaginator_PassesCursors(t *testing.T) {
	f := &scriptedFetcher{pages: []Page{makePage(1, "abc"), makePage(1, "def"), makePage(1, "")}}
	p := New(f.fetch, 0)
	drain(t, p)

	want := []string{"", "abc", "def"}
	if len(f.cursors) != len(want) {
		t.Fatalf("cursors = %v, want %v", f.cursors, want)
	}
	for i := range want {
		if f.cursors[i] != want[i] {
			t.Errorf("cursor[%d] = %q, want %q", i, f.cursors[i], want[i])
		}
	}
}

func TestPaginator_NotRestartable(t *testing.T) {
	f := &scriptedFetcher{pages: []Page{makePage(2, "")}}
	p := New(f.fetch, 0)

	first := drain(t, p)
	second := drain(t, p)

	if len(first) != 1 {
		t.Errorf("first pass pages = %d, want 1", len(first))
	}
	if len(second) != 0 {
		t.Errorf("second pass pages = %d, want 0", len(second))
	}
	if len(f.cursors) != 1 {
		t.Errorf("fetch calls = %d, want 1", len(f.cursors))
	}
}

func TestPaginator_BreakDoesNotPrefetch(t *testing.T) {
	f := &scriptedFetcher{pages: []Page{makePage(2, "c1"), makePage(2, "")}}
	p := New(f.fetch, 0)

	for range p.Pages(context.Background()) {
		break
	}

	if len(f.cursors) != 1 {
		t.Errorf("fetch calls = %d, want 1", len(f.cursors))
	}
	if p.Reason() != StopNone {
		t.Errorf("Reason() = %v, want %v", p.Reason(), StopNone)
	}
}

func TestPaginator_CancelledContext(t *testing.T) {
	f := &scriptedFetcher{pages: []Page{makePage(2, "c1")}}
	p := New(f.fetch, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, ok := p.Next(ctx); ok {
		t.Error("Next() with cancelled context = true, want false")
	}
	if len(f.cursors) != 0 {
		t.Errorf("fetch calls = %d, want 0", len(f.cursors))
	}
	if p.Reason() != StopCancelled {
		t.Errorf("Reason() = %v, want %v", p.Reason(), StopCancelled)
	}
}

func TestPageFromPayload(t *testing.T) {
	tests := []struct {
		name       string
		payload    map[string]any
		wantItems  int
		wantCursor string
	}{
		{
			name: "data and cursor",
			payload: map[string]any{
				"data":       []any{map[string]any{"id": "1"}, map[string]any{"id": "2"}},
				"pagination": map[string]any{"cursor": "eyJiIjpudWxsfQ"},
			},
			wantItems:  2,
			wantCursor: "eyJiIjpudWxsfQ",
		},
		{
			name: "empty pagination object",
			payload: map[string]any{
				"data":       []any{map[string]any{"id": "1"}},
				"pagination": map[string]any{},
			},
			wantItems: 1,
		},
		{
			name:    "data not a list",
			payload: map[string]any{"data": map[string]any{"segments": []any{}}},
		},
		{
			name:      "non-object items dropped",
			payload:   map[string]any{"data": []any{"x", 3.0, map[string]any{"id": "1"}}},
			wantItems: 1,
		},
		{
			name:    "nil payload",
			payload: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := PageFromPayload(tt.payload)
			if len(page.Data) != tt.wantItems {
				t.Errorf("len(Data) = %d, want %d", len(page.Data), tt.wantItems)
			}
			if page.Cursor != tt.wantCursor {
				t.Errorf("Cursor = %q, want %q", page.Cursor, tt.wantCursor)
			}
		})
	}
}

func TestStopReason_String(t *testing.T) {
	tests := map[StopReason]string{
		StopNone:       "running",
		StopEmptyPage:  "empty_page",
		StopMaxItems:   "max_items",
		StopNoCursor:   "no_cursor",
		StopCancelled:  "cancelled",
		StopReason(42): "unknown",
	}
	for reason, want := range tests {
		if got := reason.String(); got != want {
			t.Errorf("StopReason(%d).String() = %q, want %q", int(reason), got, want)
		}
	}
}
