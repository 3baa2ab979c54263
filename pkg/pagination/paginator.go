package pagination

import (
	"context"
	"iter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	paginationPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helix_pagination_pages_total",
		Help: "Total number of non-empty pages yielded by paginators",
	})

	paginationItemsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helix_pagination_items_total",
		Help: "Total number of items yielded by paginators",
	})
)

// Entity is one raw item of a Helix list response.
type Entity = map[string]any

// Page is the result of fetching one page.
type Page struct {
	Data []Entity

	// Cursor continues the listing; empty means no further pages.
	Cursor string
}

// FetchFunc fetches the page that starts at cursor. The first call receives
// an empty cursor. Failures are expressed as an empty Page.
type FetchFunc func(ctx context.Context, cursor string) Page

// StopReason records why a Paginator stopped.
type StopReason int

const (
	// StopNone means the paginator has not stopped yet.
	StopNone StopReason = iota
	// StopEmptyPage means the last fetch returned no items.
	StopEmptyPage
	// StopMaxItems means the item quota was reached.
	StopMaxItems
	// StopNoCursor means the last page carried no continuation cursor.
	StopNoCursor
	// StopCancelled means the context ended before the next fetch.
	StopCancelled
)

func (r StopReason) String() string {
	switch r {
	case StopNone:
		return "running"
	case StopEmptyPage:
		return "empty_page"
	case StopMaxItems:
		return "max_items"
	case StopNoCursor:
		return "no_cursor"
	case StopCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Option configures a Paginator.
type Option func(*Paginator)

// WithLogger sets the logger used for page-level debug output.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Paginator) {
		p.logger = logger
	}
}

// Paginator yields the pages of one cursor-paginated listing.
type Paginator struct {
	fetch    FetchFunc
	maxItems int
	cursor   string
	total    int
	reason   StopReason
	logger   zerolog.Logger
}

// New creates a Paginator. maxItems <= 0 means no item limit.
func New(fetch FetchFunc, maxItems int, opts ...Option) *Paginator {
	p := &Paginator{
		fetch:    fetch,
		maxItems: maxItems,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Next fetches the next page. It returns false once the listing is
// exhausted; after that it never calls the fetch function again.
func (p *Paginator) Next(ctx context.Context) ([]Entity, bool) {
	if p.reason != StopNone {
		return nil, false
	}
	if ctx.Err() != nil {
		return nil, p.stop(StopCancelled)
	}

	page := p.fetch(ctx, p.cursor)
	if len(page.Data) == 0 {
		return nil, p.stop(StopEmptyPage)
	}

	data := page.Data
	if p.maxItems > 0 {
		remaining := p.maxItems - p.total
		if remaining <= 0 {
			return nil, p.stop(StopMaxItems)
		}
		if len(data) > remaining {
			data = data[:remaining]
		}
	}
	p.total += len(data)

	paginationPagesTotal.Inc()
	paginationItemsTotal.Add(float64(len(data)))
	p.logger.Debug().
		Int("items", len(data)).
		Int("total", p.total).
		Bool("has_cursor", page.Cursor != "").
		Msg("Page fetched")

	switch {
	case p.maxItems > 0 && p.total >= p.maxItems:
		p.stop(StopMaxItems)
	case page.Cursor == "":
		p.stop(StopNoCursor)
	default:
		p.cursor = page.Cursor
	}
	return data, true
}

func (p *Paginator) stop(reason StopReason) bool {
	p.reason = reason
	p.logger.Debug().
		Str("reason", reason.String()).
		Int("total", p.total).
		Msg("Pagination finished")
	return false
}

// Pages returns an iterator over the remaining pages. Breaking out of the
// loop leaves the paginator where it was; no further page is fetched.
func (p *Paginator) Pages(ctx context.Context) iter.Seq[[]Entity] {
	return func(yield func([]Entity) bool) {
		for {
			page, ok := p.Next(ctx)
			if !ok || !yield(page) {
				return
			}
		}
	}
}

// Reason reports why the paginator stopped, or StopNone while it is running.
func (p *Paginator) Reason() StopReason {
	return p.reason
}

// Total returns the number of items yielded so far.
func (p *Paginator) Total() int {
	return p.total
}

// PageFromPayload extracts a Page from a decoded Helix list response of the
// form {"data": [...], "pagination": {"cursor": "..."}}. Items that are not
// JSON objects are dropped. A nil payload yields an empty Page.
func PageFromPayload(payload map[string]any) Page {
	var page Page

	if items, ok := payload["data"].([]any); ok {
		page.Data = make([]Entity, 0, len(items))
		for _, item := range items {
			if entity, ok := item.(map[string]any); ok {
				page.Data = append(page.Data, entity)
			}
		}
	}

	if pg, ok := payload["pagination"].(map[string]any); ok {
		if cursor, ok := pg["cursor"].(string); ok {
			page.Cursor = cursor
		}
	}
	return page
}
