// Package crawl runs one discovery pass: for every keyword it pages through
// /search/channels, enriches each channel and accumulates normalized records.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/helix-channel-crawler/internal/enrich"
	"github.com/Sternrassler/helix-channel-crawler/internal/extract"
	"github.com/Sternrassler/helix-channel-crawler/pkg/client"
	"github.com/Sternrassler/helix-channel-crawler/pkg/logging"
	"github.com/Sternrassler/helix-channel-crawler/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	crawlKeywordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helix_crawl_keywords_total",
		Help: "Total keywords processed by outcome (ok, failed)",
	}, []string{"outcome"})

	crawlChannelsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helix_crawl_channels_total",
		Help: "Total channels seen by outcome (collected, skipped, failed)",
	}, []string{"outcome"})
)

// PathSearchChannels is the Helix channel search endpoint.
const PathSearchChannels = "/search/channels"

// searchPageSize is the largest page Helix serves for channel search.
const searchPageSize = 100

// errPanic marks a recovered panic inside a keyword or channel.
var errPanic = errors.New("recovered panic")

// Searcher performs Helix GETs that degrade to an empty payload.
// *client.Client satisfies it.
type Searcher interface {
	Get(ctx context.Context, path string, query url.Values) client.Payload
}

// Enricher looks up the per-channel details. *enrich.Orchestrator satisfies it.
type Enricher interface {
	Enrich(ctx context.Context, channelID string) enrich.Enrichment
}

// Config controls a crawl.
type Config struct {
	// MaxPerKeyword caps the channels taken from each keyword's search.
	// Zero or less means no cap.
	MaxPerKeyword int

	// Concurrency is the number of channels enriched in parallel within one
	// keyword. Values below 2 enrich sequentially.
	Concurrency int
}

// DefaultConfig returns the defaults used by the CLI.
func DefaultConfig() Config {
	return Config{
		MaxPerKeyword: 50,
		Concurrency:   1,
	}
}

// Crawler is the batch driver.
type Crawler struct {
	search   Searcher
	enricher Enricher
	config   Config
	logger   zerolog.Logger
}

// New creates a Crawler.
func New(search Searcher, enricher Enricher, config Config, logger zerolog.Logger) *Crawler {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	return &Crawler{
		search:   search,
		enricher: enricher,
		config:   config,
		logger:   logging.NewLogger(logger, "crawl"),
	}
}

// Run crawls keywords in order and returns every collected record. A keyword
// that fails is logged and skipped; records from other keywords are kept.
// Run stops early only when ctx ends.
func (c *Crawler) Run(ctx context.Context, keywords []string) []extract.ChannelRecord {
	start := time.Now()
	var records []extract.ChannelRecord

	for _, keyword := range keywords {
		if err := ctx.Err(); err != nil {
			c.logger.Warn().
				Err(err).
				Str("keyword", keyword).
				Msg("Crawl cancelled - skipping remaining keywords")
			break
		}

		found, err := c.crawlKeyword(ctx, keyword)
		if err != nil {
			crawlKeywordsTotal.WithLabelValues("failed").Inc()
			c.logger.Error().
				Err(err).
				Str("keyword", keyword).
				Msg("Failed to collect channels for keyword")
			continue
		}

		crawlKeywordsTotal.WithLabelValues("ok").Inc()
		records = append(records, found...)
		c.logger.Info().
			Str("keyword", keyword).
			Int("channels", len(found)).
			Int("total", len(records)).
			Msg("Collected channels for keyword")
	}

	c.logger.Info().
		Int("keywords", len(keywords)).
		Int("records", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Crawl complete")

	return records
}

// crawlKeyword is the failure boundary around one keyword.
func (c *Crawler) crawlKeyword(ctx context.Context, keyword string) (records []extract.ChannelRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = fmt.Errorf("%w: %v", errPanic, r)
		}
	}()

	c.logger.Info().Str("keyword", keyword).Msg("Searching channels for keyword")

	raw := c.searchChannels(ctx, keyword)
	c.logger.Info().
		Str("keyword", keyword).
		Int("channels", len(raw)).
		Msg("Found raw channels for keyword")

	return c.enrichAll(ctx, keyword, raw), nil
}

// searchChannels pages through the search results for keyword.
func (c *Crawler) searchChannels(ctx context.Context, keyword string) []pagination.Entity {
	fetch := func(ctx context.Context, cursor string) pagination.Page {
		query := url.Values{
			"query":     {keyword},
			"first":     {strconv.Itoa(searchPageSize)},
			"live_only": {"false"},
		}
		if cursor != "" {
			query.Set("after", cursor)
		}
		return pagination.PageFromPayload(c.search.Get(ctx, PathSearchChannels, query))
	}

	p := pagination.New(fetch, c.config.MaxPerKeyword,
		pagination.WithLogger(c.logger.With().Str("keyword", keyword).Logger()))

	var raw []pagination.Entity
	for page := range p.Pages(ctx) {
		raw = append(raw, page...)
	}
	return raw
}

// enrichOne is the failure boundary around one channel. It reports false when
// the channel is skipped or fails.
func (c *Crawler) enrichOne(ctx context.Context, keyword string, raw pagination.Entity) (record extract.ChannelRecord, ok bool) {
	channelID := extract.ChannelID(raw)
	if channelID == "" {
		crawlChannelsTotal.WithLabelValues("skipped").Inc()
		c.logger.Debug().
			Str("keyword", keyword).
			Interface("channel", raw).
			Msg("Skipping channel without id")
		return extract.ChannelRecord{}, false
	}

	defer func() {
		if r := recover(); r != nil {
			crawlChannelsTotal.WithLabelValues("failed").Inc()
			c.logger.Error().
				Err(fmt.Errorf("%w: %v", errPanic, r)).
				Str("keyword", keyword).
				Str("channel_id", channelID).
				Msg("Failed to enrich channel")
			record, ok = extract.ChannelRecord{}, false
		}
	}()

	e := c.enricher.Enrich(ctx, channelID)
	crawlChannelsTotal.WithLabelValues("collected").Inc()
	return extract.BuildChannelRecord(raw, e.Stream.Value, e.Video.Value, e.Clip.Value, e.Schedule.Value, keyword), true
}
