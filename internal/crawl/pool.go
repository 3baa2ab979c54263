package crawl

import (
	"context"
	"sync"

	"github.com/Sternrassler/helix-channel-crawler/internal/extract"
	"github.com/Sternrassler/helix-channel-crawler/pkg/pagination"
)

// enrichResult is the outcome for the channel at index.
type enrichResult struct {
	index  int
	record extract.ChannelRecord
	ok     bool
}

// enrichAll enriches raw in search order. With Concurrency > 1 a bounded
// worker pool is used; records still come back in input order.
func (c *Crawler) enrichAll(ctx context.Context, keyword string, raw []pagination.Entity) []extract.ChannelRecord {
	if c.config.Concurrency <= 1 || len(raw) <= 1 {
		records := make([]extract.ChannelRecord, 0, len(raw))
		for _, ch := range raw {
			if rec, ok := c.enrichOne(ctx, keyword, ch); ok {
				records = append(records, rec)
			}
		}
		return records
	}

	workers := min(c.config.Concurrency, len(raw))

	queue := make(chan int, len(raw))
	for i := range raw {
		queue <- i
	}
	close(queue)

	results := make(chan enrichResult, len(raw))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go c.worker(ctx, keyword, raw, queue, results, &wg, i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	slots := make([]enrichResult, len(raw))
	for res := range results {
		slots[res.index] = res
	}

	records := make([]extract.ChannelRecord, 0, len(raw))
	for _, res := range slots {
		if res.ok {
			records = append(records, res.record)
		}
	}
	return records
}

// worker enriches channels from the queue until it is drained.
func (c *Crawler) worker(ctx context.Context, keyword string, raw []pagination.Entity, queue <-chan int, results chan<- enrichResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for idx := range queue {
		rec, ok := c.enrichOne(ctx, keyword, raw[idx])
		results <- enrichResult{index: idx, record: rec, ok: ok}
		processed++
	}

	c.logger.Debug().
		Str("keyword", keyword).
		Int("worker_id", workerID).
		Int("channels_processed", processed).
		Msg("Enrichment worker completed")
}
