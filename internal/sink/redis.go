package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sternrassler/helix-channel-crawler/internal/extract"
	"github.com/Sternrassler/helix-channel-crawler/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultKeyPrefix prefixes the Redis list of a run.
const DefaultKeyPrefix = "helix:crawl"

// RedisSink appends each record as JSON to the list <prefix>:<runID>.
type RedisSink struct {
	redis  *redis.Client
	key    string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisSink creates a Redis sink for one run. A ttl of zero keeps the
// list forever.
func NewRedisSink(redisClient *redis.Client, prefix, runID string, ttl time.Duration, logger zerolog.Logger) *RedisSink {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisSink{
		redis:  redisClient,
		key:    prefix + ":" + runID,
		ttl:    ttl,
		logger: logging.NewLogger(logger, "sink-redis"),
	}
}

// Key returns the Redis list key.
func (s *RedisSink) Key() string {
	return s.key
}

// Write pushes all records in one transaction.
func (s *RedisSink) Write(ctx context.Context, records []extract.ChannelRecord) error {
	if len(records) == 0 {
		return nil
	}

	values := make([]any, 0, len(records))
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			sinkErrorsTotal.WithLabelValues("redis").Inc()
			return fmt.Errorf("marshal record %s: %w", rec.ChannelID, err)
		}
		values = append(values, data)
	}

	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, s.key, values...)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		sinkErrorsTotal.WithLabelValues("redis").Inc()
		return fmt.Errorf("redis rpush: %w", err)
	}

	sinkRecordsTotal.WithLabelValues("redis").Add(float64(len(records)))
	s.logger.Info().
		Str("key", s.key).
		Int("records", len(records)).
		Msg("Pushed records to Redis")
	return nil
}
