package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists the last known bucket state.
// Load returns (nil, nil) when nothing has been recorded yet.
type Store interface {
	Load(ctx context.Context) (*BucketState, error)
	Save(ctx context.Context, state *BucketState) error
}

// MemoryStore keeps the bucket state in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	state *BucketState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the stored state.
func (m *MemoryStore) Load(_ context.Context) (*BucketState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, nil
	}
	cp := *m.state
	return &cp, nil
}

// Save replaces the stored state.
func (m *MemoryStore) Save(_ context.Context, state *BucketState) error {
	if state == nil {
		return errors.New("bucket state cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.state = &cp
	return nil
}

// RedisStore shares the bucket state between crawler processes that use the
// same client id. Keys expire shortly after the bucket resets.
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store. Keys are namespaced by prefix,
// typically the Helix client id.
func NewRedisStore(redisClient *redis.Client, prefix string) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (r *RedisStore) key(suffix string) string {
	if r.prefix == "" {
		return "helix:" + suffix
	}
	return "helix:" + r.prefix + ":" + suffix
}

// Load reads the bucket state from Redis.
func (r *RedisStore) Load(ctx context.Context) (*BucketState, error) {
	remaining, err := r.redis.Get(ctx, r.key(RedisKeyRemaining)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get remaining: %w", err)
	}

	limit, err := r.redis.Get(ctx, r.key(RedisKeyLimit)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get limit: %w", err)
	}

	resetTimestamp, err := r.redis.Get(ctx, r.key(RedisKeyReset)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get reset timestamp: %w", err)
	}

	var lastUpdate time.Time
	lastUpdateStr, err := r.redis.Get(ctx, r.key(RedisKeyLastUpdate)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last update: %w", err)
	}
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &lastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	return &BucketState{
		Limit:      limit,
		Remaining:  remaining,
		ResetAt:    time.Unix(resetTimestamp, 0),
		LastUpdate: lastUpdate,
	}, nil
}

// Save writes the bucket state atomically.
func (r *RedisStore) Save(ctx context.Context, state *BucketState) error {
	if state == nil {
		return errors.New("bucket state cannot be nil")
	}

	lastUpdateJSON, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	ttl := time.Until(state.ResetAt) + time.Minute
	if ttl < time.Minute {
		ttl = time.Minute
	}

	pipe := r.redis.TxPipeline()
	pipe.Set(ctx, r.key(RedisKeyLimit), state.Limit, ttl)
	pipe.Set(ctx, r.key(RedisKeyRemaining), state.Remaining, ttl)
	pipe.Set(ctx, r.key(RedisKeyReset), state.ResetAt.Unix(), ttl)
	pipe.Set(ctx, r.key(RedisKeyLastUpdate), lastUpdateJSON, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}
