package adapter

import (
	"context"
	"encoding/json"
	"time"

	"quizforge/internal/cache"
	"quizforge/internal/domain"

	"github.com/redis/go-redis/v9"
)

// RedisResultCache implements domain.ResultCache. Terminal run results
// are kept here so `result(runId)` keeps answering after the in-memory
// active-run table evicts the run.
type RedisResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisResultCache expects a connected *redis.Client.
func NewRedisResultCache(client *redis.Client, ttl time.Duration) domain.ResultCache {
	return &RedisResultCache{client: client, ttl: ttl}
}

// Put stores a terminal run result with the configured TTL.
func (r *RedisResultCache) Put(ctx context.Context, result *domain.RunResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, cache.ResultKey(result.RunID), payload, r.ttl).Err()
}

// Get retrieves a cached run result. It translates redis.Nil to
// domain.ErrCacheMiss.
func (r *RedisResultCache) Get(ctx context.Context, runID string) (*domain.RunResult, error) {
	val, err := r.client.Get(ctx, cache.ResultKey(runID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrCacheMiss
		}
		return nil, err
	}
	var result domain.RunResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return nil, err
	}
	return &result, nil
}
