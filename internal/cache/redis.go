package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ridgeline-stays/booking-engine/internal/model"
)

// RedisCache implements QuoteCache on Redis with a fixed short TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    5 * time.Minute,
	}
}

func cacheKey(key string) string {
	return "quote:" + key
}

func (r *RedisCache) Get(ctx context.Context, key string) (*model.PriceBreakdown, error) {
	data, err := r.client.Get(ctx, cacheKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var breakdown model.PriceBreakdown
	if err := json.Unmarshal(data, &breakdown); err != nil {
		return nil, fmt.Errorf("unmarshal breakdown failed: %w", err)
	}
	return &breakdown, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, breakdown *model.PriceBreakdown) error {
	data, err := json.Marshal(breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown failed: %w", err)
	}
	if ret := r.client.Set(ctx, cacheKey(key), data, r.ttl); ret.Err() != nil {
		return fmt.Errorf("redis set failed: %w", ret.Err())
	}
	return nil
}

var _ QuoteCache = (*RedisCache)(nil)
