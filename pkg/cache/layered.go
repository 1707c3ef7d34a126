package cache

import (
	"context"
	"errors"
	"time"
)

// LayeredCache reads memory first and Redis second. Writes go through both.
type LayeredCache struct {
	mem   *MemoryCache
	redis *RedisCache
}

func NewLayeredCache(mem *MemoryCache, redis *RedisCache) *LayeredCache {
	return &LayeredCache{mem: mem, redis: redis}
}

func (lc *LayeredCache) Get(ctx context.Context, key string) ([]byte, error) {
	if v, err := lc.mem.Get(ctx, key); err == nil {
		return v, nil
	}
	v, err := lc.redis.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	ttl, terr := lc.redis.client.PTTL(ctx, lc.redis.prefix+key).Result()
	if terr != nil || ttl <= 0 {
		ttl = 0
	}
	_ = lc.mem.Set(ctx, key, v, ttl)
	return v, nil
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := lc.redis.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return lc.mem.Set(ctx, key, value, ttl)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.mem.Delete(ctx, keys...)
	return lc.redis.Delete(ctx, keys...)
}

func (lc *LayeredCache) DeleteByPattern(ctx context.Context, pattern string) error {
	_ = lc.mem.DeleteByPattern(ctx, pattern)
	return lc.redis.DeleteByPattern(ctx, pattern)
}

func (lc *LayeredCache) Close() error {
	return errors.Join(lc.mem.Close(), lc.redis.Close())
}
