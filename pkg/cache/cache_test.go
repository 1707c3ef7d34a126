package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rc := NewRedisCacheFromClient(client, "test:")
	t.Cleanup(func() { _ = rc.Close() })
	return mr, rc
}

func newMemory(t *testing.T, opts ...MemoryOption) *MemoryCache {
	t.Helper()
	mc := NewMemoryCache(opts...)
	t.Cleanup(func() { _ = mc.Close() })
	return mc
}

func TestMemoryCacheGetSet(t *testing.T) {
	ctx := context.Background()
	mc := newMemory(t)

	_, err := mc.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "a", []byte("1"), time.Minute))
	got, err := mc.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	got[0] = 'x'
	again, _ := mc.Get(ctx, "a")
	assert.Equal(t, []byte("1"), again, "returned slices are copies")
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc := newMemory(t)
	now := time.Date(2017, 8, 16, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Set(ctx, "a", []byte("1"), time.Minute))
	now = now.Add(2 * time.Minute)
	_, err := mc.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := newMemory(t, WithMemoryMaxSize(2))

	require.NoError(t, mc.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, mc.Set(ctx, "b", []byte("2"), 0))
	_, err := mc.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, mc.Set(ctx, "c", []byte("3"), 0))

	_, err = mc.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = mc.Get(ctx, "a")
	assert.NoError(t, err)
	assert.Equal(t, 2, mc.Len())
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	ctx := context.Background()
	mc := newMemory(t)
	for _, k := range []string{"forecast:1", "forecast:2", "other:1"} {
		require.NoError(t, mc.Set(ctx, k, []byte(k), 0))
	}
	require.NoError(t, mc.DeleteByPattern(ctx, "forecast:*"))
	assert.Equal(t, 1, mc.Len())
	assert.Error(t, mc.DeleteByPattern(ctx, "["))
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	mr, rc := newRedis(t)

	require.NoError(t, rc.Set(ctx, "a", []byte("1"), time.Minute))
	assert.True(t, mr.Exists("test:a"))

	got, err := rc.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	mr.FastForward(2 * time.Minute)
	_, err = rc.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, rc.Set(ctx, "forecast:1", []byte("x"), 0))
	require.NoError(t, rc.Set(ctx, "forecast:2", []byte("y"), 0))
	require.NoError(t, rc.Set(ctx, "keep", []byte("z"), 0))
	require.NoError(t, rc.DeleteByPattern(ctx, "forecast:*"))
	assert.False(t, mr.Exists("test:forecast:1"))
	assert.True(t, mr.Exists("test:keep"))

	require.NoError(t, rc.Delete(ctx, "keep"))
	assert.False(t, mr.Exists("test:keep"))
}

func TestLayeredCache(t *testing.T) {
	ctx := context.Background()
	mr, rc := newRedis(t)
	mem := newMemory(t)
	lc := NewLayeredCache(mem, rc)

	require.NoError(t, lc.Set(ctx, "a", []byte("1"), time.Minute))
	assert.Equal(t, 1, mem.Len())

	require.NoError(t, mem.Delete(ctx, "a"))
	got, err := lc.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)
	assert.Equal(t, 1, mem.Len(), "redis hit backfills memory")

	require.NoError(t, lc.DeleteByPattern(ctx, "*"))
	_, err = lc.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.False(t, mr.Exists("test:a"))
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	mc := newMemory(t)
	type payload struct {
		Values []float64 `json:"values"`
	}
	require.NoError(t, SetJSON(ctx, mc, "p", payload{Values: []float64{1.5}}, 0))
	got, err := GetJSON[payload](ctx, mc, "p")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5}, got.Values)
}

func TestHashKey(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", HashKey(nil))
	assert.Equal(t, "forecast:abc", GenerateKey("forecast", "abc"))
}
