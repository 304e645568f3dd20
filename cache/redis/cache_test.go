package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hupe1980/ragmesh/cache/redis"
	"github.com/hupe1980/ragmesh/websearch"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T, opts ...redis.Option) (*redis.Cache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	c := redis.NewFromClient(client, opts...)
	t.Cleanup(func() { _ = c.Close() })

	return c, mr
}

func TestCache_GetSetDelete(t *testing.T) {
	c, mr := newCache(t, redis.WithPrefix("test:"), redis.WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	assert.True(t, mr.Exists("test:k"))
	assert.Equal(t, time.Minute, mr.TTL("test:k"))

	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_Expiry(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Second))
	mr.FastForward(2 * time.Second)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_BacksCachedWebSearch(t *testing.T) {
	c, _ := newCache(t)

	calls := 0
	provider := websearch.NewCachedProvider(websearch.ProviderFunc(func(_ context.Context, q string) (*websearch.Result, error) {
		calls++
		return &websearch.Result{Query: q, Answer: "Paris"}, nil
	}), c)

	for i := 0; i < 3; i++ {
		res, err := provider.Search(context.Background(), "capital of France")
		require.NoError(t, err)
		assert.Equal(t, "Paris", res.Answer)
	}

	assert.Equal(t, 1, calls)
}
