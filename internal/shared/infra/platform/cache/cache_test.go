package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedReport struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, time.Minute), srv
}

func TestRedisCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c, _ := newRedisCache(t)
	require.NoError(t, c.Ping(ctx))

	var got cachedReport
	hit, err := c.Get(ctx, "report:1", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "report:1", cachedReport{ID: "1", Status: "Completed"}, 0))

	hit, err = c.Get(ctx, "report:1", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "Completed", got.Status)

	require.NoError(t, c.Delete(ctx, "report:1"))
	hit, err = c.Get(ctx, "report:1", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisCache_UsesDefaultTTL(t *testing.T) {
	ctx := context.Background()
	c, srv := newRedisCache(t)

	require.NoError(t, c.Set(ctx, "k", cachedReport{ID: "k"}, 0))
	assert.Equal(t, time.Minute, srv.TTL("k"))

	srv.FastForward(2 * time.Minute)
	var got cachedReport
	hit, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestInMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(time.Minute, 0)
	defer c.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", cachedReport{ID: "k"}, 10*time.Second))

	var got cachedReport
	hit, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, hit)

	now = now.Add(11 * time.Second)
	hit, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestAsyncSet_WritesInBackground(t *testing.T) {
	c := NewInMemoryCache(time.Minute, 0)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	AsyncSet(ctx, c, "k", cachedReport{ID: "k"}, 0, nil)
	cancel()

	assert.Eventually(t, func() bool {
		var got cachedReport
		hit, _ := c.Get(context.Background(), "k", &got)
		return hit
	}, time.Second, 5*time.Millisecond)
}
