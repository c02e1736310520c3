package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

func TestGetSetJSONRoundTrip(t *testing.T) {
	setupMiniredis(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, SetJSON(ctx, "test:key", payload{Name: "capsule", Count: 3}, time.Minute))

	var got payload
	found, err := GetJSON(ctx, "test:key", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, payload{Name: "capsule", Count: 3}, got)

	found, err = GetJSON(ctx, "test:missing", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAsideCachesFetchResult(t *testing.T) {
	setupMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *[]string) func() error {
		return func() error {
			calls++
			*dest = []string{"a", "b"}
			return nil
		}
	}

	var first []string
	require.NoError(t, Aside(ctx, "feed:test", &first, time.Minute, fetch(&first)))
	assert.Equal(t, 1, calls)

	var second []string
	require.NoError(t, Aside(ctx, "feed:test", &second, time.Minute, fetch(&second)))
	assert.Equal(t, 1, calls, "second read must be served from cache")
	assert.Equal(t, first, second)
}

func TestAsidePropagatesFetchError(t *testing.T) {
	setupMiniredis(t)

	sentinel := errors.New("source unavailable")
	var dest []string
	err := Aside(context.Background(), "feed:err", &dest, time.Minute, func() error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}

func TestAsideTTLExpiry(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	calls := 0
	lookup := func(dest *int) error {
		calls++
		*dest = calls
		return nil
	}

	var v int
	require.NoError(t, Aside(ctx, "feed:ttl", &v, 30*time.Second, func() error { return lookup(&v) }))
	mr.FastForward(31 * time.Second)
	require.NoError(t, Aside(ctx, "feed:ttl", &v, 30*time.Second, func() error { return lookup(&v) }))
	assert.Equal(t, 2, calls)
}

func TestAsideWithoutRedisFallsThrough(t *testing.T) {
	SetClient(nil)

	calls := 0
	var v int
	for i := 0; i < 2; i++ {
		require.NoError(t, Aside(context.Background(), "feed:nored", &v, time.Minute, func() error {
			calls++
			v = calls
			return nil
		}))
	}
	assert.Equal(t, 2, calls, "without Redis every read hits the source")
}

func TestInvalidate(t *testing.T) {
	setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, "test:gone", 42, time.Minute))
	Invalidate(ctx, "test:gone")

	var v int
	found, err := GetJSON(ctx, "test:gone", &v)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFeedKeys(t *testing.T) {
	assert.Equal(t, "feed:latest:all:20:0", LatestFeedKey("", 20, 0))
	assert.Equal(t, "feed:latest:Science:10:20", LatestFeedKey("Science", 10, 20))
	assert.Equal(t, "news:15", NewsKey(15))
}
