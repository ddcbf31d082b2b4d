package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisService, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := NewRedisService(mr.Addr(), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, mr
}

// exerciseCache runs the same checks against any Cache implementation.
func exerciseCache(t *testing.T, cache Cache) {
	ctx := context.Background()

	require.NoError(t, cache.Ping(ctx))

	require.NoError(t, cache.Put(ctx, "adventure:b", []byte(`{"title":"Neon"}`), time.Minute))
	require.NoError(t, cache.Put(ctx, "adventure:a", []byte(`{"title":"Grove"}`), 0))
	require.NoError(t, cache.Put(ctx, "other:c", []byte("x"), time.Minute))

	value, found, err := cache.Fetch(ctx, "adventure:b")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"title":"Neon"}`, string(value))

	value, found, err = cache.Fetch(ctx, "adventure:missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, value)

	keys, err := cache.Keys(ctx, "adventure:")
	require.NoError(t, err)
	assert.Equal(t, []string{"adventure:a", "adventure:b"}, keys)

	keys, err = cache.Keys(ctx, "nothing:")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRedisService_Basic(t *testing.T) {
	svc, _ := setupTestRedis(t)
	exerciseCache(t, svc)
}

func TestMemoryCache_Basic(t *testing.T) {
	exerciseCache(t, NewMemoryCache())
}

func TestRedisService_Expiration(t *testing.T) {
	svc, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, svc.Put(ctx, "adventure:k", []byte("v"), time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("adventure:k"))
	mr.FastForward(2 * time.Minute)

	_, found, err := svc.Fetch(ctx, "adventure:k")
	require.NoError(t, err)
	assert.False(t, found)

	keys, err := svc.Keys(ctx, "adventure:")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemoryCache_Expiration(t *testing.T) {
	cache := NewMemoryCache()
	now := time.Date(2087, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "adventure:k", []byte("v"), time.Minute))
	value, found, _ := cache.Fetch(ctx, "adventure:k")
	assert.True(t, found)
	assert.Equal(t, "v", string(value))

	now = now.Add(2 * time.Minute)
	_, found, _ = cache.Fetch(ctx, "adventure:k")
	assert.False(t, found)

	keys, _ := cache.Keys(ctx, "adventure:")
	assert.Empty(t, keys)
}

func TestMemoryCache_CopiesValues(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	buf := []byte("neon")
	require.NoError(t, cache.Put(ctx, "k", buf, 0))
	buf[0] = 'x'

	value, _, _ := cache.Fetch(ctx, "k")
	assert.Equal(t, "neon", string(value))
	value[0] = 'y'

	again, _, _ := cache.Fetch(ctx, "k")
	assert.Equal(t, "neon", string(again))
}

func TestParseRedisURL(t *testing.T) {
	opts, err := parseRedisURL("redis://:secret@cache:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	opts, err = parseRedisURL("localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)

	_, err = parseRedisURL("redis://cache:6379/notanumber")
	assert.Error(t, err)
}

func TestRedisService_WaitForConnection(t *testing.T) {
	svc, _ := setupTestRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, svc.WaitForConnection(ctx))
}

func TestRedisService_WaitForConnection_GivesUp(t *testing.T) {
	svc, mr := setupTestRedis(t)
	mr.Close()
	svc.WithRetry(2, 10*time.Millisecond)

	err := svc.WaitForConnection(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}
