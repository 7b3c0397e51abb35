package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/providers"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/repositories"
	redisclient "github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/clients/redis"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redisclient.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisclient.NewClientFromRedis(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisAdapter_GetSetDelete(t *testing.T) {
	mr, client := setupMiniredis(t)
	adapter := NewRedisAdapter(client, "dental")
	ctx := context.Background()

	_, err := adapter.Get(ctx, "shades:x")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)

	require.NoError(t, adapter.Set(ctx, "shades:x", []byte(`[]`), 60))
	assert.True(t, mr.Exists("dental:shades:x"))

	value, err := adapter.Get(ctx, "shades:x")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), value)

	mr.FastForward(61 * time.Second)
	_, err = adapter.Get(ctx, "shades:x")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)

	require.NoError(t, adapter.Set(ctx, "a", []byte("1"), 60))
	require.NoError(t, adapter.Set(ctx, "b", []byte("2"), 60))
	require.NoError(t, adapter.Delete(ctx, "a", "b"))
	assert.False(t, mr.Exists("dental:a"))
	assert.False(t, mr.Exists("dental:b"))
}

func increment(t *testing.T, adapter repositories.RateLimitRepository, userID string, w entities.RateLimitWindows, limits entities.RateLimitConfig) bool {
	t.Helper()
	counted, err := adapter.Increment(context.Background(), userID, "recommend-resin", w, limits)
	require.NoError(t, err)
	return counted
}

func TestRedisRateLimitAdapter_UnusedPair(t *testing.T) {
	_, client := setupMiniredis(t)
	adapter := NewRedisRateLimitAdapter(client)

	counters, err := adapter.Get(context.Background(), "user-1", "recommend-resin")

	require.NoError(t, err)
	assert.Nil(t, counters)
}

func TestRedisRateLimitAdapter_CountsPerWindow(t *testing.T) {
	_, client := setupMiniredis(t)
	adapter := NewRedisRateLimitAdapter(client)
	ctx := context.Background()

	// keys expire at real wall-clock instants, so the windows must lie in the future
	start := time.Now().UTC().AddDate(1, 0, 0).Truncate(time.Hour).Add(10 * time.Second)
	w := entities.WindowsAt(start)
	increment(t, adapter, "user-1", w, entities.RateLimitConfig{})
	increment(t, adapter, "user-1", w, entities.RateLimitConfig{})

	counters, err := adapter.Get(ctx, "user-1", "recommend-resin")
	require.NoError(t, err)
	minute, hour, day := counters.Current(w)
	assert.Equal(t, []int{2, 2, 2}, []int{minute, hour, day})

	next := entities.WindowsAt(start.Add(time.Minute))
	increment(t, adapter, "user-1", next, entities.RateLimitConfig{})

	counters, err = adapter.Get(ctx, "user-1", "recommend-resin")
	require.NoError(t, err)
	minute, hour, day = counters.Current(next)
	assert.Equal(t, []int{1, 3, 3}, []int{minute, hour, day})

	// other operations keep their own counters
	other, err := adapter.Get(ctx, "user-1", "recommend-cementation")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestRedisRateLimitAdapter_KeysExpire(t *testing.T) {
	mr, client := setupMiniredis(t)
	adapter := NewRedisRateLimitAdapter(client)

	now := time.Now().UTC()
	w := entities.WindowsAt(now)
	increment(t, adapter, "user-1", w, entities.RateLimitConfig{})

	minuteKey := rateCounterKey("user-1", "recommend-resin", "minute", w.Minute)
	require.True(t, mr.Exists(minuteKey))
	ttl := mr.TTL(minuteKey)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute+counterGrace)
}

func TestRedisRateLimitAdapter_IncrementStopsAtCeiling(t *testing.T) {
	_, client := setupMiniredis(t)
	adapter := NewRedisRateLimitAdapter(client)

	start := time.Now().UTC().AddDate(1, 0, 0).Truncate(time.Hour).Add(10 * time.Second)
	w := entities.WindowsAt(start)
	limits := entities.RateLimitConfig{PerMinute: 2, PerHour: 10}

	assert.True(t, increment(t, adapter, "user-1", w, limits))
	assert.True(t, increment(t, adapter, "user-1", w, limits))
	assert.False(t, increment(t, adapter, "user-1", w, limits))

	// a refused increment leaves every window untouched
	counters, err := adapter.Get(context.Background(), "user-1", "recommend-resin")
	require.NoError(t, err)
	minute, hour, day := counters.Current(w)
	assert.Equal(t, []int{2, 2, 2}, []int{minute, hour, day})

	next := entities.WindowsAt(start.Add(time.Minute))
	assert.True(t, increment(t, adapter, "user-1", next, limits))
}

func TestRedisRateLimitAdapter_ConcurrentIncrementsRespectCeiling(t *testing.T) {
	_, client := setupMiniredis(t)
	adapter := NewRedisRateLimitAdapter(client)

	start := time.Now().UTC().AddDate(1, 0, 0).Truncate(time.Hour).Add(10 * time.Second)
	w := entities.WindowsAt(start)
	limits := entities.RateLimitConfig{PerMinute: 3}

	var wg sync.WaitGroup
	var allowed atomic.Int32
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			counted, err := adapter.Increment(context.Background(), "user-1", "recommend-resin", w, limits)
			if err == nil && counted {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), allowed.Load())
}
