package ksef

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterOpener(calls *int32, token string) OpenSessionFunc {
	return func(ctx context.Context) (string, error) {
		atomic.AddInt32(calls, 1)
		return token, nil
	}
}

func TestGetOrCreateCachesWithinTTL(t *testing.T) {
	cache := NewSessionCache()
	ctx := context.Background()
	var calls int32

	first, err := cache.GetOrCreate(ctx, "5260250274", "tok", counterOpener(&calls, "session-1"))
	require.NoError(t, err)
	second, err := cache.GetOrCreate(ctx, "5260250274", "tok", counterOpener(&calls, "session-2"))
	require.NoError(t, err)

	assert.Equal(t, "session-1", first)
	assert.Equal(t, "session-1", second, "second call must hit the cache")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGetOrCreateReopensAfterExpiry(t *testing.T) {
	cache := NewSessionCache()
	cache.ttl = 10 * time.Millisecond
	ctx := context.Background()
	var calls int32

	_, err := cache.GetOrCreate(ctx, "5260250274", "tok", counterOpener(&calls, "session-1"))
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	token, err := cache.GetOrCreate(ctx, "5260250274", "tok", counterOpener(&calls, "session-2"))
	require.NoError(t, err)
	assert.Equal(t, "session-2", token)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestGetOrCreateDistinctKeys(t *testing.T) {
	cache := NewSessionCache()
	ctx := context.Background()
	var calls int32

	a, err := cache.GetOrCreate(ctx, "1111111111", "tok", counterOpener(&calls, "session-a"))
	require.NoError(t, err)
	b, err := cache.GetOrCreate(ctx, "2222222222", "tok", counterOpener(&calls, "session-b"))
	require.NoError(t, err)

	assert.Equal(t, "session-a", a)
	assert.Equal(t, "session-b", b)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestGetOrCreateFailedOpenLeavesNoEntry(t *testing.T) {
	cache := NewSessionCache()
	ctx := context.Background()

	_, err := cache.GetOrCreate(ctx, "5260250274", "tok", func(ctx context.Context) (string, error) {
		return "", errors.New("ksef unavailable")
	})
	require.Error(t, err)

	var calls int32
	token, err := cache.GetOrCreate(ctx, "5260250274", "tok", counterOpener(&calls, "session-1"))
	require.NoError(t, err)
	assert.Equal(t, "session-1", token)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "failed open must not be cached")
}

func TestGetOrCreateConcurrentMissOpensOnce(t *testing.T) {
	cache := NewSessionCache()
	ctx := context.Background()
	var calls int32

	slowOpen := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return "session-1", nil
	}

	const workers = 16
	var wg sync.WaitGroup
	results := make([]string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := cache.GetOrCreate(ctx, "5260250274", "tok", slowOpen)
			assert.NoError(t, err)
			results[i] = token
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "concurrent misses must collapse into one open")
	for _, token := range results {
		assert.Equal(t, "session-1", token)
	}
}

func TestInvalidateRemovesMatchingToken(t *testing.T) {
	cache := NewSessionCache()
	ctx := context.Background()
	var calls int32

	_, err := cache.GetOrCreate(ctx, "5260250274", "tok", counterOpener(&calls, "session-1"))
	require.NoError(t, err)

	cache.Invalidate("session-1")

	token, err := cache.GetOrCreate(ctx, "5260250274", "tok", counterOpener(&calls, "session-2"))
	require.NoError(t, err)
	assert.Equal(t, "session-2", token)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestSweepCountsExpiredEntries(t *testing.T) {
	cache := NewSessionCache()
	cache.ttl = 10 * time.Millisecond
	ctx := context.Background()
	var calls int32

	_, err := cache.GetOrCreate(ctx, "1111111111", "tok", counterOpener(&calls, "s1"))
	require.NoError(t, err)
	_, err = cache.GetOrCreate(ctx, "2222222222", "tok", counterOpener(&calls, "s2"))
	require.NoError(t, err)

	assert.Equal(t, 0, cache.Sweep(), "nothing expired yet")

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, cache.Sweep())
	assert.Equal(t, 0, cache.Sweep())
}
