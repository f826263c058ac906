package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheStore_AbsentKeyReadsAsVersionZero(t *testing.T) {
	store := NewCacheStore()

	value, version, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, value)
	assert.Equal(t, int64(0), version)
}

func TestCacheStore_CompareAndSetCreatesAtVersionZero(t *testing.T) {
	store := NewCacheStore()
	ctx := context.Background()

	ok, err := store.CompareAndSet(ctx, "k", 0, "v1", 0)
	require.NoError(t, err)
	require.True(t, ok)

	value, version, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", value)
	assert.Equal(t, int64(1), version)
}

func TestCacheStore_CompareAndSetRejectsStaleVersion(t *testing.T) {
	store := NewCacheStore()
	ctx := context.Background()

	ok, err := store.CompareAndSet(ctx, "k", 0, "v1", 0)
	require.NoError(t, err)
	require.True(t, ok)

	// A writer holding the pre-write version must lose.
	ok, err = store.CompareAndSet(ctx, "k", 0, "v2", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	value, version, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", value)
	assert.Equal(t, int64(1), version)
}

func TestCacheStore_SetWithTTLAdvancesVersion(t *testing.T) {
	store := NewCacheStore()
	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "k", "v1", 0))
	require.NoError(t, store.SetWithTTL(ctx, "k", "v2", 0))

	value, version, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", value)
	assert.Equal(t, int64(2), version)
}

func TestCacheStore_EntriesExpire(t *testing.T) {
	store := NewCacheStore()
	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "k", "v1", 10*time.Millisecond))

	time.Sleep(20 * time.Millisecond)

	value, version, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, value)
	assert.Equal(t, int64(0), version, "expired entry must read as absent")
}

func TestCacheStore_Delete(t *testing.T) {
	store := NewCacheStore()
	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "k", "v1", 0))
	require.NoError(t, store.Delete(ctx, "k"))

	value, _, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestCacheStore_ConcurrentCASSingleWinner(t *testing.T) {
	store := NewCacheStore()
	ctx := context.Background()

	const writers = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ok, err := store.CompareAndSet(ctx, "k", 0, "winner", 0)
			if err == nil && ok {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for range wins {
		winners++
	}
	assert.Equal(t, 1, winners, "only one CAS against the same version may succeed")
}
