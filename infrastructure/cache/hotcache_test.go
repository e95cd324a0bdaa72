package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Spec §8: "Hot cache at capacity evicts by LRU-within-hot before
// promoting."
func TestInMemoryHotCache_EvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryHotCacheWithCapacity(3, nil)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Hour))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Hour))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), time.Hour))
	assert.Equal(t, 3, c.Len())

	// touching "a" makes "b" the least recently used.
	_, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Set(ctx, "d", []byte("4"), time.Hour))
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, int64(1), c.Evictions())

	_, ok, err = c.Get(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok, "least recently used entry should have been evicted")

	for _, key := range []string{"a", "c", "d"} {
		_, ok, err := c.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, "key %q should still be resident", key)
	}
}

func TestInMemoryHotCache_SetExistingKeyRefreshesRecencyWithoutEviction(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryHotCacheWithCapacity(2, nil)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Hour))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Hour))
	require.NoError(t, c.Set(ctx, "a", []byte("1-updated"), time.Hour))

	require.NoError(t, c.Set(ctx, "c", []byte("3"), time.Hour))

	_, ok, err := c.Get(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok, "b should be evicted since a was refreshed more recently")

	val, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("1-updated"), val)
	assert.Equal(t, int64(1), c.Evictions())
}

func TestInMemoryHotCache_ExpiredEntryIsAMissNotAnError(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryHotCacheWithCapacity(10, nil)
	require.NoError(t, c.Set(ctx, "k", []byte("v"), -time.Second))

	val, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestInMemoryHotCache_DefaultCapacityAppliedForNonPositiveInput(t *testing.T) {
	c := NewInMemoryHotCacheWithCapacity(0, nil)
	assert.Equal(t, DefaultCapacity, c.capacity)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Hour))
	}
	assert.Equal(t, int64(0), c.Evictions())
}
