package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	c := New[string]()

	require.NotNil(t, c)
	assert.Zero(t, c.Len())
}

func TestCache_GetSetDelete(t *testing.T) {
	c := New[int]()

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 3)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, 2, c.Len())

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	// deleting an unknown key is a no-op
	c.Delete("nope")
	assert.Equal(t, 1, c.Len())
}

func TestCache_StoresNilPointers(t *testing.T) {
	c := New[*string]()
	c.Set("k", nil)

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestCache_GetOrLoad(t *testing.T) {
	c := New[string]()
	calls := 0
	load := func(context.Context) string {
		calls++
		return "loaded"
	}

	assert.Equal(t, "loaded", c.GetOrLoad(t.Context(), "k", load))
	assert.Equal(t, "loaded", c.GetOrLoad(t.Context(), "k", load))
	assert.Equal(t, 1, calls)

	c.Set("preset", "value")
	assert.Equal(t, "value", c.GetOrLoad(t.Context(), "preset", load))
	assert.Equal(t, 1, calls)
}

func TestCache_GetOrLoadSharesConcurrentLoads(t *testing.T) {
	c := New[int]()
	var calls atomic.Int32
	release := make(chan struct{})

	load := func(context.Context) int {
		calls.Add(1)
		<-release
		return 42
	}

	const goroutines = 20
	var wg sync.WaitGroup
	results := make([]int, goroutines)
	for i := range goroutines {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.GetOrLoad(context.Background(), "site", load)
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, 42, r)
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int]()
	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c.Set("key", i)
		}(i)
		go func() {
			defer wg.Done()
			c.Get("key")
		}()
	}
	wg.Wait()

	_, ok := c.Get("key")
	assert.True(t, ok)
}
