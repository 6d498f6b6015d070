package txcache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidMaxEntries(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, -3} {
		c, err := New[int](n, nil)
		require.ErrorIs(t, err, ErrInvalidMaxEntries)
		assert.Nil(t, c)
	}
}

func TestAdd_Idempotent(t *testing.T) {
	t.Parallel()

	c, err := New[[]string](4, nil)
	require.NoError(t, err)

	assert.False(t, c.Has("tx1"))
	require.True(t, c.Add("tx1", []string{"a", "b"}))
	assert.True(t, c.Has("tx1"))

	require.False(t, c.Add("tx1", []string{"c"}))
	got, ok := c.Get("tx1")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 1, c.Len())
}

func TestAdd_EvictsOldestInserted(t *testing.T) {
	t.Parallel()

	var evicted []string
	c, err := New(3, func(id string, v int) {
		evicted = append(evicted, fmt.Sprintf("%s=%d", id, v))
	})
	require.NoError(t, err)

	for i, id := range []string{"a", "b", "c"} {
		c.Add(id, i)
	}
	// Reads never refresh an entry.
	_, _ = c.Get("a")
	assert.True(t, c.Has("a"))

	c.Add("d", 3)
	c.Add("e", 4)

	assert.Equal(t, []string{"a=0", "b=1"}, evicted)
	assert.False(t, c.Has("a"))
	assert.False(t, c.Has("b"))
	for _, id := range []string{"c", "d", "e"} {
		assert.True(t, c.Has(id), id)
	}
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 3, c.MaxEntries())

	// An evicted id is admitted again.
	require.True(t, c.Add("a", 9))
	assert.Equal(t, []string{"a=0", "b=1", "c=2"}, evicted)
}

func TestAdd_WrapsManyTimes(t *testing.T) {
	t.Parallel()

	c, err := New[int](5, nil)
	require.NoError(t, err)
	for i := range 103 {
		c.Add(fmt.Sprint(i), i)
	}
	assert.Equal(t, 5, c.Len())
	for i := 98; i < 103; i++ {
		v, ok := c.Get(fmt.Sprint(i))
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.False(t, c.Has("97"))
}

func TestAdd_ConcurrentSameID(t *testing.T) {
	t.Parallel()

	c, err := New[int](16, nil)
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Add("same", i) {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, inserted)
	assert.Equal(t, 1, c.Len())
}
