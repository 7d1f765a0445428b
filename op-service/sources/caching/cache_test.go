package caching

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingMetrics struct {
	adds      int
	evictions int
	hits      int
	misses    int
	size      int
}

func (m *recordingMetrics) CacheAdd(label string, cacheSize int, evicted bool) {
	m.adds++
	m.size = cacheSize
	if evicted {
		m.evictions++
	}
}

func (m *recordingMetrics) CacheGet(label string, hit bool) {
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func TestLRUCache(t *testing.T) {
	m := new(recordingMetrics)
	cache := NewLRUCache[int, string](m, "test", 2)

	require.False(t, cache.Add(1, "one"))
	require.False(t, cache.Add(2, "two"))
	v, ok := cache.Get(1)
	require.True(t, ok)
	require.Equal(t, "one", v)

	// 2 is the least recently used entry now
	require.True(t, cache.Add(3, "three"))
	_, ok = cache.Get(2)
	require.False(t, ok)

	require.Equal(t, 3, m.adds)
	require.Equal(t, 1, m.evictions)
	require.Equal(t, 1, m.hits)
	require.Equal(t, 1, m.misses)
	require.Equal(t, 2, m.size)
}

func TestLRUCacheWithoutMetrics(t *testing.T) {
	cache := NewLRUCache[string, int](nil, "test", 1)
	cache.Add("a", 1)
	v, ok := cache.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)
}
