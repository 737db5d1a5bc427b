package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingKey(t *testing.T) {
	k1 := EmbeddingKey("text-embedding-3-small", "farmers received payments")
	k2 := EmbeddingKey("text-embedding-3-small", "farmers received payments")
	k3 := EmbeddingKey("text-embedding-3-large", "farmers received payments")
	k4 := EmbeddingKey("text-embedding-3-small", "different sentence")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.NotEqual(t, k1, k4)
	assert.Contains(t, k1, "sdgscope:emb:v1:")
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	_, found := c.Get("missing")
	assert.False(t, found)

	require.NoError(t, c.Set("k", []byte("v"), 0))
	val, found := c.Get("k")
	require.True(t, found)
	assert.Equal(t, []byte("v"), val)

	require.NoError(t, c.Delete("k"))
	_, found = c.Get("k")
	assert.False(t, found)

	require.NoError(t, c.Set("a", []byte("1"), 0))
	require.NoError(t, c.Set("b", []byte("2"), 0))
	require.NoError(t, c.Clear())
	_, found = c.Get("a")
	assert.False(t, found)
}

func TestDiskCache_RoundTrip(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Minute)

	_, found := c.Get("missing")
	assert.False(t, found)

	require.NoError(t, c.Set("somekey", []byte("payload"), 0))
	val, found := c.Get("somekey")
	require.True(t, found)
	assert.Equal(t, []byte("payload"), val)

	require.NoError(t, c.Delete("somekey"))
	_, found = c.Get("somekey")
	assert.False(t, found)
}

func TestDiskCache_Sharding(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Minute)

	require.NoError(t, c.Set("abcdef", []byte("x"), 0))
	_, err := os.Stat(filepath.Join(dir, "ef", "abcdef.cache"))
	require.NoError(t, err)

	// Keys shorter than two characters land in the default shard.
	require.NoError(t, c.Set("k", []byte("y"), 0))
	_, err = os.Stat(filepath.Join(dir, "00", "k.cache"))
	require.NoError(t, err)
}

func TestDiskCache_Expiry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Minute)

	require.NoError(t, c.Set("soon", []byte("x"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, found := c.Get("soon")
	assert.False(t, found)

	// Expired entries are removed on read.
	_, err := os.Stat(filepath.Join(dir, "on", "soon.cache"))
	assert.True(t, os.IsNotExist(err))
}

func TestDiskCache_CorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Minute)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ey"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ey", "key.cache"), []byte("not json"), 0o644))

	_, found := c.Get("key")
	assert.False(t, found)
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	c := NewLayeredCache(time.Minute, dir, time.Minute)

	require.NoError(t, c.Set("k", []byte("v"), 0))

	// Drop the memory tier only; the next Get must fall through to disk and
	// repopulate memory.
	require.NoError(t, c.memory.Clear())
	_, found := c.memory.Get("k")
	require.False(t, found)

	val, found := c.Get("k")
	require.True(t, found)
	assert.Equal(t, []byte("v"), val)

	val, found = c.memory.Get("k")
	require.True(t, found)
	assert.Equal(t, []byte("v"), val)
}

func TestLayeredCache_DeleteAndClear(t *testing.T) {
	c := NewLayeredCache(time.Minute, t.TempDir(), time.Minute)

	require.NoError(t, c.Set("k", []byte("v"), 0))
	require.NoError(t, c.Delete("k"))
	_, found := c.Get("k")
	assert.False(t, found)

	require.NoError(t, c.Set("a", []byte("1"), 0))
	require.NoError(t, c.Clear())
	_, found = c.Get("a")
	assert.False(t, found)
}
