package adapter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	mu      sync.Mutex
	data    map[string]string
	readErr error
	ttls    map[string]time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCache) Get(ctx context.Context, key string) *goredis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return goredis.NewStringResult("", f.readErr)
	}
	v, ok := f.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	return goredis.NewStatusResult("OK", nil)
}

type countingEmbedder struct {
	calls int
	vec   []float32
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.vec, c.err
}

func TestCachedEmbedder_MissThenHit(t *testing.T) {
	cache := newFakeCache()
	next := &countingEmbedder{vec: []float32{0.5, 0.5}}
	embedder := NewCachedEmbedder(next, cache, "m", time.Hour)

	ctx := context.Background()
	first, err := embedder.Embed(ctx, "hello")
	require.NoError(t, err)
	second, err := embedder.Embed(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, time.Hour, cache.ttls[embedder.key("hello")])
}

func TestCachedEmbedder_KeyedByModel(t *testing.T) {
	a := NewCachedEmbedder(nil, nil, "model-a", time.Hour)
	b := NewCachedEmbedder(nil, nil, "model-b", time.Hour)
	assert.NotEqual(t, a.key("hello"), b.key("hello"))
}

func TestCachedEmbedder_ReadFailureFallsThrough(t *testing.T) {
	cache := newFakeCache()
	cache.readErr = errors.New("connection refused")
	next := &countingEmbedder{vec: []float32{1}}
	embedder := NewCachedEmbedder(next, cache, "m", time.Hour)

	vec, err := embedder.Embed(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vec)
	assert.Equal(t, 1, next.calls)
}

func TestCachedEmbedder_ProviderErrorNotCached(t *testing.T) {
	cache := newFakeCache()
	next := &countingEmbedder{err: errors.New("unavailable")}
	embedder := NewCachedEmbedder(next, cache, "m", time.Hour)

	_, err := embedder.Embed(context.Background(), "hello")

	assert.Error(t, err)
	assert.Empty(t, cache.data)
}

func TestCachedEmbedder_CorruptEntryIsReplaced(t *testing.T) {
	cache := newFakeCache()
	next := &countingEmbedder{vec: []float32{0.25}}
	embedder := NewCachedEmbedder(next, cache, "m", time.Hour)
	cache.data[embedder.key("hello")] = "not-json"

	vec, err := embedder.Embed(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.25}, vec)
	assert.Equal(t, "[0.25]", cache.data[embedder.key("hello")])
}
