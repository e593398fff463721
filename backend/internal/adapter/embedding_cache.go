package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"content-graph/backend/pkg/logger"
)

// Embedder is anything that turns text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// cacheClient is the subset of the redis client the cache needs
type cacheClient interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
}

// CachedEmbedder memoises embeddings in Redis. Cache failures fall through
// to the wrapped provider.
type CachedEmbedder struct {
	next   Embedder
	rdb    cacheClient
	model  string
	ttl    time.Duration
	prefix string
	log    *zap.Logger
}

// NewCachedEmbedder wraps next with a Redis cache
func NewCachedEmbedder(next Embedder, rdb cacheClient, model string, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{
		next:   next,
		rdb:    rdb,
		model:  model,
		ttl:    ttl,
		prefix: "embedding:",
		log:    logger.Named("embedding_cache"),
	}
}

// NewRedisClient dials and pings Redis
func NewRedisClient(ctx context.Context, addr string) (*goredis.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Embed returns a cached vector when present, otherwise asks the provider
// and stores the result.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var vec []float32
		if jsonErr := json.Unmarshal(raw, &vec); jsonErr == nil && len(vec) > 0 {
			return vec, nil
		}
		c.log.Warn("Discarding corrupt cached embedding", zap.String("key", key))
	case errors.Is(err, goredis.Nil):
	default:
		c.log.Warn("Embedding cache read failed", zap.Error(err))
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(vec)
	if err == nil {
		if setErr := c.rdb.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.log.Warn("Embedding cache write failed", zap.Error(setErr))
		}
	}
	return vec, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return c.prefix + hex.EncodeToString(sum[:])
}
