// Package cache provides a read-through Redis cache for query embeddings
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/siherrmann/schematic/config"
	"github.com/siherrmann/schematic/core/pipeline"
	"github.com/siherrmann/schematic/helper"
	"github.com/siherrmann/schematic/metrics"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is used when the configured TTL is not positive
const DefaultTTL = 24 * time.Hour

// NewClient connects to Redis and pings it
func NewClient(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, helper.NewError("ping redis", err)
	}

	return rdb, nil
}

// EmbeddingCache stores embeddings by text so repeated queries skip the model.
// Concurrent misses of the same text share one embedder call.
type EmbeddingCache struct {
	rdb    redis.UniversalClient
	embed  pipeline.EmbedFunc
	ttl    time.Duration
	prefix string
	group  singleflight.Group
	logger *slog.Logger
}

// NewEmbeddingCache wraps embed with a Redis cache.
// Cache failures are logged and fall through to embed.
func NewEmbeddingCache(rdb redis.UniversalClient, embed pipeline.EmbedFunc, ttl time.Duration, prefix string, logger *slog.Logger) *EmbeddingCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingCache{
		rdb:    rdb,
		embed:  embed,
		ttl:    ttl,
		prefix: prefix,
		logger: logger,
	}
}

// Key returns the Redis key of a text
func (c *EmbeddingCache) Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.prefix + hex.EncodeToString(sum[:])
}

// Embed returns the cached embedding of text or computes and stores it.
// It has the signature of pipeline.EmbedFunc.
func (c *EmbeddingCache) Embed(text string) ([]float32, error) {
	return c.EmbedContext(context.Background(), text)
}

// EmbedFunc returns Embed as a pipeline.EmbedFunc
func (c *EmbeddingCache) EmbedFunc() pipeline.EmbedFunc {
	return c.Embed
}

// EmbedContext is Embed with a context for the Redis calls
func (c *EmbeddingCache) EmbedContext(ctx context.Context, text string) ([]float32, error) {
	if c.embed == nil {
		return nil, helper.NewError("embed", fmt.Errorf("no embedder configured"))
	}

	key := c.Key(text)

	embedding, ok := c.get(ctx, key)
	if ok {
		return embedding, nil
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		embedding, err := c.embed(text)
		if err != nil {
			return nil, err
		}

		if err := c.rdb.Set(ctx, key, encode(embedding), c.ttl).Err(); err != nil {
			metrics.EmbeddingCacheTotal.WithLabelValues(metrics.CacheError).Inc()
			c.logger.Warn("Failed to cache embedding", slog.String("key", key), slog.String("error", err.Error()))
		}

		return embedding, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]float32), nil
}

func (c *EmbeddingCache) get(ctx context.Context, key string) ([]float32, bool) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.EmbeddingCacheTotal.WithLabelValues(metrics.CacheMiss).Inc()
		} else {
			metrics.EmbeddingCacheTotal.WithLabelValues(metrics.CacheError).Inc()
			c.logger.Warn("Failed to read cached embedding", slog.String("key", key), slog.String("error", err.Error()))
		}
		return nil, false
	}

	embedding, err := decode(val)
	if err != nil {
		metrics.EmbeddingCacheTotal.WithLabelValues(metrics.CacheError).Inc()
		c.logger.Warn("Dropping corrupt cached embedding", slog.String("key", key), slog.String("error", err.Error()))
		return nil, false
	}

	metrics.EmbeddingCacheTotal.WithLabelValues(metrics.CacheHit).Inc()
	return embedding, true
}

// Invalidate removes the cached embedding of text
func (c *EmbeddingCache) Invalidate(ctx context.Context, text string) error {
	if err := c.rdb.Del(ctx, c.Key(text)).Err(); err != nil {
		return helper.NewError("delete cached embedding", err)
	}
	return nil
}

// encode stores the vector as little endian float32s
func encode(embedding []float32) []byte {
	b := make([]byte, 4*len(embedding))
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}

func decode(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding of %d bytes is not a float32 vector", len(b))
	}
	embedding := make([]float32, len(b)/4)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return embedding, nil
}
