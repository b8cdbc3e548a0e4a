package embeddings

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// VectorCache stores embeddings by key. A miss is reported as ok == false
// with a nil error.
type VectorCache interface {
	Get(ctx context.Context, key string) (embedding []float32, ok bool, err error)
	Set(ctx context.Context, key string, embedding []float32) error
}

// CachedEmbedder consults a VectorCache before delegating to the wrapped
// embedder. Cache failures are logged and never fail an embedding.
type CachedEmbedder struct {
	inner   Embedder
	cache   VectorCache
	timeout time.Duration
	logger  *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// NewCachedEmbedder wraps inner with cache. timeout bounds each cache call.
func NewCachedEmbedder(inner Embedder, cache VectorCache, timeout time.Duration, logger *zap.Logger) *CachedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	return &CachedEmbedder{
		inner:   inner,
		cache:   cache,
		timeout: timeout,
		logger:  logger,
	}
}

// Name implements Embedder
func (c *CachedEmbedder) Name() string {
	return c.inner.Name()
}

// Dimension implements Embedder
func (c *CachedEmbedder) Dimension() int {
	return c.inner.Dimension()
}

// Embed implements Embedder
func (c *CachedEmbedder) Embed(text string) ([]float32, error) {
	key := CacheKey(c.inner.Name(), text)

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	cached, ok, err := c.cache.Get(ctx, key)
	cancel()
	switch {
	case err != nil:
		c.errors.Add(1)
		c.logger.Warn("Embedding cache lookup failed", zap.Error(err))
	case ok:
		c.hits.Add(1)
		return cached, nil
	default:
		c.misses.Add(1)
	}

	embedding, err := c.inner.Embed(text)
	if err != nil {
		return nil, err
	}

	ctx, cancel = context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.cache.Set(ctx, key, embedding); err != nil {
		c.errors.Add(1)
		c.logger.Warn("Failed to cache embedding", zap.Error(err))
	}
	return embedding, nil
}

// Stats returns a snapshot of the cache counters.
func (c *CachedEmbedder) Stats() CacheStats {
	stats := CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Errors: c.errors.Load(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}
