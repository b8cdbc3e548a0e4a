package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/raaihank/secureclaw/internal/config"
)

// EmbeddingCache handles Redis-based caching of text embeddings
type EmbeddingCache struct {
	client *redis.Client
	config config.CacheConfig
	logger *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// Stats represents cache performance statistics
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hit_rate"`
	TotalKeys int64   `json:"total_keys"`
}

// New creates a Redis-backed embedding cache and verifies the connection.
// Addr may be host:port or a redis:// URL.
func New(cfg config.CacheConfig, logger *zap.Logger) (*EmbeddingCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	c := &EmbeddingCache{
		client: client,
		config: cfg,
		logger: logger,
	}

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Embedding cache initialized",
		zap.String("redis", maskRedisURL(cfg.Addr)),
		zap.Int("pool_size", opts.PoolSize),
		zap.Duration("ttl", cfg.TTL))

	return c, nil
}

func clientOptions(cfg config.CacheConfig) (*redis.Options, error) {
	var opts *redis.Options
	if strings.HasPrefix(cfg.Addr, "redis://") || strings.HasPrefix(cfg.Addr, "rediss://") {
		parsed, err := redis.ParseURL(cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

func (c *EmbeddingCache) key(k string) string {
	if c.config.KeyPrefix == "" {
		return k
	}
	return c.config.KeyPrefix + ":" + k
}

// Get looks up an embedding. A miss returns ok == false and a nil error.
func (c *EmbeddingCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup failed: %w", err)
	}

	embedding, err := parseEmbedding(data)
	if err != nil {
		// Delete corrupted cache entry
		c.client.Del(ctx, c.key(key))
		c.misses.Add(1)
		c.logger.Warn("Dropped corrupt cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false, nil
	}

	c.hits.Add(1)
	return embedding, true, nil
}

// Set stores an embedding with the configured TTL.
func (c *EmbeddingCache) Set(ctx context.Context, key string, embedding []float32) error {
	if err := c.client.Set(ctx, c.key(key), formatEmbedding(embedding), c.config.TTL).Err(); err != nil {
		return fmt.Errorf("failed to cache embedding: %w", err)
	}
	return nil
}

// GetStats returns cache performance statistics
func (c *EmbeddingCache) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}

	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}

	keys, err := c.client.DBSize(ctx).Result()
	if err != nil {
		return stats, fmt.Errorf("failed to get Redis db size: %w", err)
	}
	stats.TotalKeys = keys

	return stats, nil
}

// Clear removes all cached embeddings under the key prefix
func (c *EmbeddingCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.key("*"), 0).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	// Delete keys in batches
	batchSize := 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}

		if err := c.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	c.logger.Info("Embedding cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection
func (c *EmbeddingCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// formatEmbedding encodes an embedding as comma-separated floats.
func formatEmbedding(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, val := range embedding {
		parts[i] = strconv.FormatFloat(float64(val), 'g', -1, 32)
	}
	return strings.Join(parts, ",")
}

func parseEmbedding(data string) ([]float32, error) {
	if data == "" {
		return nil, fmt.Errorf("empty embedding")
	}

	parts := strings.Split(data, ",")
	embedding := make([]float32, len(parts))
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("failed to parse embedding component %d: %w", i, err)
		}
		embedding[i] = float32(val)
	}
	return embedding, nil
}

// maskRedisURL masks the password in a Redis URL for logging
func maskRedisURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	scheme := strings.Index(url, "://")
	userinfo := url[:at]
	if scheme >= 0 {
		userinfo = url[scheme+3 : at]
	}
	colon := strings.Index(userinfo, ":")
	if colon < 0 {
		return url
	}
	prefix := ""
	if scheme >= 0 {
		prefix = url[:scheme+3]
	}
	return prefix + userinfo[:colon] + ":***" + url[at:]
}
