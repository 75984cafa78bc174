package source

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cmml-outcomes-server/internal/domain"
)

// DocumentCache caches raw outcome documents in Redis so a dashboard
// refresh does not hammer the static data host. It caches whole documents
// keyed by URL; aggregates are never cached here, they are recomputed per
// load.
type DocumentCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewDocumentCache creates a Redis-backed document cache
func NewDocumentCache(config domain.CacheConfig) (*DocumentCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &DocumentCache{
		redis:      client,
		defaultTTL: config.DefaultTTL,
	}, nil
}

// Get retrieves a cached document body; the second return value reports a hit
func (c *DocumentCache) Get(ctx context.Context, url string) ([]byte, bool, error) {
	val, err := c.redis.Get(ctx, c.key(url)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached document: %w", err)
	}
	return val, true, nil
}

// Set caches a document body under its source URL
func (c *DocumentCache) Set(ctx context.Context, url string, body []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	return c.redis.Set(ctx, c.key(url), body, ttl).Err()
}

// Invalidate removes a cached document so the next fetch goes to origin
func (c *DocumentCache) Invalidate(ctx context.Context, url string) error {
	return c.redis.Del(ctx, c.key(url)).Err()
}

// Ping checks if the Redis connection is alive
func (c *DocumentCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *DocumentCache) Close() error {
	return c.redis.Close()
}

func (c *DocumentCache) key(url string) string {
	hash := sha256.Sum256([]byte(url))
	return fmt.Sprintf("outcomes:doc:%x", hash[:8])
}
