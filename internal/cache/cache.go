// Package cache keeps successful parse results keyed by document content, so re-uploads skip decoding.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"coretax/internal"
)

const DefaultPrefix = "coretax:parse:"

// RedisCache implements pipeline.ResultCache. Cache failures degrade to misses.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

type Option func(*RedisCache)

func WithPrefix(prefix string) Option {
	return func(c *RedisCache) { c.prefix = prefix }
}

// WithTTL sets entry lifetime; 0 keeps entries until evicted.
func WithTTL(ttl time.Duration) Option {
	return func(c *RedisCache) { c.ttl = ttl }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *RedisCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewRedisCache wraps a client; the caller owns and closes it.
func NewRedisCache(client *redis.Client, opts ...Option) *RedisCache {
	c := &RedisCache{client: client, prefix: DefaultPrefix, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial parses a redis:// URL and pings the server.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (c *RedisCache) key(k string) string { return c.prefix + k }

func (c *RedisCache) Get(ctx context.Context, key string) (*internal.ParseResult, bool) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		return nil, false
	}

	var res internal.ParseResult
	if err := json.Unmarshal(raw, &res); err != nil {
		c.logger.Warn("cache entry corrupt", "key", key, "error", err)
		_ = c.client.Del(ctx, c.key(key)).Err()
		return nil, false
	}
	return &res, true
}

// Set stores successful results only.
func (c *RedisCache) Set(ctx context.Context, key string, result internal.ParseResult) {
	if result.Status != internal.StatusSuccess {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(key), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}
