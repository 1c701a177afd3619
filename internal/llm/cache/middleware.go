// Package cache provides Redis-based caching middleware for LLM responses.
// Successful completions are stored under their canonical idempotency key so
// that re-running a document against the same prompts skips paid calls.
// Redis failures degrade to pass-through.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/configuration"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/transport"
)

const (
	defaultPoolSize   = 10
	connectionTimeout = 5 * time.Second
)

// RedisClient is the subset of the go-redis client used by the cache.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// cacheEntry is the stored form of a response.
type cacheEntry struct {
	Content      string                    `json:"content"`
	FinishReason transport.FinishReason    `json:"finish_reason"`
	Usage        transport.NormalizedUsage `json:"usage"`
	StoredAtMs   int64                     `json:"stored_at_ms"`
}

// cacheMiddleware implements Redis-based caching for LLM responses.
type cacheMiddleware struct {
	client RedisClient
	ttl    time.Duration
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Errors int64 `json:"errors"`
}

// NewCacheMiddlewareWithRedis creates a caching middleware for LLM responses.
// If client is nil and caching is enabled, a Redis client is created from cfg
// and pinged; a failed ping disables the cache. The returned stats function
// reports hit and miss counters.
func NewCacheMiddlewareWithRedis(ctx context.Context, cfg configuration.CacheConfig, client RedisClient) (transport.Middleware, func() Stats, error) {
	if !cfg.Enabled {
		return passThrough, func() Stats { return Stats{} }, nil
	}

	if client == nil {
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: defaultPoolSize,
		})

		timeoutCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
		defer cancel()

		if err := rc.Ping(timeoutCtx).Err(); err != nil {
			slog.Warn("Redis connection failed, cache disabled", "error", err, "addr", cfg.RedisAddr)
			_ = rc.Close()
			return passThrough, func() Stats { return Stats{} }, nil
		}
		client = rc
	}

	cm := &cacheMiddleware{
		client: client,
		ttl:    cfg.TTL,
		logger: slog.Default().With("component", "cache"),
	}
	return cm.middleware(), cm.stats, nil
}

func passThrough(next transport.Handler) transport.Handler { return next }

func (c *cacheMiddleware) stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Errors: c.errors.Load()}
}

func (c *cacheMiddleware) middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			key, err := buildKey(req)
			if err != nil {
				c.logger.Warn("cache key validation failed", "error", err)
				return next.Handle(ctx, req)
			}

			if cached, ok := c.get(ctx, key); ok {
				c.hits.Add(1)
				c.logger.Debug("cache hit",
					"key", key,
					"provider", req.Provider,
					"model", req.Model,
					"operation", req.Operation)
				return cached, nil
			}
			c.misses.Add(1)

			resp, err := next.Handle(ctx, req)
			if err != nil {
				return nil, err
			}

			if strings.TrimSpace(resp.Content) != "" {
				c.set(ctx, key, resp)
			}
			return resp, nil
		})
	}
}

func (c *cacheMiddleware) get(ctx context.Context, key string) (*transport.Response, bool) {
	raw, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.errors.Add(1)
		c.logger.Warn("cache read failed", "error", err, "key", key)
		return nil, false
	}

	var entry cacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.errors.Add(1)
		c.logger.Warn("corrupted cache entry ignored", "error", err, "key", key)
		return nil, false
	}

	return &transport.Response{
		Content:      entry.Content,
		FinishReason: entry.FinishReason,
		Usage:        entry.Usage,
		CacheHit:     true,
	}, true
}

func (c *cacheMiddleware) set(ctx context.Context, key string, resp *transport.Response) {
	data, err := json.Marshal(cacheEntry{
		Content:      resp.Content,
		FinishReason: resp.FinishReason,
		Usage:        resp.Usage,
		StoredAtMs:   time.Now().UnixMilli(),
	})
	if err != nil {
		c.errors.Add(1)
		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.errors.Add(1)
		c.logger.Warn("cache write failed", "error", err, "key", key)
	}
}

// buildKey derives the Redis key from the request's canonical payload.
func buildKey(req *transport.Request) (string, error) {
	idemKey := transport.IdemKey(req.IdempotencyKey)
	if idemKey == "" {
		k, err := transport.GenerateIdemKey(req)
		if err != nil {
			return "", fmt.Errorf("build idempotency key: %w", err)
		}
		idemKey = k
	}
	return transport.CacheKey(req.TenantID, req.Operation, idemKey), nil
}
