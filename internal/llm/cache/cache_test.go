package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/cache"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/configuration"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/transport"
)

// mockRedisClient is an in-memory RedisClient.
type mockRedisClient struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	failGet bool
	failSet bool
}

func newMockRedisClient() *mockRedisClient {
	return &mockRedisClient{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mockRedisClient) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return redis.NewStringResult("", errors.New("connection refused"))
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockRedisClient) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return redis.NewStatusResult("", errors.New("connection refused"))
	}
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func newRequest(prompt string) *transport.Request {
	return &transport.Request{
		Operation: transport.OpEvolution,
		Provider:  "openai",
		Model:     "m",
		TenantID:  "default",
		Prompt:    prompt,
	}
}

func handlerReturning(calls *atomic.Int32, content string, err error) transport.Handler {
	return transport.HandlerFunc(func(_ context.Context, _ *transport.Request) (*transport.Response, error) {
		calls.Add(1)
		if err != nil {
			return nil, err
		}
		return &transport.Response{Content: content, FinishReason: transport.FinishStop}, nil
	})
}

func enabledConfig() configuration.CacheConfig {
	return configuration.CacheConfig{Enabled: true, TTL: time.Hour, RedisAddr: "unused"}
}

// TestCacheMiddleware_HitAfterMiss verifies that a second identical request is
// served from the cache without reaching the provider.
func TestCacheMiddleware_HitAfterMiss(t *testing.T) {
	client := newMockRedisClient()
	mw, stats, err := cache.NewCacheMiddlewareWithRedis(context.Background(), enabledConfig(), client)
	require.NoError(t, err)

	var calls atomic.Int32
	h := mw(handlerReturning(&calls, "What is alpha?", nil))

	first, err := h.Handle(context.Background(), newRequest("Rewrite: Q?"))
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := h.Handle(context.Background(), newRequest("Rewrite:   Q?"))
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, "What is alpha?", second.Content)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, cache.Stats{Hits: 1, Misses: 1}, stats())
	for _, ttl := range client.ttls {
		assert.Equal(t, time.Hour, ttl)
	}
}

// TestCacheMiddleware_DistinctPrompts verifies that different prompts do not collide.
func TestCacheMiddleware_DistinctPrompts(t *testing.T) {
	mw, _, err := cache.NewCacheMiddlewareWithRedis(context.Background(), enabledConfig(), newMockRedisClient())
	require.NoError(t, err)

	var calls atomic.Int32
	h := mw(handlerReturning(&calls, "x", nil))

	_, _ = h.Handle(context.Background(), newRequest("a"))
	_, _ = h.Handle(context.Background(), newRequest("b"))

	assert.Equal(t, int32(2), calls.Load())
}

// TestCacheMiddleware_SkipsFailuresAndBlankOutput verifies that only usable
// completions are stored.
func TestCacheMiddleware_SkipsFailuresAndBlankOutput(t *testing.T) {
	tests := []struct {
		name    string
		content string
		err     error
	}{
		{"provider error", "", errors.New("boom")},
		{"blank output", "   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newMockRedisClient()
			mw, _, err := cache.NewCacheMiddlewareWithRedis(context.Background(), enabledConfig(), client)
			require.NoError(t, err)

			var calls atomic.Int32
			h := mw(handlerReturning(&calls, tt.content, tt.err))
			_, _ = h.Handle(context.Background(), newRequest("q"))

			assert.Empty(t, client.data)
		})
	}
}

// TestCacheMiddleware_RedisFailureDegrades verifies pass-through on Redis errors.
func TestCacheMiddleware_RedisFailureDegrades(t *testing.T) {
	client := newMockRedisClient()
	client.failGet = true
	client.failSet = true
	mw, stats, err := cache.NewCacheMiddlewareWithRedis(context.Background(), enabledConfig(), client)
	require.NoError(t, err)

	var calls atomic.Int32
	h := mw(handlerReturning(&calls, "ok", nil))

	for range 2 {
		resp, err := h.Handle(context.Background(), newRequest("q"))
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Content)
	}

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int64(4), stats().Errors)
}

// TestCacheMiddleware_CorruptedEntry verifies that unreadable entries are treated as misses.
func TestCacheMiddleware_CorruptedEntry(t *testing.T) {
	client := newMockRedisClient()
	mw, _, err := cache.NewCacheMiddlewareWithRedis(context.Background(), enabledConfig(), client)
	require.NoError(t, err)

	var calls atomic.Int32
	h := mw(handlerReturning(&calls, "ok", nil))
	_, err = h.Handle(context.Background(), newRequest("q"))
	require.NoError(t, err)

	for k := range client.data {
		client.data[k] = "not-json"
	}

	resp, err := h.Handle(context.Background(), newRequest("q"))
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, int32(2), calls.Load())
}

// TestNewCacheMiddlewareWithRedis_Disabled verifies the disabled cache never touches Redis.
func TestNewCacheMiddlewareWithRedis_Disabled(t *testing.T) {
	mw, stats, err := cache.NewCacheMiddlewareWithRedis(context.Background(), configuration.CacheConfig{}, nil)
	require.NoError(t, err)

	var calls atomic.Int32
	h := mw(handlerReturning(&calls, "ok", nil))
	_, _ = h.Handle(context.Background(), newRequest("q"))
	_, _ = h.Handle(context.Background(), newRequest("q"))

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, cache.Stats{}, stats())
}
