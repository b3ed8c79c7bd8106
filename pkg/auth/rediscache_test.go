package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implements the narrow RedisClient surface in memory, recording
// the TTLs it was given.
type fakeRedis struct {
	mu     sync.Mutex
	values map[string][]byte
	ttls   map[string]time.Duration
	err    error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		values: make(map[string][]byte),
		ttls:   make(map[string]time.Duration),
	}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	raw, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(raw), nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.values[key] = value.([]byte)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestRedisIdentityCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	identity := Identity{UserID: "user-1", Email: "user@example.com", DisplayName: "Test User"}

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		client := newFakeRedis()
		cache := NewRedisIdentityCache(client, 5*time.Minute)
		cache.Put(ctx, "hash-1", identity, time.Now().Add(time.Hour))

		got, ok := cache.Get(ctx, "hash-1")
		require.True(t, ok)
		assert.Equal(t, identity, got)
	})

	t.Run("keys are namespaced by token hash", func(t *testing.T) {
		t.Parallel()

		client := newFakeRedis()
		cache := NewRedisIdentityCache(client, 5*time.Minute)
		cache.Put(ctx, "hash-1", identity, time.Now().Add(time.Hour))

		_, ok := client.values["qfauth:identity:hash-1"]
		assert.True(t, ok)
	})

	t.Run("ttl is capped by the token lifetime", func(t *testing.T) {
		t.Parallel()

		client := newFakeRedis()
		cache := NewRedisIdentityCache(client, time.Hour)
		cache.Put(ctx, "hash-1", identity, time.Now().Add(30*time.Second))

		ttl := client.ttls["qfauth:identity:hash-1"]
		assert.LessOrEqual(t, ttl, 30*time.Second)
		assert.Positive(t, ttl)
	})

	t.Run("expired tokens are never stored", func(t *testing.T) {
		t.Parallel()

		client := newFakeRedis()
		cache := NewRedisIdentityCache(client, time.Hour)
		cache.Put(ctx, "hash-1", identity, time.Now().Add(-time.Second))
		assert.Empty(t, client.values)
	})

	t.Run("miss on absent key", func(t *testing.T) {
		t.Parallel()

		cache := NewRedisIdentityCache(newFakeRedis(), time.Minute)
		_, ok := cache.Get(ctx, "hash-absent")
		assert.False(t, ok)
	})

	t.Run("backend errors degrade to misses", func(t *testing.T) {
		t.Parallel()

		client := newFakeRedis()
		client.err = errors.New("connection refused")
		cache := NewRedisIdentityCache(client, time.Minute)

		cache.Put(ctx, "hash-1", identity, time.Now().Add(time.Hour))
		_, ok := cache.Get(ctx, "hash-1")
		assert.False(t, ok)
	})

	t.Run("undecodable entries degrade to misses", func(t *testing.T) {
		t.Parallel()

		client := newFakeRedis()
		client.values["qfauth:identity:hash-1"] = []byte("{broken")
		cache := NewRedisIdentityCache(client, time.Minute)

		_, ok := cache.Get(ctx, "hash-1")
		assert.False(t, ok)
	})
}
