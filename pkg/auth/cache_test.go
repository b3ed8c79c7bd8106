package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIdentityCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	identity := Identity{UserID: "user-1", Email: "user@example.com"}

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		cache := NewMemoryIdentityCache(5*time.Minute, 10)
		cache.Put(ctx, "hash-1", identity, time.Now().Add(time.Hour))

		got, ok := cache.Get(ctx, "hash-1")
		require.True(t, ok)
		assert.Equal(t, identity, got)

		_, ok = cache.Get(ctx, "hash-absent")
		assert.False(t, ok)
	})

	t.Run("entries expire after the ttl", func(t *testing.T) {
		t.Parallel()

		cache := NewMemoryIdentityCache(5*time.Minute, 10)
		now := time.Now()
		cache.now = func() time.Time { return now }

		cache.Put(ctx, "hash-1", identity, now.Add(time.Hour))

		now = now.Add(4 * time.Minute)
		_, ok := cache.Get(ctx, "hash-1")
		assert.True(t, ok)

		now = now.Add(2 * time.Minute)
		_, ok = cache.Get(ctx, "hash-1")
		assert.False(t, ok)
		assert.Zero(t, cache.Len(), "expired entry is removed on access")
	})

	t.Run("ttl is capped by token expiry", func(t *testing.T) {
		t.Parallel()

		cache := NewMemoryIdentityCache(time.Hour, 10)
		now := time.Now()
		cache.now = func() time.Time { return now }

		// The token outlives the cache entry by seconds only; the entry
		// must not be served past the token's own lifetime.
		cache.Put(ctx, "hash-1", identity, now.Add(30*time.Second))

		now = now.Add(31 * time.Second)
		_, ok := cache.Get(ctx, "hash-1")
		assert.False(t, ok)
	})

	t.Run("expired tokens are never stored", func(t *testing.T) {
		t.Parallel()

		cache := NewMemoryIdentityCache(time.Hour, 10)
		cache.Put(ctx, "hash-1", identity, time.Now().Add(-time.Second))
		assert.Zero(t, cache.Len())
	})

	t.Run("size bound evicts the least recently used entry", func(t *testing.T) {
		t.Parallel()

		cache := NewMemoryIdentityCache(time.Hour, 3)
		expiry := time.Now().Add(time.Hour)
		for i := range 3 {
			cache.Put(ctx, fmt.Sprintf("hash-%d", i), Identity{UserID: fmt.Sprintf("user-%d", i)}, expiry)
		}

		// Touch hash-0 so hash-1 becomes the eviction candidate.
		_, ok := cache.Get(ctx, "hash-0")
		require.True(t, ok)

		cache.Put(ctx, "hash-3", Identity{UserID: "user-3"}, expiry)
		assert.Equal(t, 3, cache.Len())

		_, ok = cache.Get(ctx, "hash-1")
		assert.False(t, ok, "least recently used entry is evicted")
		_, ok = cache.Get(ctx, "hash-0")
		assert.True(t, ok)
		_, ok = cache.Get(ctx, "hash-3")
		assert.True(t, ok)
	})

	t.Run("put replaces an existing entry", func(t *testing.T) {
		t.Parallel()

		cache := NewMemoryIdentityCache(time.Hour, 10)
		expiry := time.Now().Add(time.Hour)
		cache.Put(ctx, "hash-1", Identity{UserID: "user-1"}, expiry)
		cache.Put(ctx, "hash-1", Identity{UserID: "user-1", Email: "fresh@example.com"}, expiry)

		got, ok := cache.Get(ctx, "hash-1")
		require.True(t, ok)
		assert.Equal(t, "fresh@example.com", got.Email)
		assert.Equal(t, 1, cache.Len())
	})
}
