package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the narrow slice of the go-redis API the identity cache
// needs. *redis.Client and *redis.ClusterClient both satisfy it.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisIdentityCache is an [IdentityCache] backed by Redis, for deployments
// where multiple replicas should share validation results. Entries are
// JSON-encoded identities under a namespaced token-hash key, expired by
// Redis itself via per-key TTLs.
//
// The cache is strictly best-effort: Redis errors degrade to cache misses
// and are logged, never surfaced to the request path. A broken cache slows
// authentication down, it must not break it.
type RedisIdentityCache struct {
	client RedisClient
	ttl    time.Duration
	prefix string
}

// NewRedisIdentityCache creates a Redis-backed identity cache with the
// given base TTL. Keys are stored under the "qfauth:identity:" namespace.
func NewRedisIdentityCache(client RedisClient, ttl time.Duration) *RedisIdentityCache {
	return &RedisIdentityCache{
		client: client,
		ttl:    ttl,
		prefix: "qfauth:identity:",
	}
}

// Get returns the cached identity for the token hash, if present.
func (c *RedisIdentityCache) Get(ctx context.Context, tokenHash string) (Identity, bool) {
	raw, err := c.client.Get(ctx, c.prefix+tokenHash).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "auth: redis identity cache read failed", "error", err)
		}
		return Identity{}, false
	}

	var identity Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		slog.WarnContext(ctx, "auth: redis identity cache entry is undecodable", "error", err)
		return Identity{}, false
	}
	return identity, true
}

// Put stores the identity under the token hash with a TTL capped by the
// token's remaining lifetime. Already-expired tokens are not stored.
func (c *RedisIdentityCache) Put(ctx context.Context, tokenHash string, identity Identity, tokenExpiry time.Time) {
	ttl := c.ttl
	if remaining := time.Until(tokenExpiry); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}

	raw, err := json.Marshal(identity)
	if err != nil {
		slog.WarnContext(ctx, "auth: failed to encode identity for caching", "error", err)
		return
	}
	if err := c.client.Set(ctx, c.prefix+tokenHash, raw, ttl).Err(); err != nil {
		slog.WarnContext(ctx, "auth: redis identity cache write failed", "error", err)
	}
}
