package auth

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// IdentityCache stores validated identities keyed by token hash, letting
// the middleware skip repeated signature checks for tokens it has already
// accepted. Implementations must never store or log the raw token; the key
// is always the SHA-256 hash produced by [TokenHash].
//
// A cached entry must not outlive the token it was derived from, so Put
// receives the token's expiry and implementations cap the TTL accordingly.
type IdentityCache interface {
	// Get returns the cached identity for the given token hash, if present
	// and not expired.
	Get(ctx context.Context, tokenHash string) (Identity, bool)

	// Put stores the identity under the token hash. tokenExpiry is the
	// token's own expiry time; the entry must not be served past it.
	Put(ctx context.Context, tokenHash string, identity Identity, tokenExpiry time.Time)
}

// cacheEntry is one memory-cache slot.
type cacheEntry struct {
	hash     string
	identity Identity
	expires  time.Time
}

// MemoryIdentityCache is an in-process [IdentityCache] with a hard size
// bound and LRU eviction. It is safe for concurrent use.
type MemoryIdentityCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
	ttl     time.Duration
	maxSize int

	// now is overridable in tests.
	now func() time.Time
}

// NewMemoryIdentityCache creates a memory cache serving entries for up to
// ttl, bounded at maxSize entries with least-recently-used eviction.
func NewMemoryIdentityCache(ttl time.Duration, maxSize int) *MemoryIdentityCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &MemoryIdentityCache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get returns the cached identity for the token hash. Expired entries are
// removed on access.
func (c *MemoryIdentityCache) Get(_ context.Context, tokenHash string) (Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[tokenHash]
	if !ok {
		return Identity{}, false
	}
	entry := elem.Value.(*cacheEntry)
	if c.now().After(entry.expires) {
		c.order.Remove(elem)
		delete(c.entries, tokenHash)
		return Identity{}, false
	}
	c.order.MoveToFront(elem)
	return entry.identity, true
}

// Put stores the identity under the token hash. The entry expires at
// now+ttl or at the token's own expiry, whichever comes first; entries for
// already-expired tokens are not stored.
func (c *MemoryIdentityCache) Put(_ context.Context, tokenHash string, identity Identity, tokenExpiry time.Time) {
	now := c.now()
	expires := now.Add(c.ttl)
	if tokenExpiry.Before(expires) {
		expires = tokenExpiry
	}
	if !expires.After(now) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[tokenHash]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.identity = identity
		entry.expires = expires
		c.order.MoveToFront(elem)
		return
	}

	for len(c.entries) >= c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).hash)
	}

	elem := c.order.PushFront(&cacheEntry{hash: tokenHash, identity: identity, expires: expires})
	c.entries[tokenHash] = elem
}

// Len returns the current number of entries, expired or not.
func (c *MemoryIdentityCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
