package auth

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	qferr "github.com/Quillforge/quillforge-auth/pkg/errors"
)

// KeyFetcher retrieves a fresh KeySet from the trust domain. [Resolver] is
// the production implementation; tests substitute fakes.
type KeyFetcher interface {
	Fetch(ctx context.Context) (*KeySet, error)
}

// KeySource resolves a key id to a signing key. [KeyCache] is the
// production implementation; the authtest package provides a static one so
// validators can be exercised without network access.
type KeySource interface {
	Lookup(ctx context.Context, keyID string) (SigningKey, error)
}

// KeyCache serves the current KeySet to concurrent callers, refreshing it
// from a [KeyFetcher] with at most one fetch in flight at a time. Concurrent
// callers that need a refresh join the in-flight fetch and all observe the
// same outcome.
//
// The snapshot is replaced atomically, never mutated in place. When a
// refresh fails but a previous KeySet exists, the stale set keeps serving
// lookups: bounded staleness beats unavailability. Refresh attempts are
// rate-limited so a flood of tokens with unknown key ids cannot hammer the
// discovery endpoint.
//
// KeyCache is safe for concurrent use by multiple goroutines and is an
// explicit constructor dependency of [Validator], never a package-level
// singleton.
type KeyCache struct {
	fetcher KeyFetcher
	current atomic.Pointer[KeySet]
	group   singleflight.Group
	limiter *rate.Limiter
}

// Compile-time assertion that KeyCache implements KeySource.
var _ KeySource = (*KeyCache)(nil)

// NewKeyCache creates a cold KeyCache backed by the given fetcher. The
// first lookup triggers a fetch. refreshPerMinute caps refresh attempts
// (minimum 1); attempts beyond the cap fail without touching the network.
func NewKeyCache(fetcher KeyFetcher, refreshPerMinute int) *KeyCache {
	if refreshPerMinute < 1 {
		refreshPerMinute = 1
	}
	return &KeyCache{
		fetcher: fetcher,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(refreshPerMinute)), refreshPerMinute),
	}
}

// Lookup resolves a key id against the current KeySet. On a miss it
// triggers (or joins) a single refresh and retries once against the
// refreshed set. Returns a [qferr.CodeUnknownKey] error when the key id is
// absent from a usable set, or [qferr.CodeKeyUnavailable] when no set could
// be obtained at all.
func (c *KeyCache) Lookup(ctx context.Context, keyID string) (SigningKey, error) {
	if ks := c.current.Load(); ks != nil && !ks.expired(time.Now()) {
		if key, ok := ks.Key(keyID); ok {
			return key, nil
		}
	}

	// Miss: either the cache is cold, the snapshot has expired, or the
	// token references a rotated-in key we have not seen. All three paths
	// coalesce on one refresh.
	refreshed, err := c.Refresh(ctx)
	if err != nil {
		stale := c.current.Load()
		if stale == nil {
			return SigningKey{}, err
		}
		// Degraded mode: the refresh failed but a previous snapshot
		// exists. Serve it rather than failing every request.
		slog.WarnContext(ctx, "auth: key refresh failed, serving stale key set",
			"error_code", qferr.GetCode(err).String(),
			"keys", stale.Len(),
		)
		refreshed = stale
	}

	if key, ok := refreshed.Key(keyID); ok {
		return key, nil
	}
	return SigningKey{}, qferr.New(qferr.CodeUnknownKey,
		"auth: no signing key matches the token key id").WithDetail("key_id", keyID)
}

// Refresh fetches a new KeySet and installs it as the current snapshot.
// Concurrent callers share a single in-flight fetch and receive the same
// result, success or failure. A failed fetch is retried transparently once
// within the fetcher's own timeout budget, then surfaced; the stale
// snapshot (if any) is left in place for degraded serving.
func (c *KeyCache) Refresh(ctx context.Context) (*KeySet, error) {
	v, err, _ := c.group.Do("refresh", func() (any, error) {
		if !c.limiter.Allow() {
			return nil, qferr.New(qferr.CodeKeyUnavailable,
				"auth: key refresh attempts are rate limited, try again later")
		}

		// The fetch is shared by every waiter, so it must not die with the
		// first caller's request. Detach from the caller's cancellation;
		// the resolver applies its own bounded timeout.
		fetchCtx := context.WithoutCancel(ctx)

		ks, fetchErr := c.fetcher.Fetch(fetchCtx)
		if fetchErr != nil {
			ks, fetchErr = c.fetcher.Fetch(fetchCtx)
		}
		if fetchErr != nil {
			return nil, fetchErr
		}

		c.current.Store(ks)
		return ks, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*KeySet), nil
}

// Current returns the live KeySet snapshot, or nil when the cache is cold.
// The returned set is immutable.
func (c *KeyCache) Current() *KeySet {
	return c.current.Load()
}
