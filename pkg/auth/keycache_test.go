package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qferr "github.com/Quillforge/quillforge-auth/pkg/errors"
)

// fakeFetcher counts Fetch calls and delegates to a swappable function.
type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	fetch func(ctx context.Context) (*KeySet, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context) (*KeySet, error) {
	f.mu.Lock()
	f.calls++
	fn := f.fetch
	f.mu.Unlock()
	return fn(ctx)
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFetcher) setFetch(fn func(ctx context.Context) (*KeySet, error)) {
	f.mu.Lock()
	f.fetch = fn
	f.mu.Unlock()
}

func testKeySet(t *testing.T, expiresAt time.Time, keyIDs ...string) *KeySet {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	keys := make([]SigningKey, 0, len(keyIDs))
	for _, kid := range keyIDs {
		keys = append(keys, SigningKey{
			KeyID:     kid,
			Algorithm: "RS256",
			PublicKey: &key.PublicKey,
			FetchedAt: time.Now(),
		})
	}
	return NewKeySet(keys, expiresAt)
}

func TestKeyCacheLookup(t *testing.T) {
	t.Parallel()

	t.Run("cold lookup fetches once and resolves", func(t *testing.T) {
		t.Parallel()

		ks := testKeySet(t, time.Now().Add(time.Hour), "kid-1")
		fetcher := &fakeFetcher{fetch: func(context.Context) (*KeySet, error) { return ks, nil }}
		cache := NewKeyCache(fetcher, 100)

		key, err := cache.Lookup(context.Background(), "kid-1")
		require.NoError(t, err)
		assert.Equal(t, "kid-1", key.KeyID)
		assert.Equal(t, 1, fetcher.callCount())

		// Warm hit: no further fetch.
		_, err = cache.Lookup(context.Background(), "kid-1")
		require.NoError(t, err)
		assert.Equal(t, 1, fetcher.callCount())
	})

	t.Run("concurrent misses share one fetch", func(t *testing.T) {
		t.Parallel()

		gate := make(chan struct{})
		ks := testKeySet(t, time.Now().Add(time.Hour), "kid-1")
		fetcher := &fakeFetcher{fetch: func(context.Context) (*KeySet, error) {
			<-gate
			return ks, nil
		}}
		cache := NewKeyCache(fetcher, 100)

		const workers = 16
		var wg sync.WaitGroup
		var failures atomic.Int32
		wg.Add(workers)
		for range workers {
			go func() {
				defer wg.Done()
				if _, err := cache.Lookup(context.Background(), "kid-1"); err != nil {
					failures.Add(1)
				}
			}()
		}

		// Give every worker time to reach the coalescing point, then let
		// the single fetch complete.
		time.Sleep(50 * time.Millisecond)
		close(gate)
		wg.Wait()

		assert.Zero(t, failures.Load())
		assert.Equal(t, 1, fetcher.callCount())
	})

	t.Run("key absent after refresh is unknown", func(t *testing.T) {
		t.Parallel()

		ks := testKeySet(t, time.Now().Add(time.Hour), "kid-1")
		fetcher := &fakeFetcher{fetch: func(context.Context) (*KeySet, error) { return ks, nil }}
		cache := NewKeyCache(fetcher, 100)

		_, err := cache.Lookup(context.Background(), "kid-rotated-away")
		require.Error(t, err)
		assert.Equal(t, qferr.CodeUnknownKey, qferr.GetCode(err))

		qfe := qferr.FromError(err)
		assert.Equal(t, "kid-rotated-away", qfe.Details["key_id"])
	})

	t.Run("stale set serves lookups when refresh fails", func(t *testing.T) {
		t.Parallel()

		// The only successful fetch returns an already-expired set, so
		// every later lookup takes the refresh path.
		stale := testKeySet(t, time.Now().Add(-time.Minute), "kid-1")
		fetcher := &fakeFetcher{fetch: func(context.Context) (*KeySet, error) { return stale, nil }}
		cache := NewKeyCache(fetcher, 100)

		_, err := cache.Lookup(context.Background(), "kid-1")
		require.NoError(t, err)

		fetcher.setFetch(func(context.Context) (*KeySet, error) {
			return nil, qferr.Unavailable("discovery endpoint down")
		})

		key, err := cache.Lookup(context.Background(), "kid-1")
		require.NoError(t, err)
		assert.Equal(t, "kid-1", key.KeyID)
	})

	t.Run("cold cache with failing fetch surfaces the error after one retry", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{fetch: func(context.Context) (*KeySet, error) {
			return nil, qferr.Unavailable("discovery endpoint down")
		}}
		cache := NewKeyCache(fetcher, 100)

		_, err := cache.Lookup(context.Background(), "kid-1")
		require.Error(t, err)
		assert.True(t, qferr.IsUnavailable(err))
		assert.Equal(t, 2, fetcher.callCount())
		assert.Nil(t, cache.Current())
	})

	t.Run("refresh attempts are rate limited", func(t *testing.T) {
		t.Parallel()

		ks := testKeySet(t, time.Now().Add(time.Hour), "kid-1")
		fetcher := &fakeFetcher{fetch: func(context.Context) (*KeySet, error) { return ks, nil }}
		cache := NewKeyCache(fetcher, 1)

		_, err := cache.Lookup(context.Background(), "kid-1")
		require.NoError(t, err)

		// The burst is spent; a storm of unknown key ids must not reach
		// the fetcher again within the window. The current set still
		// answers, so the unknown kid resolves as unknown, not as an
		// outage.
		_, err = cache.Lookup(context.Background(), "kid-unknown")
		require.Error(t, err)
		assert.Equal(t, qferr.CodeUnknownKey, qferr.GetCode(err))
		assert.Equal(t, 1, fetcher.callCount())

		// A direct refresh surfaces the rate-limit error itself.
		_, err = cache.Refresh(context.Background())
		require.Error(t, err)
		assert.Equal(t, qferr.CodeKeyUnavailable, qferr.GetCode(err))
		assert.True(t, qferr.IsRetryable(err))
		assert.Equal(t, 1, fetcher.callCount())
	})
}

func TestKeyCacheRefreshDetachesFromCallerCancellation(t *testing.T) {
	t.Parallel()

	ks := testKeySet(t, time.Now().Add(time.Hour), "kid-1")
	fetcher := &fakeFetcher{fetch: func(ctx context.Context) (*KeySet, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return ks, nil
	}}
	cache := NewKeyCache(fetcher, 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A cancelled caller still completes the shared refresh.
	got, err := cache.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
}
