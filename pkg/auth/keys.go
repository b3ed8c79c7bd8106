package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	qferr "github.com/Quillforge/quillforge-auth/pkg/errors"
)

// HTTPClient abstracts the HTTP client used to fetch signing keys, so
// callers can supply custom transports (mTLS, proxies, request tracing).
// The standard [http.Client] satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// SigningKey is one public verification key from the trust domain's
// key-discovery endpoint. SigningKeys are immutable once stored in a
// [KeySet]; rotation replaces the whole set, never an individual key.
type SigningKey struct {
	// KeyID is the key identifier ("kid") tokens reference in their header.
	// Unique within a KeySet.
	KeyID string

	// Algorithm is the signing algorithm the key verifies. Only RS256 is
	// accepted.
	Algorithm string

	// PublicKey is the RSA public key material.
	PublicKey *rsa.PublicKey

	// FetchedAt records when the key was retrieved from the discovery
	// endpoint.
	FetchedAt time.Time
}

// KeySet is an immutable snapshot of the trust domain's signing keys.
// The [KeyCache] holds at most one live KeySet and replaces it wholesale on
// refresh, so concurrent readers never observe a partially updated set.
type KeySet struct {
	keys      map[string]SigningKey
	expiresAt time.Time
}

// NewKeySet builds an immutable KeySet from the given keys. Later keys with
// a duplicate KeyID replace earlier ones. The expiresAt time controls when
// a [KeyCache] holding this set considers it due for refresh.
func NewKeySet(keys []SigningKey, expiresAt time.Time) *KeySet {
	m := make(map[string]SigningKey, len(keys))
	for _, k := range keys {
		m[k.KeyID] = k
	}
	return &KeySet{keys: m, expiresAt: expiresAt}
}

// Key returns the signing key with the given key id, if present.
func (ks *KeySet) Key(keyID string) (SigningKey, bool) {
	k, ok := ks.keys[keyID]
	return k, ok
}

// Len returns the number of keys in the set.
func (ks *KeySet) Len() int {
	return len(ks.keys)
}

// ExpiresAt returns the time after which the set is considered stale.
func (ks *KeySet) ExpiresAt() time.Time {
	return ks.expiresAt
}

// expired reports whether the snapshot's validity window has passed.
func (ks *KeySet) expired(now time.Time) bool {
	return now.After(ks.expiresAt)
}

// maxJWKSResponseSize bounds the key-discovery response body (1 MB).
const maxJWKSResponseSize = 1 << 20

// Resolver fetches the trust domain's signing keys over HTTP and parses
// them into a [KeySet]. It performs exactly one request per Fetch call with
// a bounded timeout and no internal retries; retry scheduling belongs to
// the [KeyCache].
type Resolver struct {
	jwksURL string
	client  HTTPClient
	timeout time.Duration
	ttl     time.Duration
}

// NewResolver creates a Resolver for the given key-discovery URL. Fetched
// KeySets are stamped with an expiry of now+ttl. If client is nil, a
// default [http.Client] is used; the timeout bounds each fetch regardless
// of the client's own settings.
func NewResolver(jwksURL string, client HTTPClient, timeout, ttl time.Duration) *Resolver {
	if client == nil {
		client = &http.Client{}
	}
	return &Resolver{
		jwksURL: jwksURL,
		client:  client,
		timeout: timeout,
		ttl:     ttl,
	}
}

// jwksDocument is the JSON structure served by the key-discovery endpoint.
type jwksDocument struct {
	Keys []jwksEntry `json:"keys"`
}

// jwksEntry is a single key in the discovery document. Only RSA fields are
// modeled; any other key type is a fetch error, not a skipped entry.
type jwksEntry struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// Fetch retrieves the discovery document and parses it into a KeySet.
// Malformed responses, unsupported key types or algorithms, and missing key
// material all fail the whole fetch; a discovery endpoint serving garbage
// is indistinguishable from a compromised one and must not be partially
// trusted.
func (r *Resolver) Fetch(ctx context.Context) (*KeySet, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.jwksURL, nil)
	if err != nil {
		return nil, qferr.Wrap(err, qferr.CodeKeyUnavailable, "auth: failed to build key-discovery request")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, qferr.Wrap(err, qferr.CodeKeyUnavailable, "auth: key-discovery request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, qferr.Newf(qferr.CodeKeyUnavailable, "auth: key-discovery endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSResponseSize))
	if err != nil {
		return nil, qferr.Wrap(err, qferr.CodeKeyUnavailable, "auth: failed to read key-discovery response")
	}

	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, qferr.Wrap(err, qferr.CodeKeyUnavailable, "auth: key-discovery response is not valid JSON")
	}
	if len(doc.Keys) == 0 {
		return nil, qferr.New(qferr.CodeKeyUnavailable, "auth: key-discovery response contains no keys")
	}

	now := time.Now()
	keys := make([]SigningKey, 0, len(doc.Keys))
	for _, entry := range doc.Keys {
		key, keyErr := parseJWKSEntry(entry, now)
		if keyErr != nil {
			return nil, keyErr
		}
		keys = append(keys, key)
	}

	return NewKeySet(keys, now.Add(r.ttl)), nil
}

// parseJWKSEntry validates and converts one discovery-document entry into a
// SigningKey.
func parseJWKSEntry(entry jwksEntry, fetchedAt time.Time) (SigningKey, *qferr.Error) {
	if entry.Kid == "" {
		return SigningKey{}, qferr.New(qferr.CodeKeyUnavailable, "auth: key-discovery entry is missing a key id")
	}
	if entry.Kty != "RSA" {
		return SigningKey{}, qferr.Newf(qferr.CodeKeyUnavailable,
			"auth: key %q has unsupported key type %q", entry.Kid, entry.Kty)
	}
	if entry.Alg != "" && entry.Alg != "RS256" {
		return SigningKey{}, qferr.Newf(qferr.CodeKeyUnavailable,
			"auth: key %q has unsupported algorithm %q", entry.Kid, entry.Alg)
	}
	if entry.N == "" || entry.E == "" {
		return SigningKey{}, qferr.Newf(qferr.CodeKeyUnavailable,
			"auth: key %q is missing RSA key material", entry.Kid)
	}

	pub, err := parseRSAPublicKey(entry.N, entry.E)
	if err != nil {
		return SigningKey{}, qferr.Wrapf(err, qferr.CodeKeyUnavailable,
			"auth: key %q carries undecodable RSA key material", entry.Kid)
	}

	return SigningKey{
		KeyID:     entry.Kid,
		Algorithm: "RS256",
		PublicKey: pub,
		FetchedAt: fetchedAt,
	}, nil
}

// parseRSAPublicKey constructs an *rsa.PublicKey from base64url-encoded
// modulus (n) and exponent (e) values.
func parseRSAPublicKey(nBase64, eBase64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(nBase64))
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(eBase64))
	if err != nil {
		return nil, err
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
