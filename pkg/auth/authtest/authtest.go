// Package authtest provides test fixtures for exercising token validation
// without a live trust domain: an in-memory RSA key ring that signs tokens
// and serves them back as a key-discovery document.
package authtest

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Quillforge/quillforge-auth/pkg/auth"
	qferr "github.com/Quillforge/quillforge-auth/pkg/errors"
)

// KeyRing holds a generated RSA signing key pair under a random key id. It
// plays the trust domain's role in tests: signing tokens with the private
// half and publishing the public half.
type KeyRing struct {
	KeyID      string
	PrivateKey *rsa.PrivateKey
}

// NewKeyRing generates a fresh 2048-bit RSA key ring. Generation failures
// fail the test immediately.
func NewKeyRing(tb testing.TB) *KeyRing {
	tb.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("generate RSA key: %v", err)
	}
	return &KeyRing{
		KeyID:      uuid.NewString(),
		PrivateKey: key,
	}
}

// TokenSpec describes the token to mint. Zero-valued fields get sensible
// defaults: a random subject, issued now, expiring in an hour. KeyID and
// Algorithm overrides exist for negative tests (unknown key, rejected
// algorithm).
type TokenSpec struct {
	Subject   string
	Issuer    string
	Audience  string
	Email     string
	Name      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	NotBefore time.Time

	KeyID     string
	Algorithm string
}

// Sign mints a signed token for the spec using the ring's private key.
func (kr *KeyRing) Sign(tb testing.TB, spec TokenSpec) string {
	tb.Helper()

	if spec.Subject == "" {
		spec.Subject = uuid.NewString()
	}
	if spec.IssuedAt.IsZero() {
		spec.IssuedAt = time.Now()
	}
	if spec.ExpiresAt.IsZero() {
		spec.ExpiresAt = spec.IssuedAt.Add(time.Hour)
	}

	claims := jwt.MapClaims{
		"sub": spec.Subject,
		"iss": spec.Issuer,
		"aud": spec.Audience,
		"iat": spec.IssuedAt.Unix(),
		"exp": spec.ExpiresAt.Unix(),
	}
	if !spec.NotBefore.IsZero() {
		claims["nbf"] = spec.NotBefore.Unix()
	}
	if spec.Email != "" {
		claims["email"] = spec.Email
	}
	if spec.Name != "" {
		claims["name"] = spec.Name
	}

	method := jwt.SigningMethodRS256
	token := jwt.NewWithClaims(method, claims)
	if spec.Algorithm != "" {
		token.Header["alg"] = spec.Algorithm
	}
	if spec.KeyID != "" {
		token.Header["kid"] = spec.KeyID
	} else {
		token.Header["kid"] = kr.KeyID
	}

	signed, err := token.SignedString(kr.PrivateKey)
	if err != nil {
		tb.Fatalf("sign token: %v", err)
	}
	return signed
}

// KeySet returns the ring's public key as an immutable KeySet expiring at
// now+ttl.
func (kr *KeyRing) KeySet(ttl time.Duration) *auth.KeySet {
	now := time.Now()
	return auth.NewKeySet([]auth.SigningKey{{
		KeyID:     kr.KeyID,
		Algorithm: "RS256",
		PublicKey: &kr.PrivateKey.PublicKey,
		FetchedAt: now,
	}}, now.Add(ttl))
}

// JWKS returns the ring's public key as a key-discovery JSON document.
func (kr *KeyRing) JWKS() []byte {
	pub := kr.PrivateKey.PublicKey
	doc := map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": kr.KeyID,
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return raw
}

// ServeJWKS starts an httptest server publishing the ring's discovery
// document. The server is shut down when the test ends.
func (kr *KeyRing) ServeJWKS(tb testing.TB) *httptest.Server {
	tb.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(kr.JWKS())
	}))
	tb.Cleanup(srv.Close)
	return srv
}

// StaticKeys is a KeySource backed by a fixed KeySet, for validating
// tokens without any network or cache machinery in the way.
type StaticKeys struct {
	Set *auth.KeySet
}

// Lookup resolves a key id against the fixed set.
func (s StaticKeys) Lookup(_ context.Context, keyID string) (auth.SigningKey, error) {
	if key, ok := s.Set.Key(keyID); ok {
		return key, nil
	}
	return auth.SigningKey{}, qferr.New(qferr.CodeUnknownKey,
		"authtest: no signing key matches the token key id").WithDetail("key_id", keyID)
}
