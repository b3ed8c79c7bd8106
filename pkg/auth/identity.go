// Package auth provides stateless bearer-token authentication and
// resource-ownership authorization for multi-tenant Quillforge APIs.
//
// The pipeline is: an inbound request passes through the request
// authenticator ([Authenticator.Middleware]), which extracts the bearer
// credential, verifies it with the [Validator] (backed by a [KeyCache] of
// signing keys fetched from the trust domain's key-discovery endpoint), and
// attaches the resulting [Identity] to the request context. Route handlers
// that guard owner-only operations then consult a [Guard], comparing the
// authenticated identity against the resource's recorded owner.
//
// Authentication comes in two explicit modes: [ModeRequired] short-circuits
// with a structured 401 (or 503 when the key source is down) before the
// wrapped handler runs, while [ModeOptional] degrades every failure, a
// missing or invalid credential alike, to an anonymous request.
//
// Security:
//
// Raw tokens, signing keys, and claim payloads are never logged or echoed
// in error messages; only error codes and non-sensitive identifiers (key
// id, resource id) leave this package. Tokens are cached, if at all, under
// their SHA-256 hash.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// Identity is the application-facing projection of a validated [ClaimSet].
// It is created by [IdentityFromClaims] at authentication time, attached to
// the request context, and discarded when the request ends. An Identity is
// never shared across requests.
type Identity struct {
	// UserID is the stable subject identifier from the token. It is the
	// value compared against resource owner ids by the ownership guard.
	UserID string `json:"user_id"`

	// Email is the user's email address. Empty means the issuer did not
	// supply one; downstream consumers must treat emptiness as "unknown".
	Email string `json:"email,omitempty"`

	// DisplayName is the user's human-readable name. Empty means unknown.
	DisplayName string `json:"display_name,omitempty"`
}

// IdentityFromClaims projects a validated claim set into an Identity.
// The projection is pure: absent optional claims stay empty rather than
// being defaulted to placeholder values.
func IdentityFromClaims(cs ClaimSet) Identity {
	return Identity{
		UserID:      cs.Subject,
		Email:       cs.Email,
		DisplayName: cs.DisplayName,
	}
}

// TokenHash returns the hex-encoded SHA-256 hash of a token string. It is
// the only form in which a token may be used as a cache key or correlated
// in logs; raw token bytes never leave the request path.
func TokenHash(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
