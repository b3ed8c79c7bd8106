package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	qferr "github.com/Quillforge/quillforge-auth/pkg/errors"
)

// Mode selects how middleware treats requests without usable credentials.
type Mode int

const (
	// ModeRequired rejects requests without a valid token. Handlers behind
	// it can rely on an Identity being present in the context.
	ModeRequired Mode = iota

	// ModeOptional attaches an identity when a valid token is presented
	// and otherwise lets the request proceed as anonymous. Every failure,
	// a missing credential included, is invisible to the caller; handlers
	// must treat "no identity" as "anonymous", never as an error.
	ModeOptional
)

// String returns the mode name for logs.
func (m Mode) String() string {
	switch m {
	case ModeRequired:
		return "required"
	case ModeOptional:
		return "optional"
	default:
		return "unknown"
	}
}

// ExtractBearerToken pulls the bearer token out of an Authorization header
// value. The scheme comparison is case-insensitive per RFC 9110. Returns
// the empty string when the header is absent, carries a different scheme,
// or has no token after the scheme.
func ExtractBearerToken(authorization string) string {
	const prefix = "Bearer "
	if len(authorization) <= len(prefix) || !strings.EqualFold(authorization[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authorization[len(prefix):])
}

// Authenticator turns a [Validator] into HTTP middleware. It owns the
// transport-level concerns: header extraction, the identity cache, the
// required/optional decision, and the JSON error responses.
type Authenticator struct {
	validator *Validator
	cache     IdentityCache
}

// NewAuthenticator creates an Authenticator. cache may be nil to disable
// identity caching; every request then pays the full validation cost.
func NewAuthenticator(validator *Validator, cache IdentityCache) *Authenticator {
	return &Authenticator{validator: validator, cache: cache}
}

// Middleware returns HTTP middleware enforcing the given mode. On success
// the request proceeds with the authenticated [Identity] attached to its
// context; on failure the request is answered directly and the wrapped
// handler never runs.
//
// Validation failures map to 401, a missing credential in required mode to
// 401, and an unreachable key-discovery endpoint to 503 so that clients
// and load balancers can distinguish "your token is bad" from "we cannot
// check tokens right now".
func (a *Authenticator) Middleware(mode Mode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractBearerToken(r.Header.Get("Authorization"))
			if token == "" {
				if mode == ModeOptional {
					next.ServeHTTP(w, r)
					return
				}
				WriteError(w, qferr.NoCredential("missing bearer token"))
				return
			}

			identity, err := a.Authenticate(r.Context(), token)
			if err != nil {
				if mode == ModeOptional {
					// Optional routes degrade every failure to anonymous.
					next.ServeHTTP(w, r)
					return
				}
				WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

// Authenticate validates a raw bearer token and returns the caller's
// identity, consulting the identity cache first. The cache key is the
// token's SHA-256 hash; the raw token never reaches the cache or the logs.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (Identity, error) {
	var hash string
	if a.cache != nil {
		hash = TokenHash(token)
		if identity, ok := a.cache.Get(ctx, hash); ok {
			return identity, nil
		}
	}

	cs, err := a.validator.Validate(ctx, token)
	if err != nil {
		return Identity{}, err
	}

	identity := IdentityFromClaims(cs)
	if a.cache != nil {
		a.cache.Put(ctx, hash, identity, cs.ExpiresAt)
	}
	return identity, nil
}

// errorResponse is the JSON body written for authentication and
// authorization failures.
type errorResponse struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes err as a JSON error response with the status implied
// by its code category. Non-structured errors are reported as a generic
// internal error so that no incidental detail leaks to clients.
func WriteError(w http.ResponseWriter, err error) {
	qfe := qferr.FromError(err)
	status := qfe.HTTPStatus()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeErr := json.NewEncoder(w).Encode(errorResponse{
		Status:  status,
		Code:    qfe.Code.String(),
		Message: qfe.Message,
	})
	if writeErr != nil {
		slog.Warn("auth: failed to write error response", "error", writeErr)
	}
}
