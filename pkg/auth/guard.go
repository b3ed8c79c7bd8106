package auth

import (
	"context"
	"net/http"

	qferr "github.com/Quillforge/quillforge-auth/pkg/errors"
)

// Decision is the outcome of an ownership check. The split between the two
// deny outcomes matters at the transport layer: an unauthenticated caller
// gets a 401 inviting credentials, an authenticated non-owner gets a 403
// that no amount of re-authentication will change.
type Decision int

const (
	// Allow grants access: the caller is authenticated and owns the
	// resource (or matches an additional allowed owner).
	Allow Decision = iota

	// DenyUnauthenticated rejects the request because no identity is
	// present.
	DenyUnauthenticated

	// DenyForbidden rejects the request because the authenticated caller
	// is not the resource owner.
	DenyForbidden
)

// String returns the decision name for logs.
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case DenyUnauthenticated:
		return "deny_unauthenticated"
	case DenyForbidden:
		return "deny_forbidden"
	default:
		return "unknown"
	}
}

// OwnerResolver reports the owning user id for a resource. Returning an
// error with a NF-category code means the resource does not exist, which
// the [Guard] propagates rather than converting into a deny: "not found"
// and "not yours" are different answers.
type OwnerResolver func(ctx context.Context, resourceID string) (string, error)

// Guard makes resource-level authorization decisions by comparing the
// authenticated caller against resource ownership. It holds no resource
// data of its own; all knowledge of who owns what comes from the supplied
// resolvers.
//
// The primary resolver defines the canonical owner. Additional resolvers
// extend access to co-owners (shared workspaces, delegated editors): any
// one of them naming the caller grants access.
type Guard struct {
	primary    OwnerResolver
	additional []OwnerResolver
}

// NewGuard creates a Guard with the given primary owner resolver and any
// number of additional allowed-owner resolvers.
func NewGuard(primary OwnerResolver, additional ...OwnerResolver) *Guard {
	return &Guard{primary: primary, additional: additional}
}

// Authorize decides whether the caller in ctx may access the resource.
//
// The decision is strictly ordered: authentication is checked before any
// resolver runs, so an anonymous request never triggers an ownership
// lookup. Errors from the primary resolver, including not-found, are
// returned as-is. Additional resolvers are consulted only after the
// primary denied; their not-found errors are skipped (the resource exists,
// this resolver just has no owner entry for it) but other failures are
// surfaced rather than silently treated as a deny.
func (g *Guard) Authorize(ctx context.Context, resourceID string) (Decision, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return DenyUnauthenticated, nil
	}

	owner, err := g.primary(ctx, resourceID)
	if err != nil {
		return DenyForbidden, err
	}
	if owner == identity.UserID {
		return Allow, nil
	}

	for _, resolve := range g.additional {
		owner, err := resolve(ctx, resourceID)
		if err != nil {
			if qferr.IsNotFound(err) {
				continue
			}
			return DenyForbidden, err
		}
		if owner == identity.UserID {
			return Allow, nil
		}
	}

	return DenyForbidden, nil
}

// RequireOwner returns HTTP middleware that runs the guard against the
// resource id extracted from the request. It assumes authentication
// middleware ran earlier in the chain; an absent identity yields 401, a
// non-owner 403, and an unknown resource 404.
func (g *Guard) RequireOwner(resourceID func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := g.Authorize(r.Context(), resourceID(r))
			if err != nil {
				WriteError(w, err)
				return
			}
			switch decision {
			case Allow:
				next.ServeHTTP(w, r)
			case DenyUnauthenticated:
				WriteError(w, qferr.Unauthenticated("authentication required"))
			default:
				WriteError(w, qferr.New(qferr.CodeOwnershipDenied,
					"you do not have access to this resource"))
			}
		})
	}
}
