// Package errors provides the structured error model shared by all
// quillforge-auth components. Every failure that crosses a package boundary
// carries a machine-readable [Code], a human-readable message, and an
// optional cause, so the HTTP and gRPC layers can translate failures into
// wire responses without string matching.
//
// # Error Categories
//
// Codes are grouped into categories that map directly onto HTTP status
// classes:
//
//   - VAL_xxx     — invalid input or configuration (400)
//   - AUTH_xxx    — authentication failures attributable to the caller (401)
//   - AUTHZ_xxx   — authorization denials (403)
//   - NF_xxx      — missing resources (404)
//   - INT_xxx     — unexpected internal failures (500)
//   - UNAVAIL_xxx — dependency failures, safe for the caller to retry (503)
//   - TIMEOUT_xxx — exceeded time budgets (504)
//
// The AUTH category enumerates the full token-rejection taxonomy (missing
// credential, malformed token, unknown signing key, bad signature, issuer or
// audience mismatch, time-window violations) so that callers and operators
// can distinguish "your token is wrong" from "our key source is down".
//
// # Usage
//
// Create an error:
//
//	err := errors.New(errors.CodeAudienceMismatch, "token audience does not match this service")
//
// Wrap a cause:
//
//	err := errors.Wrap(fetchErr, errors.CodeKeyUnavailable, "signing keys could not be fetched")
//
// Branch on category:
//
//	if errors.IsRetryable(err) {
//	    // surface 503 and let the client retry
//	}
package errors
