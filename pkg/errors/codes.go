package errors

// Code is a stable, machine-readable error code. Codes follow the pattern
// CATEGORY_XXX where CATEGORY is a short class identifier (AUTH, AUTHZ, …)
// and XXX is a three-digit number. Once assigned, a code never changes
// meaning; clients may switch on codes for automated handling.
type Code string

// Error code categories and their HTTP mappings:
//
//	VAL_xxx     - Validation errors (400 Bad Request)
//	AUTH_xxx    - Authentication errors (401 Unauthorized)
//	AUTHZ_xxx   - Authorization denials (403 Forbidden)
//	NF_xxx      - Not found (404 Not Found)
//	INT_xxx     - Internal errors (500 Internal Server Error)
//	UNAVAIL_xxx - Dependency unavailable (503 Service Unavailable)
//	TIMEOUT_xxx - Timeouts (504 Gateway Timeout)
const (
	// Validation errors (VAL_xxx) - HTTP 400

	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required field or parameter is missing.
	CodeValidationRequired Code = "VAL_002"

	// Authentication errors (AUTH_xxx) - HTTP 401
	// Every AUTH code is attributable to the caller: the request carried no
	// usable credential, or the credential failed a trust check.

	// CodeNoCredential indicates the request carried no Authorization header,
	// or the header used a scheme other than Bearer.
	CodeNoCredential Code = "AUTH_001"

	// CodeTokenMalformed indicates the token is not structurally a JWT
	// (not three base64url segments, or an undecodable header).
	CodeTokenMalformed Code = "AUTH_002"

	// CodeUnsupportedAlgorithm indicates the token header names a signing
	// algorithm this service does not accept.
	CodeUnsupportedAlgorithm Code = "AUTH_003"

	// CodeUnknownKey indicates the token's key identifier does not match any
	// key in the current key set, even after a refresh.
	CodeUnknownKey Code = "AUTH_004"

	// CodeInvalidSignature indicates the cryptographic signature did not
	// verify against the resolved public key.
	CodeInvalidSignature Code = "AUTH_005"

	// CodeMalformedClaims indicates the payload decoded but required claims
	// are absent or of the wrong type.
	CodeMalformedClaims Code = "AUTH_006"

	// CodeIssuerMismatch indicates the token was signed by an issuer outside
	// the configured trust domain.
	CodeIssuerMismatch Code = "AUTH_007"

	// CodeAudienceMismatch indicates the token was minted for a different
	// consumer than this service.
	CodeAudienceMismatch Code = "AUTH_008"

	// CodeTokenExpired indicates the token's expiry time has passed beyond
	// the configured clock-skew tolerance.
	CodeTokenExpired Code = "AUTH_009"

	// CodeTokenNotYetValid indicates the token's not-before time is still in
	// the future beyond the configured clock-skew tolerance.
	CodeTokenNotYetValid Code = "AUTH_010"

	// CodeUnauthenticated indicates no authenticated identity was present
	// where one is required (e.g., an ownership check on an anonymous call).
	CodeUnauthenticated Code = "AUTH_011"

	// Authorization denials (AUTHZ_xxx) - HTTP 403

	// CodeAuthorization indicates a general authorization failure.
	CodeAuthorization Code = "AUTHZ_001"

	// CodeOwnershipDenied indicates the caller is authenticated but is not
	// the owner of the resource (nor an additionally permitted actor).
	CodeOwnershipDenied Code = "AUTHZ_002"

	// Not found errors (NF_xxx) - HTTP 404

	// CodeNotFound indicates a general not found condition.
	CodeNotFound Code = "NF_001"

	// CodeNotFoundResource indicates the resource whose ownership was being
	// evaluated does not exist.
	CodeNotFoundResource Code = "NF_002"

	// Internal errors (INT_xxx) - HTTP 500

	// CodeInternal indicates an unexpected internal failure.
	CodeInternal Code = "INT_001"

	// CodeInternalConfiguration indicates invalid or missing configuration.
	CodeInternalConfiguration Code = "INT_002"

	// Unavailable errors (UNAVAIL_xxx) - HTTP 503
	// These are dependency failures, never caller faults, and are safe for
	// the caller to retry.

	// CodeKeyUnavailable indicates the key-discovery endpoint could not be
	// reached and no usable cached key set exists.
	CodeKeyUnavailable Code = "UNAVAIL_001"

	// CodeUnavailableDependency indicates some other dependency (e.g., the
	// identity cache backend) is unavailable.
	CodeUnavailableDependency Code = "UNAVAIL_002"

	// Timeout errors (TIMEOUT_xxx) - HTTP 504

	// CodeTimeout indicates an operation exceeded its time budget.
	CodeTimeout Code = "TIMEOUT_001"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the code (e.g., "AUTH", "UNAVAIL").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
