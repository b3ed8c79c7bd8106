package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	qferr "github.com/Quillforge/quillforge-auth/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for auth spans.
const tracerName = "github.com/Quillforge/quillforge-auth/pkg/auth"

// maxTokenSize is the maximum accepted token length (8 KB). Larger tokens
// are rejected before any parsing to bound resource usage.
const maxTokenSize = 8192

// Validator is the sole place where cryptographic and claim-based trust
// decisions are made. Given a raw token and a [KeySource], Validate either
// produces a [ClaimSet] or a structured error naming the first check that
// failed.
//
// Validate is deterministic for a given token, KeySet snapshot, and clock
// reading, which makes it directly unit-testable with a static key source.
// Validator is safe for concurrent use by multiple goroutines.
type Validator struct {
	cfg    Config
	keys   KeySource
	tracer trace.Tracer

	// now is the clock used for time-window checks, overridable in tests.
	now func() time.Time
}

// NewValidator creates a Validator wired to a fresh [KeyCache] fetching
// from the configured trust domain's key-discovery endpoint. The
// configuration is validated before use.
func NewValidator(cfg Config) (*Validator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	resolver := NewResolver(cfg.discoveryURL(), cfg.HTTPClient, cfg.FetchTimeout, cfg.KeyCacheTTL)
	return NewValidatorWithKeySource(cfg, NewKeyCache(resolver, cfg.RefreshPerMinute))
}

// NewValidatorWithKeySource creates a Validator using the supplied key
// source instead of a network-backed cache. Tests use this with a fixed
// KeySet (see the authtest package) to validate tokens without network
// access.
func NewValidatorWithKeySource(cfg Config, keys KeySource) (*Validator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if keys == nil {
		return nil, qferr.New(qferr.CodeInternalConfiguration, "auth: key source must not be nil")
	}
	return &Validator{
		cfg:    cfg,
		keys:   keys,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}, nil
}

// tokenHeader is the decoded JWT header segment. Only the fields the
// validator routes on are modeled.
type tokenHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

// Validate verifies a raw bearer token and returns its validated claims.
//
// Checks run in a fixed order and the first failure wins:
//
//  1. structural shape (three base64url segments)
//  2. header decoding and algorithm (RS256 only; "none" is never accepted)
//  3. signing-key resolution by key id
//  4. cryptographic signature over header and payload
//  5. required claims present and well-typed
//  6. issuer against the configured allow-list
//  7. audience against the configured expected audience
//  8. expiry and not-before against the clock, with skew tolerance
//
// Every failure except an unavailable key source is attributable to the
// caller. Key-source failures carry [qferr.CodeKeyUnavailable] and must be
// surfaced as a dependency error, not a 401.
func (v *Validator) Validate(ctx context.Context, rawToken string) (ClaimSet, error) {
	ctx, span := v.tracer.Start(ctx, "auth.Validate")
	defer span.End()

	cs, err := v.validate(ctx, rawToken)
	if err != nil {
		span.SetAttributes(attribute.String("auth.error_code", qferr.GetCode(err).String()))
		span.RecordError(err)
		span.SetStatus(codes.Error, qferr.GetCode(err).String())
		return ClaimSet{}, err
	}

	span.SetAttributes(attribute.String("auth.subject", cs.Subject))
	return cs, nil
}

func (v *Validator) validate(ctx context.Context, rawToken string) (ClaimSet, error) {
	// Step 1: structural shape.
	if rawToken == "" || len(rawToken) > maxTokenSize {
		return ClaimSet{}, qferr.New(qferr.CodeTokenMalformed, "auth: token is empty or oversized")
	}
	segments := strings.Split(rawToken, ".")
	if len(segments) != 3 {
		return ClaimSet{}, qferr.New(qferr.CodeTokenMalformed, "auth: token is not a three-segment JWT")
	}

	// Step 2: header decoding and algorithm.
	headerJSON, err := base64.RawURLEncoding.DecodeString(segments[0])
	if err != nil {
		return ClaimSet{}, qferr.New(qferr.CodeTokenMalformed, "auth: token header is not valid base64url")
	}
	var header tokenHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return ClaimSet{}, qferr.New(qferr.CodeTokenMalformed, "auth: token header is not valid JSON")
	}
	if !strings.EqualFold(header.Alg, "RS256") {
		return ClaimSet{}, qferr.Newf(qferr.CodeUnsupportedAlgorithm,
			"auth: token algorithm %q is not accepted", header.Alg)
	}
	if header.Kid == "" {
		return ClaimSet{}, qferr.New(qferr.CodeTokenMalformed, "auth: token header is missing a key id")
	}

	// Step 3: signing-key resolution. An unavailable key source is a
	// dependency failure and passes through with its UNAVAIL code intact.
	key, err := v.keys.Lookup(ctx, header.Kid)
	if err != nil {
		if qferr.IsUnavailable(err) || qferr.HasCode(err, qferr.CodeUnknownKey) {
			return ClaimSet{}, err
		}
		return ClaimSet{}, qferr.Wrap(err, qferr.CodeKeyUnavailable, "auth: signing key lookup failed")
	}

	// Step 4: signature verification. Claims validation is deliberately
	// disabled here so the time-window and trust checks below run in the
	// documented order with the documented error kinds.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithoutClaimsValidation(),
	)
	token, err := parser.Parse(rawToken, func(t *jwt.Token) (any, error) {
		return key.PublicKey, nil
	})
	if err != nil {
		return ClaimSet{}, classifyParseError(err)
	}

	// Step 5: required claims.
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ClaimSet{}, qferr.New(qferr.CodeMalformedClaims, "auth: token claims are not a JSON object")
	}
	cs, claimsErr := decodeClaims(mc)
	if claimsErr != nil {
		return ClaimSet{}, claimsErr
	}

	// Step 6: issuer allow-list.
	if !v.issuerTrusted(cs.Issuer) {
		return ClaimSet{}, qferr.New(qferr.CodeIssuerMismatch, "auth: token issuer is not trusted")
	}

	// Step 7: audience. Rejects tokens minted for a different consumer
	// even when correctly signed by the same trusted issuer.
	if cs.Audience != v.cfg.Audience {
		return ClaimSet{}, qferr.New(qferr.CodeAudienceMismatch,
			"auth: token audience does not match this service")
	}

	// Step 8: time window. A token expiring exactly now is still valid;
	// skew tolerance extends the window on both ends.
	now := v.now()
	if now.After(cs.ExpiresAt.Add(v.cfg.ClockSkew)) {
		return ClaimSet{}, qferr.New(qferr.CodeTokenExpired, "auth: token has expired")
	}
	if !cs.NotBefore.IsZero() && now.Add(v.cfg.ClockSkew).Before(cs.NotBefore) {
		return ClaimSet{}, qferr.New(qferr.CodeTokenNotYetValid, "auth: token is not yet valid")
	}

	return cs, nil
}

// issuerTrusted reports whether the issuer matches any configured entry
// exactly.
func (v *Validator) issuerTrusted(issuer string) bool {
	for _, trusted := range v.cfg.Issuers {
		if issuer == trusted {
			return true
		}
	}
	return false
}

// classifyParseError maps golang-jwt parse failures onto the error
// taxonomy. Structural problems that slipped past the pre-checks count as
// malformed; everything else on this path is a signature failure.
func classifyParseError(err error) *qferr.Error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return qferr.Wrap(err, qferr.CodeTokenMalformed, "auth: token is malformed")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return qferr.Wrap(err, qferr.CodeInvalidSignature, "auth: token signature is invalid")
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return qferr.Wrap(err, qferr.CodeInvalidSignature, "auth: token could not be verified")
	default:
		return qferr.Wrap(err, qferr.CodeInvalidSignature, "auth: token verification failed")
	}
}
