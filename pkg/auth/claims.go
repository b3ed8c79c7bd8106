package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	qferr "github.com/Quillforge/quillforge-auth/pkg/errors"
)

// ClaimSet is the validated output of token verification. It is created
// once per successful validation, is immutable, lives for a single request,
// and is never persisted.
type ClaimSet struct {
	// Subject is the stable identifier of the token's principal ("sub").
	Subject string

	// Issuer is the trust authority that signed the token ("iss").
	Issuer string

	// Audience is the intended recipient service of the token ("aud").
	Audience string

	// IssuedAt is the time the token was minted ("iat").
	IssuedAt time.Time

	// ExpiresAt is the time after which the token is no longer valid ("exp").
	ExpiresAt time.Time

	// NotBefore is the earliest time the token may be used ("nbf").
	// Zero when the claim is absent.
	NotBefore time.Time

	// Email is the principal's email address, when the issuer supplies one.
	// Empty means unknown, not an error.
	Email string

	// DisplayName is the principal's human-readable name ("name" claim).
	// Empty means unknown, not an error.
	DisplayName string
}

// decodeClaims projects raw JWT map claims into a ClaimSet, enforcing the
// presence and type of the required claims (sub, iss, aud, exp, iat).
// Optional claims (nbf, email, name) are taken when present and well-typed;
// a malformed optional claim is treated the same as a missing required one,
// since a token from a trusted issuer should never carry garbage.
func decodeClaims(mc jwt.MapClaims) (ClaimSet, *qferr.Error) {
	var cs ClaimSet

	sub, ok := mc["sub"].(string)
	if !ok || sub == "" {
		return cs, qferr.New(qferr.CodeMalformedClaims, "token is missing the subject claim")
	}

	iss, ok := mc["iss"].(string)
	if !ok || iss == "" {
		return cs, qferr.New(qferr.CodeMalformedClaims, "token is missing the issuer claim")
	}

	aud, err := decodeAudience(mc["aud"])
	if err != nil {
		return cs, err
	}

	exp, expErr := mc.GetExpirationTime()
	if expErr != nil || exp == nil {
		return cs, qferr.New(qferr.CodeMalformedClaims, "token is missing the expiry claim")
	}

	iat, iatErr := mc.GetIssuedAt()
	if iatErr != nil || iat == nil {
		return cs, qferr.New(qferr.CodeMalformedClaims, "token is missing the issued-at claim")
	}

	cs = ClaimSet{
		Subject:   sub,
		Issuer:    iss,
		Audience:  aud,
		IssuedAt:  iat.Time,
		ExpiresAt: exp.Time,
	}

	if nbf, nbfErr := mc.GetNotBefore(); nbfErr == nil && nbf != nil {
		cs.NotBefore = nbf.Time
	} else if nbfErr != nil {
		return ClaimSet{}, qferr.New(qferr.CodeMalformedClaims, "token carries a malformed not-before claim")
	}

	if raw, present := mc["email"]; present {
		email, isStr := raw.(string)
		if !isStr {
			return ClaimSet{}, qferr.New(qferr.CodeMalformedClaims, "token carries a malformed email claim")
		}
		cs.Email = email
	}

	if raw, present := mc["name"]; present {
		name, isStr := raw.(string)
		if !isStr {
			return ClaimSet{}, qferr.New(qferr.CodeMalformedClaims, "token carries a malformed name claim")
		}
		cs.DisplayName = name
	}

	return cs, nil
}

// decodeAudience accepts the "aud" claim as either a plain string or a
// single-element string array (both are legal JWT encodings). Multi-valued
// audiences are rejected: tokens for this service are minted for exactly
// one consumer, and accepting extra audiences would widen the trust scope.
func decodeAudience(raw any) (string, *qferr.Error) {
	switch v := raw.(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case []any:
		if len(v) == 1 {
			if s, ok := v[0].(string); ok && s != "" {
				return s, nil
			}
		}
		if len(v) > 1 {
			return "", qferr.New(qferr.CodeMalformedClaims, "token audience must be a single value")
		}
	}
	return "", qferr.New(qferr.CodeMalformedClaims, "token is missing the audience claim")
}
