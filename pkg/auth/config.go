package auth

import (
	"strings"
	"time"

	qferr "github.com/Quillforge/quillforge-auth/pkg/errors"
)

// Config holds the externally supplied settings for the token validation
// pipeline: the trust domain, the expected audience and issuers, and the
// caching/timing knobs. Populate it directly or through the pkg/config
// loader using the struct tags.
type Config struct {
	// TrustDomain identifies the issuing trust domain. When JWKSURL is
	// empty, the key-discovery URL is derived from it as
	// <TrustDomain>/.well-known/jwks.json.
	TrustDomain string `json:"trust_domain" yaml:"trust_domain" env:"TRUST_DOMAIN"`

	// JWKSURL optionally overrides the derived key-discovery URL.
	JWKSURL string `json:"jwks_url,omitempty" yaml:"jwks_url" env:"JWKS_URL"`

	// Audience is the expected "aud" claim. Tokens minted for any other
	// consumer are rejected even when correctly signed by a trusted issuer.
	Audience string `json:"audience" yaml:"audience" env:"AUDIENCE"`

	// Issuers is the allow-list of acceptable "iss" claim values for the
	// trust domain. A token's issuer must match one entry exactly.
	Issuers []string `json:"issuers" yaml:"issuers" env:"ISSUERS"`

	// KeyCacheTTL is how long a fetched KeySet remains valid before a
	// lookup miss triggers a refresh. Defaults to 24 hours.
	KeyCacheTTL time.Duration `json:"key_cache_ttl" yaml:"key_cache_ttl" env:"KEY_CACHE_TTL" envDefault:"24h"`

	// RefreshPerMinute caps key refresh attempts per minute, bounding load
	// on the discovery endpoint when unknown key ids arrive in bulk.
	// Defaults to 10.
	RefreshPerMinute int `json:"refresh_per_minute" yaml:"refresh_per_minute" env:"REFRESH_PER_MINUTE" envDefault:"10"`

	// FetchTimeout bounds each key-discovery request. Defaults to 10s.
	FetchTimeout time.Duration `json:"fetch_timeout" yaml:"fetch_timeout" env:"FETCH_TIMEOUT" envDefault:"10s"`

	// ClockSkew is the tolerated clock difference between this service and
	// the token issuer when checking expiry and not-before times. Must not
	// exceed two minutes. Defaults to 60s.
	ClockSkew time.Duration `json:"clock_skew" yaml:"clock_skew" env:"CLOCK_SKEW" envDefault:"60s"`

	// IdentityCacheTTL is how long a validated identity may be served from
	// cache before the token is re-validated. The effective per-token TTL
	// is capped by the token's remaining lifetime. Zero disables identity
	// caching. Defaults to 5 minutes.
	IdentityCacheTTL time.Duration `json:"identity_cache_ttl" yaml:"identity_cache_ttl" env:"IDENTITY_CACHE_TTL" envDefault:"5m"`

	// IdentityCacheMaxSize bounds the in-memory identity cache. Defaults
	// to 10000.
	IdentityCacheMaxSize int `json:"identity_cache_max_size" yaml:"identity_cache_max_size" env:"IDENTITY_CACHE_MAX_SIZE" envDefault:"10000"`

	// HTTPClient is used for key-discovery fetches. If nil, a default
	// client is used; the FetchTimeout applies either way.
	HTTPClient HTTPClient `json:"-" yaml:"-"`
}

// maxClockSkew caps the tolerated clock difference. Larger skews widen the
// window in which expired tokens are accepted.
const maxClockSkew = 2 * time.Minute

// DefaultConfig returns a Config with the recommended defaults. TrustDomain
// (or JWKSURL), Audience, and Issuers must still be supplied.
func DefaultConfig() Config {
	return Config{
		KeyCacheTTL:          24 * time.Hour,
		RefreshPerMinute:     10,
		FetchTimeout:         10 * time.Second,
		ClockSkew:            60 * time.Second,
		IdentityCacheTTL:     5 * time.Minute,
		IdentityCacheMaxSize: 10000,
	}
}

// Validate checks the configuration for logical correctness and returns a
// *[qferr.Error] with code [qferr.CodeInternalConfiguration] if any field
// is invalid.
func (c *Config) Validate() error {
	if c.TrustDomain == "" && c.JWKSURL == "" {
		return qferr.New(qferr.CodeInternalConfiguration,
			"auth: either trust domain or JWKS URL must be configured")
	}
	if c.Audience == "" {
		return qferr.New(qferr.CodeInternalConfiguration,
			"auth: expected audience must not be empty")
	}
	if len(c.Issuers) == 0 {
		return qferr.New(qferr.CodeInternalConfiguration,
			"auth: at least one acceptable issuer must be configured")
	}
	for _, iss := range c.Issuers {
		if strings.TrimSpace(iss) == "" {
			return qferr.New(qferr.CodeInternalConfiguration,
				"auth: issuer entries must not be blank")
		}
	}
	if c.KeyCacheTTL <= 0 {
		return qferr.New(qferr.CodeInternalConfiguration,
			"auth: key cache TTL must be positive")
	}
	if c.RefreshPerMinute <= 0 {
		return qferr.New(qferr.CodeInternalConfiguration,
			"auth: refresh rate limit must be positive")
	}
	if c.FetchTimeout <= 0 {
		return qferr.New(qferr.CodeInternalConfiguration,
			"auth: fetch timeout must be positive")
	}
	if c.ClockSkew < 0 || c.ClockSkew > maxClockSkew {
		return qferr.Newf(qferr.CodeInternalConfiguration,
			"auth: clock skew must be between 0 and %s", maxClockSkew)
	}
	if c.IdentityCacheTTL < 0 {
		return qferr.New(qferr.CodeInternalConfiguration,
			"auth: identity cache TTL must be non-negative")
	}
	if c.IdentityCacheTTL > 0 && c.IdentityCacheMaxSize <= 0 {
		return qferr.New(qferr.CodeInternalConfiguration,
			"auth: identity cache max size must be positive when caching is enabled")
	}
	return nil
}

// discoveryURL returns the effective key-discovery URL.
func (c *Config) discoveryURL() string {
	if c.JWKSURL != "" {
		return c.JWKSURL
	}
	return strings.TrimRight(c.TrustDomain, "/") + "/.well-known/jwks.json"
}
