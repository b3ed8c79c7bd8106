// Package redis provides the Redis client used for the shared identity
// cache, wrapping go-redis (github.com/redis/go-redis/v9) with
// OpenTelemetry tracing, structured error handling, and configuration
// management.
//
// Create a client with [NewClient] and hand it to
// [auth.NewRedisIdentityCache] via [Client.Cmdable]:
//
//	cfg := redis.DefaultConfig()
//	cfg.Password = redis.Secret(os.Getenv("REDIS_PASSWORD"))
//	client, err := redis.NewClient(ctx, *cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	cache := auth.NewRedisIdentityCache(client.Cmdable(), 5*time.Minute)
//
// For testing, inject a mock with [NewFromClient].
package redis

import (
	"net/url"
	"time"

	qferr "github.com/Quillforge/quillforge-auth/pkg/errors"
)

// maxStatementTruncateLen caps Redis statements recorded in trace spans so
// that key material and cached identity payloads never reach telemetry.
const maxStatementTruncateLen = 100

// Default connection pool and timeout settings.
const (
	// DefaultHost is the Kubernetes Service DNS name for the shared
	// identity-cache Redis on Quillforge deployments.
	DefaultHost = "redis.caches.svc.cluster.local"

	// DefaultPort is the standard Redis port.
	DefaultPort = 6379

	// DefaultDB is the default Redis database index.
	DefaultDB = 0

	// DefaultPoolSize is the maximum number of pooled connections.
	DefaultPoolSize = 25

	// DefaultMinIdleConns is the minimum number of idle connections kept
	// ready for burst traffic.
	DefaultMinIdleConns = 5

	// DefaultMaxRetries is the number of retries before a command fails.
	DefaultMaxRetries = 3

	// DefaultDialTimeout bounds connection establishment.
	DefaultDialTimeout = 10 * time.Second

	// DefaultReadTimeout bounds each read from Redis.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout bounds each write to Redis.
	DefaultWriteTimeout = 5 * time.Second

	// DefaultHealthTimeout applies to health-check pings when the caller's
	// context has no deadline.
	DefaultHealthTimeout = 5 * time.Second
)

// Secret is a string type that prevents accidental logging of sensitive
// values such as Redis passwords. Its String and GoString methods return a
// redacted placeholder; use [Secret.Value] to retrieve the actual value.
type Secret string

// redacted is the placeholder returned by Secret's string methods.
const redacted = "[REDACTED]"

// String returns "[REDACTED]" to prevent accidental logging of the secret.
func (s Secret) String() string {
	return redacted
}

// GoString returns "[REDACTED]" for fmt.Sprintf("%#v", secret) safety.
func (s Secret) GoString() string {
	return redacted
}

// Value returns the actual secret string. Avoid logging or serializing it.
func (s Secret) Value() string {
	return string(s)
}

// MarshalText implements encoding.TextMarshaler, returning "[REDACTED]" so
// the secret never appears in JSON or YAML output.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// Config holds the Redis connection configuration. When URI is set it
// takes precedence over the individual Host, Port, DB, and Password
// fields.
type Config struct {
	// URI is a Redis connection string ("redis://:password@host:6379/0"
	// or "rediss://..." for TLS). When set, Host, Port, DB, and Password
	// are ignored.
	URI string `json:"uri,omitempty" yaml:"uri" env:"REDIS_URI"`

	// Host is the Redis server hostname or IP address.
	Host string `json:"host,omitempty" yaml:"host" env:"REDIS_HOST"`

	// Port is the Redis server port.
	Port int `json:"port,omitempty" yaml:"port" env:"REDIS_PORT"`

	// DB is the Redis database index.
	DB int `json:"db" yaml:"db" env:"REDIS_DB"`

	// Password is the Redis password, typed as [Secret] so it cannot leak
	// through logs or serialized configuration.
	Password Secret `json:"-" yaml:"-" env:"REDIS_PASSWORD"`

	// PoolSize is the maximum number of pooled connections.
	PoolSize int `json:"pool_size,omitempty" yaml:"pool_size" env:"REDIS_POOL_SIZE"`

	// MinIdleConns is the minimum number of idle pooled connections.
	MinIdleConns int `json:"min_idle_conns,omitempty" yaml:"min_idle_conns" env:"REDIS_MIN_IDLE_CONNS"`

	// MaxRetries is the maximum retries per command. -1 disables retries.
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries" env:"REDIS_MAX_RETRIES"`

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration `json:"dial_timeout,omitempty" yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT"`

	// ReadTimeout bounds each read from Redis.
	ReadTimeout time.Duration `json:"read_timeout,omitempty" yaml:"read_timeout" env:"REDIS_READ_TIMEOUT"`

	// WriteTimeout bounds each write to Redis.
	WriteTimeout time.Duration `json:"write_timeout,omitempty" yaml:"write_timeout" env:"REDIS_WRITE_TIMEOUT"`

	// TLSEnabled turns on TLS for structured configuration. A "rediss://"
	// URI enables TLS automatically.
	TLSEnabled bool `json:"tls_enabled,omitempty" yaml:"tls_enabled" env:"REDIS_TLS_ENABLED"`
}

// DefaultConfig returns a Config with defaults suitable for a Kubernetes
// deployment. Override fields as needed before calling [NewClient].
func DefaultConfig() *Config {
	return &Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		DB:           DefaultDB,
		PoolSize:     DefaultPoolSize,
		MinIdleConns: DefaultMinIdleConns,
		MaxRetries:   DefaultMaxRetries,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
}

// Validate checks the configuration and applies defaults for zero-valued
// pool and timeout fields. Returns a [qferr.CodeValidation] error for the
// first invalid field.
func (c *Config) Validate() error {
	c.applyDefaults()

	if c.URI != "" {
		u, err := url.Parse(c.URI)
		if err != nil {
			return qferr.Wrap(err, qferr.CodeValidation, "redis: config URI is invalid")
		}
		if u.Scheme != "redis" && u.Scheme != "rediss" {
			return qferr.Newf(qferr.CodeValidation,
				"redis: config URI scheme must be redis:// or rediss://, got %q", u.Scheme)
		}
		return nil
	}

	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 1 || c.Port > 65535 {
		return qferr.Newf(qferr.CodeValidation,
			"redis: config port must be between 1 and 65535, got %d", c.Port)
	}
	if c.PoolSize < 1 {
		return qferr.Newf(qferr.CodeValidation,
			"redis: config pool_size must be >= 1, got %d", c.PoolSize)
	}
	if c.MinIdleConns < 0 {
		return qferr.Newf(qferr.CodeValidation,
			"redis: config min_idle_conns must be >= 0, got %d", c.MinIdleConns)
	}
	if c.PoolSize < c.MinIdleConns {
		return qferr.Newf(qferr.CodeValidation,
			"redis: config pool_size (%d) must be >= min_idle_conns (%d)", c.PoolSize, c.MinIdleConns)
	}
	if c.DialTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return qferr.New(qferr.CodeValidation, "redis: config timeouts must not be negative")
	}

	return nil
}

// applyDefaults sets defaults for zero-valued pool and timeout fields.
func (c *Config) applyDefaults() {
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.MinIdleConns == 0 {
		c.MinIdleConns = DefaultMinIdleConns
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
}

// truncateStatement trims a Redis statement to maxStatementTruncateLen
// runes before it is attached to a trace span.
func truncateStatement(s string) string {
	runes := []rune(s)
	if len(runes) <= maxStatementTruncateLen {
		return s
	}
	return string(runes[:maxStatementTruncateLen]) + "..."
}
