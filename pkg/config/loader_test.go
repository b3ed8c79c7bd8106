package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qferr "github.com/Quillforge/quillforge-auth/pkg/errors"
)

type testConfig struct {
	Audience  string        `env:"AUDIENCE" envDefault:"api://default" yaml:"audience"`
	Issuers   []string      `env:"ISSUERS" yaml:"issuers"`
	TTL       time.Duration `env:"TTL" envDefault:"24h" yaml:"ttl"`
	MaxTokens int           `env:"MAX_TOKENS" envDefault:"10000" yaml:"max_tokens"`
	Debug     bool          `env:"DEBUG" envDefault:"false" yaml:"debug"`
}

type requiredConfig struct {
	Endpoint string `env:"ENDPOINT" yaml:"endpoint" required:"true"`
}

type nestedConfig struct {
	Name string     `env:"NAME" yaml:"name"`
	Auth testConfig `env:"AUTH" yaml:"auth"`
}

type validatedConfig struct {
	Skew time.Duration `env:"SKEW" envDefault:"30s" yaml:"skew"`
}

func (c *validatedConfig) Validate() error {
	if c.Skew < 0 {
		return qferr.Validation("skew must be non-negative")
	}
	return nil
}

func TestLoad_AppliesDefaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, New().Load(&cfg))

	assert.Equal(t, "api://default", cfg.Audience)
	assert.Equal(t, 24*time.Hour, cfg.TTL)
	assert.Equal(t, 10000, cfg.MaxTokens)
	assert.False(t, cfg.Debug)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("AUDIENCE", "api://blog")
	t.Setenv("TTL", "1h")
	t.Setenv("ISSUERS", "https://idp.example/t1/v2.0, https://idp.example/t1")

	var cfg testConfig
	require.NoError(t, New().Load(&cfg))

	assert.Equal(t, "api://blog", cfg.Audience)
	assert.Equal(t, time.Hour, cfg.TTL)
	assert.Equal(t, []string{"https://idp.example/t1/v2.0", "https://idp.example/t1"}, cfg.Issuers)
}

func TestLoad_EnvPrefix(t *testing.T) {
	t.Setenv("QF_AUDIENCE", "api://prefixed")
	t.Setenv("AUDIENCE", "api://unprefixed")

	var cfg testConfig
	require.NoError(t, New().WithEnvPrefix("qf").Load(&cfg))
	assert.Equal(t, "api://prefixed", cfg.Audience)
}

func TestLoad_FileOverridesDefaults_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("audience: api://from-file\nmax_tokens: 500\n"), 0o600))

	t.Setenv("MAX_TOKENS", "42")

	var cfg testConfig
	require.NoError(t, New().WithFile(path).Load(&cfg))

	assert.Equal(t, "api://from-file", cfg.Audience)
	assert.Equal(t, 42, cfg.MaxTokens, "env var wins over file value")
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	var cfg testConfig
	require.NoError(t, New().WithFile(filepath.Join(t.TempDir(), "absent.yaml")).Load(&cfg))
	assert.Equal(t, "api://default", cfg.Audience)
}

func TestLoad_RejectsTraversalAndBadExtension(t *testing.T) {
	var cfg testConfig

	err := New().WithFile("../evil.yaml").Load(&cfg)
	require.Error(t, err)
	assert.Equal(t, qferr.CodeInternalConfiguration, qferr.GetCode(err))

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	err = New().WithFile(path).Load(&cfg)
	require.Error(t, err)
	assert.Equal(t, qferr.CodeInternalConfiguration, qferr.GetCode(err))
}

func TestLoad_RequiredFieldMissing(t *testing.T) {
	var cfg requiredConfig
	err := New().Load(&cfg)
	require.Error(t, err)
	assert.Equal(t, qferr.CodeValidationRequired, qferr.GetCode(err))
}

func TestLoad_NestedEnvPrefix(t *testing.T) {
	t.Setenv("AUTH_AUDIENCE", "api://nested")

	var cfg nestedConfig
	require.NoError(t, New().Load(&cfg))
	assert.Equal(t, "api://nested", cfg.Auth.Audience)
}

func TestLoad_CustomValidatorFailure(t *testing.T) {
	t.Setenv("SKEW", "-10s")

	var cfg validatedConfig
	err := New().Load(&cfg)
	require.Error(t, err)
	assert.Equal(t, qferr.CodeValidation, qferr.GetCode(err))
}

func TestLoad_RejectsNonPointer(t *testing.T) {
	err := New().Load(testConfig{})
	require.Error(t, err)
	assert.Equal(t, qferr.CodeInternalConfiguration, qferr.GetCode(err))
}

func TestMustLoad_PanicsOnFailure(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad[requiredConfig](New())
	})
}

func TestMustLoad_ReturnsPopulatedConfig(t *testing.T) {
	t.Setenv("AUDIENCE", "api://mustload")
	cfg := MustLoad[testConfig](New())
	assert.Equal(t, "api://mustload", cfg.Audience)
}
