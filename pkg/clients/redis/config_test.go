package redis

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	t.Run("defaults are valid", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultConfig()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("zero values get defaults applied", func(t *testing.T) {
		t.Parallel()

		cfg := &Config{}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, DefaultHost, cfg.Host)
		assert.Equal(t, DefaultPort, cfg.Port)
		assert.Equal(t, DefaultPoolSize, cfg.PoolSize)
		assert.Equal(t, DefaultDialTimeout, cfg.DialTimeout)
	})

	t.Run("URI scheme must be redis or rediss", func(t *testing.T) {
		t.Parallel()

		for _, uri := range []string{"redis://localhost:6379/0", "rediss://localhost:6379/0"} {
			cfg := &Config{URI: uri}
			assert.NoError(t, cfg.Validate(), uri)
		}

		cfg := &Config{URI: "http://localhost:6379"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("out-of-range port is rejected", func(t *testing.T) {
		t.Parallel()

		cfg := DefaultConfig()
		cfg.Port = 70000
		assert.Error(t, cfg.Validate())
	})

	t.Run("pool smaller than idle floor is rejected", func(t *testing.T) {
		t.Parallel()

		cfg := DefaultConfig()
		cfg.PoolSize = 2
		cfg.MinIdleConns = 10
		assert.Error(t, cfg.Validate())
	})
}

func TestSecretRedaction(t *testing.T) {
	t.Parallel()

	secret := Secret("hunter2")

	assert.Equal(t, "[REDACTED]", secret.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", secret))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%#v", secret))
	assert.Equal(t, "hunter2", secret.Value())

	raw, err := json.Marshal(struct {
		Password Secret `json:"password"`
	}{Password: secret})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter2")
}

func TestTruncateStatement(t *testing.T) {
	t.Parallel()

	short := "GET key"
	assert.Equal(t, short, truncateStatement(short))

	long := "SET " + strings.Repeat("x", 200)
	truncated := truncateStatement(long)
	assert.True(t, strings.HasSuffix(truncated, "..."))
	assert.LessOrEqual(t, len([]rune(truncated)), maxStatementTruncateLen+3)
}
