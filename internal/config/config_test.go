package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/orgquiz/internal/config"
)

type testConfig struct {
	HTTP struct {
		Port int32
	}

	Redis struct {
		Cache struct {
			Addrs  []string
			Prefix string
		}
	}

	Attempt struct {
		CacheTTL time.Duration
	}
}

func defaults() testConfig {
	var c testConfig
	c.HTTP.Port = 8080
	c.Redis.Cache.Prefix = "orgquiz"
	c.Attempt.CacheTTL = 48 * time.Hour
	return c
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad(t *testing.T) {
	tests := map[string]struct {
		arrange func(t *testing.T) string
		assert  func(t *testing.T, c testConfig, err error)
	}{
		"defaults kept when the file is silent": {
			arrange: func(t *testing.T) string {
				return writeFile(t, "http:\n  port: 9000\n")
			},
			assert: func(t *testing.T, c testConfig, err error) {
				require.NoError(t, err)
				assert.EqualValues(t, 9000, c.HTTP.Port)
				assert.Equal(t, "orgquiz", c.Redis.Cache.Prefix)
				assert.Equal(t, 48*time.Hour, c.Attempt.CacheTTL)
			},
		},
		"file values": {
			arrange: func(t *testing.T) string {
				return writeFile(t, "redis:\n  cache:\n    addrs: [\"a:6379\", \"b:6379\"]\nattempt:\n  cachettl: 1h30m\n")
			},
			assert: func(t *testing.T, c testConfig, err error) {
				require.NoError(t, err)
				assert.Equal(t, []string{"a:6379", "b:6379"}, c.Redis.Cache.Addrs)
				assert.Equal(t, 90*time.Minute, c.Attempt.CacheTTL)
			},
		},
		"environment overrides file": {
			arrange: func(t *testing.T) string {
				t.Setenv("HTTP_PORT", "7000")
				t.Setenv("REDIS_CACHE_PREFIX", "env")
				return writeFile(t, "http:\n  port: 9000\n")
			},
			assert: func(t *testing.T, c testConfig, err error) {
				require.NoError(t, err)
				assert.EqualValues(t, 7000, c.HTTP.Port)
				assert.Equal(t, "env", c.Redis.Cache.Prefix)
			},
		},
		"no file": {
			arrange: func(t *testing.T) string {
				t.Setenv("ATTEMPT_CACHETTL", "2h")
				return ""
			},
			assert: func(t *testing.T, c testConfig, err error) {
				require.NoError(t, err)
				assert.EqualValues(t, 8080, c.HTTP.Port)
				assert.Equal(t, 2*time.Hour, c.Attempt.CacheTTL)
			},
		},
		"missing file": {
			arrange: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "nope.yaml")
			},
			assert: func(t *testing.T, c testConfig, err error) {
				assert.Error(t, err)
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c := defaults()
			err := config.Load(tc.arrange(t), &c)
			tc.assert(t, c, err)
		})
	}
}
