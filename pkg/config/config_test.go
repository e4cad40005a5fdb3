package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 30*time.Second, cfg.NavTimeout)
	assert.Equal(t, 3, cfg.NavRetries)
	assert.Equal(t, 2*time.Second, cfg.RetryBackoff)
	assert.False(t, cfg.Strict)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
baseUrl: http://file.test
navRetries: 5
strict: true
idleTimeout: 4s
`), 0o644))

	t.Setenv("WEBGRADE_BASE_URL", "http://env.test/?share=1")
	t.Setenv("WEBGRADE_NAV_TIMEOUT", "12s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env.test/?share=1", cfg.BaseURL)
	assert.Equal(t, 5, cfg.NavRetries)
	assert.True(t, cfg.Strict)
	assert.Equal(t, 4*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 12*time.Second, cfg.NavTimeout)

	nav := cfg.Navigator()
	assert.Equal(t, 5, nav.Retries)
	assert.Equal(t, "http://env.test/?share=1", nav.BaseURL)
	assert.True(t, cfg.RunOptions().Strict)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().HTTPAddr, cfg.HTTPAddr)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("browser: firefox\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser")
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		check   func(t *testing.T, c Config)
		wantErr string
	}{
		{
			name:  "strict and retries",
			vars:  map[string]string{"WEBGRADE_STRICT": "true", "WEBGRADE_NAV_RETRIES": "1"},
			check: func(t *testing.T, c Config) { assert.True(t, c.Strict); assert.Equal(t, 1, c.NavRetries) },
		},
		{
			name:  "cors list",
			vars:  map[string]string{"WEBGRADE_CORS_ORIGINS": "http://a.test, http://b.test,"},
			check: func(t *testing.T, c Config) { assert.Equal(t, []string{"http://a.test", "http://b.test"}, c.CORSOrigins) },
		},
		{
			name:  "empty values are ignored",
			vars:  map[string]string{"WEBGRADE_MODE": ""},
			check: func(t *testing.T, c Config) { assert.Equal(t, "headless", c.Mode) },
		},
		{name: "bad duration", vars: map[string]string{"WEBGRADE_IDLE_TIMEOUT": "ten"}, wantErr: "WEBGRADE_IDLE_TIMEOUT"},
		{name: "bad bool", vars: map[string]string{"WEBGRADE_STRICT": "sometimes"}, wantErr: "WEBGRADE_STRICT"},
		{name: "bad int", vars: map[string]string{"WEBGRADE_NAV_RETRIES": "x"}, wantErr: "WEBGRADE_NAV_RETRIES"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			err := cfg.ApplyEnv(env(tt.vars))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad mode", func(c *Config) { c.Mode = "kiosk" }, "unknown mode"},
		{"bad driver", func(c *Config) { c.Driver = "firefox" }, "unknown driver"},
		{"zero retries", func(c *Config) { c.NavRetries = 0 }, "navRetries"},
		{"zero idle", func(c *Config) { c.IdleTimeout = 0 }, "idleTimeout"},
		{"negative backoff", func(c *Config) { c.RetryBackoff = -time.Second }, "retryBackoff"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"
	log := cfg.NewLogger(&buf)
	log.Info("hidden")
	log.Warn("shown", "k", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"), out)
	assert.Contains(t, out, `"msg":"shown"`)
}
