package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Run from a temp dir so a developer's local config.yaml is not picked up.
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)

	assert.Equal(t, ".cache/paper_cache.json", cfg.Cache.Path)
	assert.Equal(t, 2000, cfg.Cache.MaxSize)
	assert.Equal(t, 3, cfg.Cache.MinServeSize)

	assert.Equal(t, 1000, cfg.Warmer.Target)
	assert.Equal(t, 5, cfg.Warmer.Workers)

	assert.Equal(t, 2.0, cfg.Segmenter.Zoom)
	assert.Equal(t, 0.4, cfg.Segmenter.TopFraction)
	assert.Equal(t, 15, cfg.Segmenter.MinAbstractLength)
	assert.Equal(t, 100, cfg.Segmenter.MaxAbstractLength)
	assert.Equal(t, 240.0, cfg.Segmenter.MinAbstractGray)

	assert.Equal(t, "https://eprint.iacr.org", cfg.Archive.BaseURL)
	assert.Equal(t, 3, cfg.Archive.MaxRetries)
	assert.Equal(t, 8*time.Second, cfg.Archive.Timeout)

	assert.True(t, cfg.Citations.OpenAlex.Enabled)
	assert.True(t, cfg.Citations.SemanticScholar.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Citations.MinInterval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PAPERGUESS_SERVER_PORT", "9999")
	t.Setenv("PAPERGUESS_CACHE_MAX_SIZE", "5000")
	t.Setenv("PAPERGUESS_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 5000, cfg.Cache.MaxSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Secrets(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PAPERGUESS_CITATIONS_OPENALEX_API_KEY", "oa-key")
	t.Setenv("PAPERGUESS_CITATIONS_SEMANTIC_SCHOLAR_API_KEY", "s2-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "oa-key", cfg.Citations.OpenAlex.APIKey)
	assert.Equal(t, "s2-key", cfg.Citations.SemanticScholar.APIKey)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		t.Helper()
		t.Chdir(t.TempDir())
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid HTTP port",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name:    "non-positive cache size",
			mutate:  func(c *Config) { c.Cache.MaxSize = 0 },
			wantErr: "cache max_size",
		},
		{
			name: "warm target above cache bound",
			mutate: func(c *Config) {
				c.Cache.MaxSize = 100
				c.Warmer.Target = 200
			},
			wantErr: "warmer target",
		},
		{
			name:    "zero zoom",
			mutate:  func(c *Config) { c.Segmenter.Zoom = 0 },
			wantErr: "zoom",
		},
		{
			name: "inverted abstract length bounds",
			mutate: func(c *Config) {
				c.Segmenter.MinAbstractLength = 50
				c.Segmenter.MaxAbstractLength = 10
			},
			wantErr: "max_abstract_length",
		},
		{
			name:    "missing archive base url",
			mutate:  func(c *Config) { c.Archive.BaseURL = "" },
			wantErr: "archive base_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
