// Package config provides configuration management for the paper-guess service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the paper-guess service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Cache contains paper cache and persistence settings.
	Cache CacheConfig `mapstructure:"cache"`
	// Warmer contains background cache warming settings.
	Warmer WarmerConfig `mapstructure:"warmer"`
	// Segmenter contains abstract segmentation tuning parameters.
	Segmenter SegmenterConfig `mapstructure:"segmenter"`
	// Archive contains ePrint archive client settings.
	Archive ArchiveConfig `mapstructure:"archive"`
	// Citations contains citation lookup provider settings.
	Citations CitationsConfig `mapstructure:"citations"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// Port is the HTTP server port (default: 8080).
	Port int `mapstructure:"port"`
	// ReadTimeout is the maximum duration for reading the request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// CacheConfig holds paper cache configuration.
type CacheConfig struct {
	// Path is the file path for cache persistence.
	Path string `mapstructure:"path"`
	// MaxSize is the maximum number of records kept by a persistence pass.
	MaxSize int `mapstructure:"max_size"`
	// MinServeSize is the minimum cache population before random
	// cache serving is preferred over on-demand processing.
	MinServeSize int `mapstructure:"min_serve_size"`
}

// WarmerConfig holds background cache warming configuration.
type WarmerConfig struct {
	// Target is the cache size the warmer fills toward.
	Target int `mapstructure:"target"`
	// Workers is the number of concurrent pipeline runs.
	Workers int `mapstructure:"workers"`
	// MaxPacing is the upper bound of the random delay between submissions.
	MaxPacing time.Duration `mapstructure:"max_pacing"`
}

// SegmenterConfig holds abstract segmentation tuning parameters.
// The defaults are calibrated for single-column title/abstract layouts
// rendered at 2x zoom.
type SegmenterConfig struct {
	// Zoom is the render resolution multiplier.
	Zoom float64 `mapstructure:"zoom"`
	// TopFraction is the fraction of darkest bands scored per block.
	TopFraction float64 `mapstructure:"top_fraction"`
	// MinAbstractLength is the minimum block length, in bands.
	MinAbstractLength int `mapstructure:"min_abstract_length"`
	// MaxAbstractLength is the maximum block length, in bands.
	MaxAbstractLength int `mapstructure:"max_abstract_length"`
	// MinAbstractGray is the maximum darkness score for a text block.
	MinAbstractGray float64 `mapstructure:"min_abstract_gray"`
	// PadSides is the horizontal crop margin in pixels.
	PadSides int `mapstructure:"pad_sides"`
	// PadTop is the top crop margin in pixels.
	PadTop int `mapstructure:"pad_top"`
	// PadBottom is the white margin appended below the crop in pixels.
	PadBottom int `mapstructure:"pad_bottom"`
}

// ArchiveConfig holds ePrint archive client configuration.
type ArchiveConfig struct {
	// BaseURL is the archive base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the retry budget for transient fetch failures.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// MaxPDFSize is the maximum accepted PDF size in bytes.
	MaxPDFSize int64 `mapstructure:"max_pdf_size"`
	// RateLimit is the maximum requests per second to the archive.
	RateLimit float64 `mapstructure:"rate_limit"`
}

// CitationsConfig holds citation lookup configuration.
type CitationsConfig struct {
	// OpenAlex contains OpenAlex provider settings.
	OpenAlex ProviderConfig `mapstructure:"openalex"`
	// SemanticScholar contains Semantic Scholar provider settings.
	SemanticScholar ProviderConfig `mapstructure:"semantic_scholar"`
	// MinInterval is the minimum delay between any two lookup calls.
	MinInterval time.Duration `mapstructure:"min_interval"`
	// FailureCooldown is the pause after repeated consecutive failures.
	FailureCooldown time.Duration `mapstructure:"failure_cooldown"`
	// FailureThreshold is the consecutive failure count that triggers
	// the cooldown.
	FailureThreshold int `mapstructure:"failure_threshold"`
}

// ProviderConfig holds settings for one citation provider.
type ProviderConfig struct {
	// Enabled indicates whether this provider participates in lookups.
	Enabled bool `mapstructure:"enabled"`
	// BaseURL is the provider API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Email is the contact email for polite-pool access (OpenAlex).
	Email string `mapstructure:"email"`
	// APIKey is the provider API key, loaded only from the environment.
	APIKey string `mapstructure:"-"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
}

// Load reads configuration from config files and environment variables.
// Environment variables use the PAPERGUESS_ prefix with underscores,
// e.g. PAPERGUESS_CACHE_MAX_SIZE=500.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("PAPERGUESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/paper-guess-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets are loaded exclusively from environment variables.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment
// variables. These fields use mapstructure:"-" to prevent loading from
// config files.
func loadSecrets(cfg *Config) {
	cfg.Citations.OpenAlex.APIKey = os.Getenv("PAPERGUESS_CITATIONS_OPENALEX_API_KEY")
	cfg.Citations.SemanticScholar.APIKey = os.Getenv("PAPERGUESS_CITATIONS_SEMANTIC_SCHOLAR_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Cache defaults
	v.SetDefault("cache.path", ".cache/paper_cache.json")
	v.SetDefault("cache.max_size", 2000)
	v.SetDefault("cache.min_serve_size", 3)

	// Warmer defaults
	v.SetDefault("warmer.target", 1000)
	v.SetDefault("warmer.workers", 5)
	v.SetDefault("warmer.max_pacing", "500ms")

	// Segmenter defaults
	v.SetDefault("segmenter.zoom", 2.0)
	v.SetDefault("segmenter.top_fraction", 0.4)
	v.SetDefault("segmenter.min_abstract_length", 15)
	v.SetDefault("segmenter.max_abstract_length", 100)
	v.SetDefault("segmenter.min_abstract_gray", 240.0)
	v.SetDefault("segmenter.pad_sides", 80)
	v.SetDefault("segmenter.pad_top", 100)
	v.SetDefault("segmenter.pad_bottom", 100)

	// Archive defaults
	v.SetDefault("archive.base_url", "https://eprint.iacr.org")
	v.SetDefault("archive.timeout", "8s")
	v.SetDefault("archive.max_retries", 3)
	v.SetDefault("archive.retry_delay", "300ms")
	v.SetDefault("archive.max_pdf_size", 50*1024*1024)
	v.SetDefault("archive.rate_limit", 5.0)

	// Citation lookup defaults
	v.SetDefault("citations.openalex.enabled", true)
	v.SetDefault("citations.openalex.base_url", "https://api.openalex.org")
	v.SetDefault("citations.openalex.email", "")
	v.SetDefault("citations.openalex.timeout", "10s")
	v.SetDefault("citations.openalex.rate_limit", 10.0)
	v.SetDefault("citations.semantic_scholar.enabled", true)
	v.SetDefault("citations.semantic_scholar.base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("citations.semantic_scholar.timeout", "20s")
	v.SetDefault("citations.semantic_scholar.rate_limit", 1.0)
	v.SetDefault("citations.min_interval", "2s")
	v.SetDefault("citations.failure_cooldown", "60s")
	v.SetDefault("citations.failure_threshold", 5)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.Port)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Cache.MaxSize <= 0 {
		return fmt.Errorf("cache max_size must be positive")
	}
	if c.Cache.Path == "" {
		return fmt.Errorf("cache path is required")
	}

	if c.Warmer.Target < 0 {
		return fmt.Errorf("warmer target must be non-negative")
	}
	if c.Warmer.Target > c.Cache.MaxSize {
		return fmt.Errorf("warmer target (%d) must be <= cache max_size (%d)", c.Warmer.Target, c.Cache.MaxSize)
	}
	if c.Warmer.Workers <= 0 {
		return fmt.Errorf("warmer workers must be positive")
	}

	if c.Segmenter.Zoom <= 0 {
		return fmt.Errorf("segmenter zoom must be positive")
	}
	if c.Segmenter.TopFraction <= 0 || c.Segmenter.TopFraction > 1 {
		return fmt.Errorf("segmenter top_fraction must be in (0, 1]")
	}
	if c.Segmenter.MinAbstractLength <= 0 {
		return fmt.Errorf("segmenter min_abstract_length must be positive")
	}
	if c.Segmenter.MaxAbstractLength < c.Segmenter.MinAbstractLength {
		return fmt.Errorf("segmenter max_abstract_length (%d) must be >= min_abstract_length (%d)",
			c.Segmenter.MaxAbstractLength, c.Segmenter.MinAbstractLength)
	}

	if c.Archive.BaseURL == "" {
		return fmt.Errorf("archive base_url is required")
	}
	if c.Archive.MaxRetries < 0 {
		return fmt.Errorf("archive max_retries must be non-negative")
	}

	return nil
}
