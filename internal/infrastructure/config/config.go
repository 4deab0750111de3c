// Package config loads service configuration from environment variables.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Preview   PreviewConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8070"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// PreviewConfig holds defaults for the rendering surface and bundle server.
type PreviewConfig struct {
	Width       int    `envconfig:"PREVIEW_WIDTH" default:"320"`
	Height      int    `envconfig:"PREVIEW_HEIGHT" default:"480"`
	Placement   string `envconfig:"PREVIEW_PLACEMENT" default:"inline"`
	VirtualRoot string `envconfig:"BUNDLE_ROOT" default:"/ad"`
	// MaxBundleBytes caps the total decoded size of an uploaded bundle.
	MaxBundleBytes int64 `envconfig:"MAX_BUNDLE_BYTES" default:"52428800"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"200"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"400"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8070",
			Host: "0.0.0.0",
		},
		Preview: PreviewConfig{
			Width:          320,
			Height:         480,
			Placement:      "inline",
			VirtualRoot:    "/ad",
			MaxBundleBytes: 50 << 20,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 200,
			Burst:             400,
			Enabled:           true,
		},
	}
}

// Validate rejects configurations the preview surface cannot honor.
func (c *Config) Validate() error {
	if c.Preview.Width <= 0 || c.Preview.Height <= 0 {
		return fmt.Errorf("preview dimensions must be positive, got %dx%d", c.Preview.Width, c.Preview.Height)
	}
	if c.Preview.VirtualRoot == "" || c.Preview.VirtualRoot[0] != '/' {
		return fmt.Errorf("bundle virtual root must start with '/', got %q", c.Preview.VirtualRoot)
	}
	return nil
}
