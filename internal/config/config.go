package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable, e.g. SEEN_DB_PATH
const Prefix = "SEEN"

// Config holds the configuration for the seen registry
type Config struct {
	// Storage
	DBDriver string `envconfig:"DB_DRIVER" default:"sqlite"`
	DBPath   string `envconfig:"DB_PATH" default:""`

	// HTTP
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	// Pagination
	DefaultPageSize int `envconfig:"DEFAULT_PAGE_SIZE" default:"50"`
	MaxPageSize     int `envconfig:"MAX_PAGE_SIZE" default:"0"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// New creates a new Config by parsing SEEN_ environment variables
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ResolveDefaults validates the driver and page sizes and fills in the
// default database location (~/.seen/seen.db)
func (c *Config) ResolveDefaults() error {
	switch c.DBDriver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}

	if c.DBPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.DBPath = filepath.Join(home, ".seen", "seen.db")
	}

	if c.DefaultPageSize < 1 {
		return fmt.Errorf("DEFAULT_PAGE_SIZE must be positive, got %d", c.DefaultPageSize)
	}
	if c.MaxPageSize < 0 {
		return fmt.Errorf("MAX_PAGE_SIZE must not be negative, got %d", c.MaxPageSize)
	}
	if c.MaxPageSize > 0 && c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("DEFAULT_PAGE_SIZE %d exceeds MAX_PAGE_SIZE %d", c.DefaultPageSize, c.MaxPageSize)
	}
	return nil
}

// NewForTesting creates an in-memory config for tests
func NewForTesting() *Config {
	return &Config{
		DBDriver:        "memory",
		DBPath:          "",
		HTTPAddr:        ":0",
		ShutdownTimeout: time.Second,
		DefaultPageSize: 50,
		LogLevel:        "disabled",
	}
}
