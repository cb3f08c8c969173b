package duckdb

import (
	"fmt"
	"strings"
)

// Config contains DuckDB-specific options.
type Config struct {
	// Path is the database file.
	Path string
	// Threads caps DuckDB worker threads; zero keeps the engine default.
	Threads int
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{}

	if path, ok := config["path"].(string); ok && strings.TrimSpace(path) != "" {
		cfg.Path = strings.TrimSpace(path)
	} else {
		return nil, fmt.Errorf("path is required")
	}

	switch threads := config["threads"].(type) {
	case float64:
		cfg.Threads = int(threads)
	case int:
		cfg.Threads = threads
	}
	if cfg.Threads < 0 {
		return nil, fmt.Errorf("threads must not be negative")
	}

	return cfg, nil
}

// DSN returns the duckdb-go data source name.
func (c *Config) DSN() string {
	if c.Threads > 0 {
		return fmt.Sprintf("%s?threads=%d", c.Path, c.Threads)
	}
	return c.Path
}
