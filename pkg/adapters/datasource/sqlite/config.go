package sqlite

import (
	"fmt"
	"strings"
)

// Config contains SQLite-specific options.
type Config struct {
	// Path is the database file. In-memory databases are not supported:
	// every pooled connection would see a different, empty database.
	Path string
	// BusyTimeoutMS is how long a connection waits on a locked database.
	BusyTimeoutMS int
}

// DefaultBusyTimeoutMS returns the default busy timeout.
func DefaultBusyTimeoutMS() int {
	return 5000
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{BusyTimeoutMS: DefaultBusyTimeoutMS()}

	if path, ok := config["path"].(string); ok && strings.TrimSpace(path) != "" {
		cfg.Path = strings.TrimSpace(path)
	} else {
		return nil, fmt.Errorf("path is required")
	}
	if strings.HasPrefix(cfg.Path, ":memory:") || strings.Contains(cfg.Path, "mode=memory") {
		return nil, fmt.Errorf("in-memory sqlite is not supported; use a file path")
	}

	switch timeout := config["busy_timeout_ms"].(type) {
	case float64:
		cfg.BusyTimeoutMS = int(timeout)
	case int:
		cfg.BusyTimeoutMS = timeout
	}

	return cfg, nil
}

// DSN returns the modernc.org/sqlite data source name.
func (c *Config) DSN() string {
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)", c.Path, c.BusyTimeoutMS)
}
