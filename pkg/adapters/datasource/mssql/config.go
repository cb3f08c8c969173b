package mssql

import (
	"fmt"
	"net/url"

	"github.com/ekaya-inc/herdwise/pkg/config"
)

// Authentication methods.
const (
	AuthSQL              = "sql"
	AuthServicePrincipal = "service_principal"
)

// Config contains SQL Server-specific connection options.
type Config struct {
	Host     string
	Port     int
	Database string

	// AuthMethod determines which authentication to use: "sql" or "service_principal"
	AuthMethod string

	// SQL Authentication fields
	Username string
	Password string

	// Service Principal (Azure AD) fields
	TenantID     string
	ClientID     string
	ClientSecret string

	// Connection options
	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// FromMap creates a Config from a generic config map and auto-detects auth method.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Port:              DefaultPort(),
		Encrypt:           true,
		ConnectionTimeout: DefaultConnectionTimeout(),
	}

	if host, ok := config["host"].(string); ok && host != "" {
		cfg.Host = host
	} else {
		return nil, fmt.Errorf("host is required")
	}

	switch port := config["port"].(type) {
	case float64: // JSON numbers are float64
		cfg.Port = int(port)
	case int:
		if port > 0 {
			cfg.Port = port
		}
	}

	if database, ok := config["database"].(string); ok && database != "" {
		cfg.Database = database
	} else {
		return nil, fmt.Errorf("database is required")
	}

	switch encrypt := config["encrypt"].(type) {
	case bool:
		cfg.Encrypt = encrypt
	case string:
		// Support string values: "true", "false", "strict"
		cfg.Encrypt = encrypt == "true" || encrypt == "strict"
	}

	if trust, ok := config["trust_server_certificate"].(bool); ok {
		cfg.TrustServerCertificate = trust
	}

	switch timeout := config["connection_timeout"].(type) {
	case float64:
		cfg.ConnectionTimeout = int(timeout)
	case int:
		cfg.ConnectionTimeout = timeout
	}

	// Auto-detect auth method or use explicitly provided
	if authMethod, ok := config["auth_method"].(string); ok && authMethod != "" {
		cfg.AuthMethod = authMethod
	} else if clientID, ok := config["client_id"].(string); ok && clientID != "" {
		cfg.AuthMethod = AuthServicePrincipal
	} else {
		cfg.AuthMethod = AuthSQL
	}

	switch cfg.AuthMethod {
	case AuthSQL:
		if username, ok := config["user"].(string); ok && username != "" {
			cfg.Username = username
		} else if username, ok := config["username"].(string); ok && username != "" {
			cfg.Username = username
		} else {
			return nil, fmt.Errorf("user is required for SQL authentication")
		}
		// Password can be empty for some scenarios
		cfg.Password, _ = config["password"].(string)

	case AuthServicePrincipal:
		for key, dst := range map[string]*string{
			"tenant_id":     &cfg.TenantID,
			"client_id":     &cfg.ClientID,
			"client_secret": &cfg.ClientSecret,
		} {
			v, ok := config[key].(string)
			if !ok || v == "" {
				return nil, fmt.Errorf("%s is required for service principal authentication", key)
			}
			*dst = v
		}

	default:
		return nil, fmt.Errorf("invalid auth method: %s (must be sql or service_principal)", cfg.AuthMethod)
	}

	return cfg, nil
}

// DriverName returns the database/sql driver the auth method needs.
func (c *Config) DriverName() string {
	if c.AuthMethod == AuthServicePrincipal {
		return "azuresql"
	}
	return "sqlserver"
}

// ConnectionString builds a sqlserver:// URL for the configured auth method.
func (c *Config) ConnectionString() string {
	query := url.Values{}
	query.Add("database", c.Database)

	if c.Encrypt {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}
	if c.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if c.ConnectionTimeout > 0 {
		query.Add("connection timeout", fmt.Sprintf("%d", c.ConnectionTimeout))
	}

	host := config.ResolveHostForDocker(c.Host)

	if c.AuthMethod == AuthServicePrincipal {
		query.Add("fedauth", "ActiveDirectoryServicePrincipal")
		query.Add("user id", c.ClientID+"@"+c.TenantID)
		query.Add("password", c.ClientSecret)
		return fmt.Sprintf("sqlserver://%s:%d?%s", host, c.Port, query.Encode())
	}

	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(c.Username),
		url.QueryEscape(c.Password),
		host,
		c.Port,
		query.Encode(),
	)
}
