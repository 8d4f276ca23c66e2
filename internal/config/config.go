package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/drsullivan13/weather-server/internal/common"
)

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig         `toml:"server"`
	ATXP    ATXPConfig           `toml:"atxp"`
	MCP     MCPConfig            `toml:"mcp"`
	Logging common.LoggingConfig `toml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// ATXPConfig contains the payment destination and how incoming payment
// credentials are verified.
type ATXPConfig struct {
	Connection string `toml:"connection"`
	PayeeName  string `toml:"payee_name"`
	JWTSecret  string `toml:"jwt_secret"`
	Timeout    string `toml:"timeout"`

	// CredentialCacheTTL bounds how long an introspected credential is
	// trusted without asking the accounts service again. "0s" disables it.
	CredentialCacheTTL string `toml:"credential_cache_ttl"`
}

// GetTimeout parses the accounts service timeout, falling back to 30s.
func (c *ATXPConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetCredentialCacheTTL parses the credential cache TTL, falling back to 60s.
// A zero or negative value disables caching.
func (c *ATXPConfig) GetCredentialCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.CredentialCacheTTL)
	if err != nil {
		return 60 * time.Second
	}
	if d < 0 {
		return 0
	}
	return d
}

// MCPConfig contains the identity advertised during MCP initialization.
type MCPConfig struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// ConfigurationError reports settings that prevent the server from starting.
type ConfigurationError struct {
	Issues []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Issues, "; ")
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("HOST"); host != "" {
		config.Server.Host = host
	}
	if conn := os.Getenv("ATXP_CONNECTION"); conn != "" {
		config.ATXP.Connection = conn
	}
	if payee := os.Getenv("ATXP_PAYEE_NAME"); payee != "" {
		config.ATXP.PayeeName = payee
	}
	if secret := os.Getenv("ATXP_JWT_SECRET"); secret != "" {
		config.ATXP.JWTSecret = secret
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate reports every setting that would stop the server from serving.
// It returns nil or a *ConfigurationError.
func (c *Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.ATXP.Connection) == "" {
		issues = append(issues, "ATXP_CONNECTION is required")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		issues = append(issues, fmt.Sprintf("server port %d is out of range", c.Server.Port))
	}
	if strings.TrimSpace(c.ATXP.PayeeName) == "" {
		issues = append(issues, "atxp payee_name must not be empty")
	}

	if len(issues) > 0 {
		return &ConfigurationError{Issues: issues}
	}
	return nil
}
