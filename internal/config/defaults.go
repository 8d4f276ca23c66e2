package config

import "github.com/drsullivan13/weather-server/internal/common"

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 3000,
			Host: "",
		},
		ATXP: ATXPConfig{
			PayeeName:          "Add",
			Timeout:            "30s",
			CredentialCacheTTL: "60s",
		},
		MCP: MCPConfig{
			Name:    "atxp-weather-server",
			Version: "1.0.0",
		},
		Logging: common.LoggingConfig{
			Level:   "info",
			Format:  "text",
			Outputs: []string{"console"},
		},
	}
}
