package app

import (
	"fmt"

	"github.com/drsullivan13/weather-server/internal/common"
	"github.com/drsullivan13/weather-server/internal/config"
	"github.com/drsullivan13/weather-server/internal/mcp"
	"github.com/drsullivan13/weather-server/internal/payment"
)

const credentialCacheSize = 1024

// App holds all application components and dependencies. It is built once
// at startup and shared read-only by every request.
type App struct {
	Config *config.Config
	Logger *common.Logger

	Account    *payment.Account
	Gate       *payment.Gate
	Registry   *mcp.Registry
	MCPHandler *mcp.Handler
}

// New initializes the application with all dependencies. Configuration
// problems are reported as *config.ConfigurationError.
func New(cfg *config.Config, logger *common.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	account, err := payment.ParseConnection(cfg.ATXP.Connection)
	if err != nil {
		return nil, &config.ConfigurationError{Issues: []string{err.Error()}}
	}

	accounts := payment.NewAccountsClient(account, cfg.ATXP.GetTimeout(), logger)

	var verifier payment.Verifier
	if cfg.ATXP.JWTSecret != "" {
		verifier = payment.NewJWTVerifier(cfg.ATXP.JWTSecret)
		logger.Info().Msg("payment credentials verified locally with shared secret")
	} else {
		verifier = payment.NewIntrospectionVerifier(accounts)
		if ttl := cfg.ATXP.GetCredentialCacheTTL(); ttl > 0 {
			verifier = payment.NewCachingVerifier(verifier, ttl, credentialCacheSize)
		}
		logger.Info().
			Str("accounts", account.BaseURL).
			Str("cache_ttl", cfg.ATXP.GetCredentialCacheTTL().String()).
			Msg("payment credentials verified by token introspection")
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Account: account,
		Gate:    payment.NewGate(account, cfg.ATXP.PayeeName, verifier, accounts, logger),
	}

	a.Registry = mcp.NewRegistry(cfg.MCP.Name, cfg.MCP.Version, logger)
	if err := a.Registry.Register(mcp.AddTool(a.Gate)); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	a.MCPHandler = mcp.NewHandler(a.Registry, logger)

	logger.Info().
		Str("account", account.String()).
		Str("payee", cfg.ATXP.PayeeName).
		Int("tools", a.Registry.Len()).
		Msg("application initialization complete")

	return a, nil
}
