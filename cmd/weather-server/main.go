package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/drsullivan13/weather-server/internal/app"
	"github.com/drsullivan13/weather-server/internal/common"
	"github.com/drsullivan13/weather-server/internal/config"
	"github.com/drsullivan13/weather-server/internal/server"
)

// Options are the command-line flags.
type Options struct {
	Config  []string `short:"c" long:"config" description:"Configuration file path (can be specified multiple times)"`
	Port    int      `short:"p" long:"port" description:"Server port (overrides config and PORT)"`
	Host    string   `long:"host" description:"Server host (overrides config and HOST)"`
	Version bool     `long:"version" description:"Print version information"`
}

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run starts the server and blocks until ctx is cancelled. It returns the
// process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts Options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "weather-server"
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(stdout, err)
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 1
	}

	if opts.Version {
		fmt.Fprintf(stdout, "weather-server version %s\n", config.GetFullVersion())
		return 0
	}

	configFiles := opts.Config
	if len(configFiles) == 0 {
		for _, path := range configSearchPaths() {
			if _, err := os.Stat(path); err == nil {
				configFiles = append(configFiles, path)
				break
			}
		}
	}

	cfg, err := config.LoadFromFiles(configFiles...)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	config.ApplyFlagOverrides(cfg, opts.Port, opts.Host)

	if err := cfg.Validate(); err != nil {
		printConfigurationError(stderr, err)
		return 1
	}

	logger := common.NewLoggerFromConfig(cfg.Logging)

	logger.Info().
		Str("version", config.GetVersion()).
		Int("port", cfg.Server.Port).
		Str("host", cfg.Server.Host).
		Str("config_files", fmt.Sprintf("%v", configFiles)).
		Msg("configuration loaded")

	application, err := app.New(cfg, logger)
	if err != nil {
		printConfigurationError(stderr, err)
		return 1
	}

	srv := server.New(application)
	if err := srv.Listen(); err != nil {
		fmt.Fprintf(stderr, "failed to start server: %v\n", err)
		return 1
	}

	served := make(chan error, 1)
	go func() { served <- srv.Serve() }()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-served:
		if err != nil {
			logger.Error().Str("error", err.Error()).Msg("server stopped unexpectedly")
			return 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Str("error", err.Error()).Msg("server shutdown failed")
		return 1
	}

	logger.Info().Msg("server stopped")
	return 0
}

func printConfigurationError(w io.Writer, err error) {
	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) {
		fmt.Fprintf(w, "failed to initialize application: %v\n", err)
		return
	}

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Configuration error: mandatory settings are missing or invalid:")
	fmt.Fprintln(w, "")
	for _, issue := range cfgErr.Issues {
		fmt.Fprintf(w, "  - %s\n", issue)
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Set ATXP_CONNECTION to your ATXP account connection string, for example:")
	fmt.Fprintln(w, "  ATXP_CONNECTION='https://accounts.atxp.ai?connection_token=<token>&account_id=<account>'")
	fmt.Fprintln(w, "")
}

// configSearchPaths returns TOML files to auto-discover (first match wins).
// Binary-relative paths are tried before the working directory.
func configSearchPaths() []string {
	candidates := []string{
		"weather-server.toml",
		filepath.Join("config", "weather-server.toml"),
	}

	exe, err := os.Executable()
	if err != nil {
		return candidates
	}
	binDir := filepath.Dir(exe)

	paths := []string{
		filepath.Join(binDir, "weather-server.toml"),
		filepath.Join(binDir, "config", "weather-server.toml"),
	}
	paths = append(paths, candidates...)

	seen := make(map[string]bool, len(paths))
	deduped := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		deduped = append(deduped, p)
	}
	return deduped
}
