package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvcrn/bearer-proxy/internal/app"
	"github.com/dvcrn/bearer-proxy/internal/config"
	"github.com/dvcrn/bearer-proxy/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagBaseURL    string
	flagBackend    string
	flagVerbose    bool
	flagQuiet      bool
)

// resolvedCfg is the effective configuration, loaded by PersistentPreRunE.
var resolvedCfg *config.Config

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bearer-proxy",
		Short:         "Authenticated HTTP client and proxy",
		Long:          "Sends requests with a stored bearer token and refreshes it once, however many requests are waiting.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "upstream API base URL")
	cmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "credential store (file, memory, env, redis, keychain)")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "only log errors")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newRefreshCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newPostCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMockCmd())
	cmd.AddCommand(newBenchCmd())

	return cmd
}

// loadConfig resolves the configuration and stores it in resolvedCfg.
func loadConfig(cmd *cobra.Command) error {
	cli := config.CLIOverrides{ConfigPath: flagConfigPath}

	if cmd.Flags().Changed("base-url") {
		cli.BaseURL = &flagBaseURL
	}
	if cmd.Flags().Changed("backend") {
		cli.Backend = &flagBackend
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = resolved
	return nil
}

// buildLogger creates the logger from the config. --verbose and --quiet win.
func buildLogger(cmd *cobra.Command) zerolog.Logger {
	opts := logger.Options{
		Out: cmd.ErrOrStderr(),
	}
	if resolvedCfg != nil {
		opts.Level = resolvedCfg.Logging.Level
		opts.Format = logger.Format(resolvedCfg.Logging.Format)
	}

	if flagVerbose {
		opts.Level = "debug"
	}
	if flagQuiet {
		opts.Level = "error"
	}

	return logger.New(opts)
}

// newApp builds the application for a command. Callers close it.
func newApp(cmd *cobra.Command) (*app.App, zerolog.Logger, error) {
	log := buildLogger(cmd)
	a, err := app.New(resolvedCfg, log)
	if err != nil {
		return nil, log, err
	}
	return a, log, nil
}

func closeApp(a *app.App, log zerolog.Logger) {
	if err := a.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close credential store")
	}
}
