package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/bulwark/pkg/cli"
	"mercator-hq/bulwark/pkg/config"
	"mercator-hq/bulwark/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "bulwark",
	Short: "Bulwark - resilience policy resolution service",
	Long: `Bulwark resolves per-command resilience policies (thread pool, circuit
breaker and metrics settings) from a configuration of defaults and
overrides, and keeps them installed for the execution library.

The configuration can be inline in the service config, a standalone
YAML or TOML file, or a file in a Git repository.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with a code derived from the
// error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var invalid *cli.InvalidError
		if !errors.As(err, &invalid) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig loads the service configuration. A missing default config
// file is not an error: the built-in defaults are used instead.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if _, err := os.Stat(cfgFile); errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		return config.Default(), nil
	}

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg, nil
}

// applyFileOverride points the source at a resilience file given on the
// command line.
func applyFileOverride(cfg *config.Config, file string) {
	if file == "" {
		return
	}
	cfg.Source.Mode = "file"
	cfg.Source.FilePath = file
}

// commandLogger returns the logger for one-shot commands: silent unless
// --verbose is set.
func commandLogger() *slog.Logger {
	if !verbose {
		return logging.Discard()
	}
	logger, err := logging.New(logging.Config{
		Level:  "debug",
		Format: string(logging.FormatConsole),
		Writer: os.Stderr,
	})
	if err != nil {
		return logging.Discard()
	}
	return logger
}
