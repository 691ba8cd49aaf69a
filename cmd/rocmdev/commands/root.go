package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rocmdev/rocmdev/pkg/config"
	"github.com/rocmdev/rocmdev/pkg/telemetry"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rocmdev",
		Short: "rocmdev - ROCm development environment provisioner",
		Long: `rocmdev turns a bare AMD GPU host into a ready devcontainer workspace.

It observes the host, decides the minimal set of actions to converge on the
desired state, and applies them. Every operation is idempotent: a second run
against a converged host changes nothing.

Managed resources:
  - amdgpu kernel driver and ROCm userland packages
  - Docker engine and the render/video/docker group memberships
  - VS Code and its recommended extensions
  - The generated .devcontainer artifact set (Dockerfile, descriptor,
    GPU verification script)`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger, err := configureLogging(cfg.Logging, verbose)
			if err != nil {
				return err
			}
			log.Logger = logger
			return nil
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newFactsCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newProvisionCommand())
	rootCmd.AddCommand(newGenerateCommand())
	rootCmd.AddCommand(newRunsCommand())

	return rootCmd
}

// configureLogging builds the process logger from the configured policy.
// --verbose lowers the level to debug whatever the config file says.
func configureLogging(cfg telemetry.LoggingConfig, verbose bool) (zerolog.Logger, error) {
	if verbose {
		cfg.Level = "debug"
	}
	return telemetry.NewLogger(cfg)
}
