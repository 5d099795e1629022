package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cbergstrom/laddr/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "laddr",
	Short: "Tiered escalation engine for model-backed workflows",
	Long: `laddr runs multi-stage workflows against a ladder of model tiers,
starting every stage at the cheapest tier and escalating only when the
output fails validation. Progress is checkpointed per agent, so an
interrupted run resumes where it stopped instead of repeating paid work.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig honors the --config flag, falling back to the standard
// search paths.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (default: .laddr.yaml, then ~/.config/laddr/config.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(versionCmd)
}
