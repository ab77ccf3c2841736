package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	dataDir string
	verbose bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "agora",
	Short: "Multi-actor session simulator",
	Long: `agora runs policy-governed multi-actor sessions over a durable
append-only event log.

Core Commands:
  run       Run a session from a roster and a policy file
  sessions  List stored sessions
  inspect   Print the event log of a stored session`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./sessions", "Base directory for session storage")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}
