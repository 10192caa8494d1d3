// Package cmd provides the CLI commands for costengine.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bllfield/intelliwatt-costengine/internal/logging"
)

var verbose bool

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "costengine",
	Short: "Usage-to-cost engine for retail electricity plans",
	Long: `costengine prices retail electricity plans against a home's actual
usage history and produces auditable 12-month cost estimates.

Examples:
  costengine estimate --structure plan.json --home home-1 --meter meter-1 --territory oncor
  costengine worker
  costengine migrate up`,
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

func initLogging() {
	cfg := logging.FromEnv()
	if verbose {
		cfg.Level = "debug"
	}
	if err := logging.Initialize(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("costengine version 0.1.0")
	},
}
