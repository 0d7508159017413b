package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tycho",
	Short: "Tycho - SQL query and export service",
	Long: `Tycho registers PostgreSQL and MySQL databases, runs read-only SQL
against them, and exports query results to CSV, JSON, or Markdown files.

Exports run as asynchronous background tasks with progress tracking,
per-user concurrency limits, pre-export size estimation, and
cancellation.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
