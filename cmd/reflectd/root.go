package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reflectd",
	Short: "Entitlement and billing reconciliation service for the journaling app",
	Long: `reflectd decides what each user may do, keeps billing state in sync
with the payment provider, and titles saved journals.

Quick start:
  reflectd serve     # Start the API server

Maintenance:
  reflectd sync      # Reconcile snapshots against the provider
  reflectd backfill  # Generate titles for untitled journals
  reflectd validate  # Validate configuration`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "reflectd.yaml", "config file path")
}
