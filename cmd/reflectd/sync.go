package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quietpage/reflectd/bootstrap"
	"github.com/quietpage/reflectd/config"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile billing snapshots against the payment provider",
	Long: `Fetch every subscription from the payment provider and rebuild the
local snapshot cache. Repairs drift caused by missed webhooks.

Customers that cannot be mapped to a local profile are counted as
errors and skipped; the run continues.

Examples:
  reflectd sync
  reflectd sync --config /etc/reflectd/config.yaml`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	app, err := bootstrap.New(cfg)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}
	defer app.Close()

	result, err := app.Sync.SyncAll(context.Background())
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Printf("Synced %d subscription(s), %d error(s)\n", result.Synced, result.Errors)
	return nil
}
