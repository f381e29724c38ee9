package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quietpage/reflectd/app"
	"github.com/quietpage/reflectd/bootstrap"
	"github.com/quietpage/reflectd/config"
)

var (
	backfillDryRun     bool
	backfillBatchSize  int
	backfillMaxBatches int
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Generate titles for saved journals that never got one",
	Long: `Walk saved journals missing a generated title and title them in
batches. Manually titled journals are never touched.

Examples:
  reflectd backfill --dry-run
  reflectd backfill --batch-size 25 --max-batches 4`,
	RunE: runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)

	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "report candidates without writing titles")
	backfillCmd.Flags().IntVar(&backfillBatchSize, "batch-size", 0, "journals per batch (0 = default)")
	backfillCmd.Flags().IntVar(&backfillMaxBatches, "max-batches", 0, "maximum batches per run (0 = default)")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	boot, err := bootstrap.New(cfg)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}
	defer boot.Close()

	result, err := boot.Backfill.Run(context.Background(), app.BackfillOptions{
		DryRun:     backfillDryRun,
		BatchSize:  backfillBatchSize,
		MaxBatches: backfillMaxBatches,
	})
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}

	fmt.Printf("Processed %d journal(s) in %d batch(es)\n", result.Processed, result.Batches)
	fmt.Printf("  titled:  %d\n", result.Successful)
	fmt.Printf("  skipped: %d\n", result.Skipped)
	fmt.Printf("  failed:  %d\n", result.Failed)
	for _, msg := range result.Errors {
		fmt.Printf("  error: %s\n", msg)
	}
	return nil
}
