package cli

import (
	"github.com/spf13/cobra"

	"netspeed-daemon/internal/app"
)

var (
	backfillDays   int
	backfillDryRun bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Rebuild manual per-day counters from the accounting daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Backfill(cmd.Context(), app.BackfillOptions{
			Days:   backfillDays,
			DryRun: backfillDryRun,
		})
	},
}

func init() {
	backfillCmd.Flags().IntVar(&backfillDays, "days", 0, "Days to backfill (defaults to the configured lookback)")
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "Log what would be written without writing")
}
