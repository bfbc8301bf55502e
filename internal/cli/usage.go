package cli

import (
	"github.com/spf13/cobra"

	"netspeed-daemon/internal/app"
)

var (
	usageDays   int
	alertsLimit int
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show per-day usage history with weekly and monthly rollups",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Usage(cmd.Context(), app.UsageOptions{Days: usageDays})
	},
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List recently fired quota alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Alerts(app.AlertsOptions{Limit: alertsLimit})
	},
}

func init() {
	usageCmd.Flags().IntVar(&usageDays, "days", 0, "Limit the table to the most recent N days")
	alertsCmd.Flags().IntVar(&alertsLimit, "limit", 20, "Maximum alerts to list")
}
