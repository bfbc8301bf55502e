package app

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"netspeed-daemon/internal/control"
	"netspeed-daemon/internal/speed"
	"netspeed-daemon/internal/store"
)

// Alerts prints the recent alert audit trail, newest first.
func (a *App) Alerts(opts AlertsOptions) error {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	records, err := a.alertRecords(opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts recorded")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Fired At\tKind\tUsage\tLimit\tPercent")
	for _, rec := range records {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%.1f%%\n",
			rec.FiredAt.Local().Format(time.RFC3339),
			rec.Kind,
			speed.FormatUsage(rec.UsageBytes, false),
			speed.FormatUsage(rec.LimitBytes, false),
			rec.Percent,
		)
	}
	writer.Flush()
	return nil
}

func (a *App) alertRecords(limit int) ([]store.AlertRecord, error) {
	if resp, handled, err := a.callDaemon(control.Request{Op: control.OpAlerts, Limit: limit}); handled {
		return resp.Alerts, err
	}

	st, closeStore, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer closeStore()

	return st.ListRecentAlerts(limit)
}
