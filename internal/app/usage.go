package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"netspeed-daemon/internal/control"
	"netspeed-daemon/internal/speed"
	"netspeed-daemon/internal/store"
	"netspeed-daemon/internal/usage"
)

// Usage prints the per-day history table with the 7- and 30-day rollups.
func (a *App) Usage(ctx context.Context, opts UsageOptions) error {
	records, rollup, forceMB, err := a.usageReport(ctx)
	if err != nil {
		return err
	}

	if opts.Days > 0 && opts.Days < len(records) {
		records = records[:opts.Days]
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Day\tMobile\tWiFi\tTotal")
	for _, rec := range records {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			rec.DayStart.Format("2006-01-02"),
			speed.FormatUsage(rec.Mobile, forceMB),
			speed.FormatUsage(rec.Wifi, forceMB),
			speed.FormatUsage(rec.Total(), forceMB),
		)
	}
	writer.Flush()

	fmt.Fprintf(os.Stdout, "\nlast 7 days:  mobile %s, wifi %s, total %s\n",
		speed.FormatUsage(rollup.Mobile7, forceMB),
		speed.FormatUsage(rollup.Wifi7, forceMB),
		speed.FormatUsage(rollup.Total7(), forceMB),
	)
	fmt.Fprintf(os.Stdout, "last 30 days: mobile %s, wifi %s, total %s\n",
		speed.FormatUsage(rollup.Mobile30, forceMB),
		speed.FormatUsage(rollup.Wifi30, forceMB),
		speed.FormatUsage(rollup.Total30(), forceMB),
	)
	return nil
}

// usageReport collects the daily table, from the daemon when one is running.
func (a *App) usageReport(ctx context.Context) ([]usage.DailyRecord, usage.Rollup, bool, error) {
	if resp, handled, err := a.callDaemon(control.Request{Op: control.OpUsage}); handled {
		if err != nil {
			return nil, usage.Rollup{}, false, err
		}
		if resp.Usage == nil {
			return nil, usage.Rollup{}, false, errors.New("daemon returned no usage payload")
		}
		return resp.Usage.Records, resp.Usage.Rollup, resp.Usage.ForceMB, nil
	}

	st, closeStore, err := a.openStore()
	if err != nil {
		return nil, usage.Rollup{}, false, err
	}
	defer closeStore()

	agg := a.newAggregator(st)
	records, rollup, err := agg.DailyRecords(ctx, time.Now())
	if err != nil {
		return nil, usage.Rollup{}, false, err
	}
	return records, rollup, st.GetBool(store.KeyUnitInMB, false), nil
}

// Status prints a one-shot summary: today's usage, the quota position, and
// which source served the numbers.
func (a *App) Status(ctx context.Context) error {
	report, err := a.statusReport(ctx)
	if err != nil {
		return err
	}

	forceMB := report.ForceMB
	fmt.Fprintf(os.Stdout, "today (%s): mobile %s, wifi %s, total %s [source: %s]\n",
		report.Day,
		speed.FormatUsage(report.Mobile, forceMB),
		speed.FormatUsage(report.Wifi, forceMB),
		speed.FormatUsage(report.Mobile+report.Wifi, forceMB),
		report.Source,
	)

	if report.LimitEnabled {
		limitBytes := int64(report.LimitMB * 1024 * 1024)
		pct := 0.0
		if limitBytes > 0 {
			pct = float64(report.Mobile) / float64(limitBytes) * 100
		}
		fmt.Fprintf(os.Stdout, "daily limit: %s mobile of %.0f MB (%.1f%%), 80%% fired=%v, 100%% fired=%v\n",
			speed.FormatUsage(report.Mobile, forceMB), report.LimitMB, pct, report.Fired80, report.Fired100)
	} else {
		fmt.Fprintln(os.Stdout, "daily limit: disabled")
	}

	if report.ResetAt != "" {
		fmt.Fprintf(os.Stdout, "usage counted since reset at %s\n", report.ResetAt)
	}
	return nil
}

func (a *App) statusReport(ctx context.Context) (*control.StatusReport, error) {
	if resp, handled, err := a.callDaemon(control.Request{Op: control.OpStatus}); handled {
		if err != nil {
			return nil, err
		}
		if resp.Status == nil {
			return nil, errors.New("daemon returned no status payload")
		}
		return resp.Status, nil
	}

	st, closeStore, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer closeStore()

	agg := a.newAggregator(st)
	now := time.Now()
	mobile, wifi, src, err := agg.TodayUsage(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("read today's usage: %w", err)
	}

	report := &control.StatusReport{
		Day:          now.Format("2006-01-02"),
		Mobile:       mobile,
		Wifi:         wifi,
		Source:       src.String(),
		ForceMB:      st.GetBool(store.KeyUnitInMB, false),
		LimitEnabled: st.GetBool(store.KeyDailyLimitEnabled, false),
		LimitMB:      st.GetFloat(store.KeyDailyLimitMB, 0),
	}
	state := st.AlertState()
	report.Fired80 = state.Fired80
	report.Fired100 = state.Fired100
	if marker := st.ResetMarker(); !marker.IsZero() {
		report.ResetAt = marker.Format(time.RFC3339)
	}
	return report, nil
}
