package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"netspeed-daemon/internal/control"
	"netspeed-daemon/internal/netstat"
	"netspeed-daemon/internal/store"
	"netspeed-daemon/internal/usage"
)

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// Backfill rebuilds the manual per-day counters from the privileged source.
// Useful after vnstat is first enabled, so a later fallback period starts from
// accurate history instead of zeros.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	if opts.Days <= 0 {
		opts.Days = a.Config.Usage.LookbackDays
	}

	// Backfill rewrites whole days of counters; racing a live daemon over
	// them would interleave partial states.
	if path := a.Config.Control.SocketPath; path != "" && control.Ping(path) {
		return errors.New("daemon is running; stop it before backfilling")
	}

	st, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	provider := a.newProvider()
	now := time.Now()
	written := 0

	for i := 0; i < opts.Days; i++ {
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -i)
		dayEnd := dayStart.AddDate(0, 0, 1)
		if dayEnd.After(now) {
			dayEnd = now
		}

		mobile, err := provider.RangeSum(ctx, netstat.TransportMobile, dayStart, dayEnd)
		if err != nil {
			if errors.Is(err, usage.ErrUnavailable) {
				return fmt.Errorf("privileged usage source unavailable; nothing to backfill from")
			}
			return fmt.Errorf("read mobile usage for %s: %w", dayStart.Format("2006-01-02"), err)
		}
		wifi, err := provider.RangeSum(ctx, netstat.TransportWifi, dayStart, dayEnd)
		if err != nil {
			return fmt.Errorf("read wifi usage for %s: %w", dayStart.Format("2006-01-02"), err)
		}

		day := store.DayKey(dayStart)
		if opts.DryRun {
			a.Logger.Info().Str("day", day).Int64("mobile", mobile).Int64("wifi", wifi).Msg("would backfill")
			continue
		}
		if err := st.SetManualUsage(day, mobile, wifi); err != nil {
			return fmt.Errorf("write counters for %s: %w", day, err)
		}
		written++
	}

	a.Logger.Info().Int("days", written).Bool("dry_run", opts.DryRun).Msg("backfill complete")
	return nil
}
