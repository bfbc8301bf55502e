package usage

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"netspeed-daemon/internal/netstat"
	"netspeed-daemon/internal/store"
)

// Source identifies which path answered a usage query.
type Source int

const (
	// SourcePrivileged means the historical accounting facility answered.
	SourcePrivileged Source = iota
	// SourceFallback means the manual per-day counters answered.
	SourceFallback
)

func (s Source) String() string {
	if s == SourceFallback {
		return "manual"
	}
	return "vnstat"
}

// DailyRecord is one calendar day's usage, produced on demand by range
// queries rather than stored as a row.
type DailyRecord struct {
	DayStart time.Time
	Mobile   int64
	Wifi     int64
}

// Total derives the combined bytes for the day.
func (d DailyRecord) Total() int64 {
	return d.Mobile + d.Wifi
}

// Rollup carries the 7-day and 30-day sums over the lookback window.
type Rollup struct {
	Mobile7  int64
	Wifi7    int64
	Mobile30 int64
	Wifi30   int64
}

// Total7 derives the combined 7-day bytes.
func (r Rollup) Total7() int64 { return r.Mobile7 + r.Wifi7 }

// Total30 derives the combined 30-day bytes.
func (r Rollup) Total30() int64 { return r.Mobile30 + r.Wifi30 }

// Aggregator answers usage queries, preferring the privileged historical
// source and falling back to the manual per-day counters when it is absent.
type Aggregator struct {
	provider     HistoryProvider
	store        *store.Store
	lookbackDays int
	logger       zerolog.Logger
}

// NewAggregator constructs a usage aggregator.
func NewAggregator(provider HistoryProvider, st *store.Store, lookbackDays int, logger zerolog.Logger) *Aggregator {
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	return &Aggregator{
		provider:     provider,
		store:        st,
		lookbackDays: lookbackDays,
		logger:       logger.With().Str("component", "usage").Logger(),
	}
}

// PrivilegedAvailable probes whether the privileged historical source can
// answer at all. Availability rarely changes at runtime, so callers probe
// once at startup.
func (a *Aggregator) PrivilegedAvailable(ctx context.Context) bool {
	now := time.Now()
	_, err := a.provider.RangeSum(ctx, netstat.TransportMobile, now.Add(-time.Hour), now)
	return !errors.Is(err, ErrUnavailable)
}

// UsageInRange returns mobile and wifi bytes over [start, end), clamped to
// the reset marker. The fallback path reads whole-day manual counters for
// every day touching the range.
func (a *Aggregator) UsageInRange(ctx context.Context, start, end time.Time) (mobile, wifi int64, src Source, err error) {
	if marker := a.store.ResetMarker(); marker.After(start) {
		start = marker
	}
	if !end.After(start) {
		return 0, 0, SourcePrivileged, nil
	}

	mobile, err = a.provider.RangeSum(ctx, netstat.TransportMobile, start, end)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			mobile, wifi = a.manualRange(start, end)
			return mobile, wifi, SourceFallback, nil
		}
		return 0, 0, SourcePrivileged, err
	}

	wifi, err = a.provider.RangeSum(ctx, netstat.TransportWifi, start, end)
	if err != nil {
		return 0, 0, SourcePrivileged, err
	}
	return mobile, wifi, SourcePrivileged, nil
}

// TodayUsage returns usage from local midnight until now.
func (a *Aggregator) TodayUsage(ctx context.Context, now time.Time) (mobile, wifi int64, src Source, err error) {
	return a.UsageInRange(ctx, dayStart(now), now)
}

// DailyRecords produces the last lookbackDays calendar days, newest first,
// plus the 7-day and 30-day rollups. A single day's failure is logged and
// substituted with zero; the scan never aborts.
func (a *Aggregator) DailyRecords(ctx context.Context, now time.Time) ([]DailyRecord, Rollup, error) {
	records := make([]DailyRecord, 0, a.lookbackDays)
	var rollup Rollup

	day := dayStart(now)
	for i := 0; i < a.lookbackDays; i++ {
		rec := DailyRecord{DayStart: day}

		mobile, wifi, _, err := a.UsageInRange(ctx, day, day.AddDate(0, 0, 1))
		if err != nil {
			a.logger.Warn().Err(err).Time("day", day).Msg("daily usage query failed; substituting zero")
		} else {
			rec.Mobile = mobile
			rec.Wifi = wifi
		}

		records = append(records, rec)
		rollup.Mobile30 += rec.Mobile
		rollup.Wifi30 += rec.Wifi
		if i < 7 {
			rollup.Mobile7 += rec.Mobile
			rollup.Wifi7 += rec.Wifi
		}

		day = day.AddDate(0, 0, -1)
	}

	return records, rollup, nil
}

func (a *Aggregator) manualRange(start, end time.Time) (mobile, wifi int64) {
	for day := dayStart(start); day.Before(end); day = day.AddDate(0, 0, 1) {
		m, w, err := a.store.ManualUsage(store.DayKey(day))
		if err != nil {
			a.logger.Warn().Err(err).Time("day", day).Msg("manual counter read failed")
			continue
		}
		mobile += m
		wifi += w
	}
	return mobile, wifi
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
