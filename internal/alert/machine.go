package alert

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"netspeed-daemon/internal/store"
	"netspeed-daemon/internal/usage"
)

// DateLayout formats the persisted day-rollover marker.
const DateLayout = "2006-01-02"

var (
	decHundred     = decimal.NewFromInt(100)
	decEighty      = decimal.NewFromInt(80)
	decBytesPerMiB = decimal.NewFromInt(1024 * 1024)
)

// UsageSource answers today's usage for threshold evaluation.
type UsageSource interface {
	TodayUsage(ctx context.Context, now time.Time) (mobile, wifi int64, src usage.Source, err error)
}

// Machine is the persisted per-day quota alert state machine. Flags live in
// the state store so they survive process death; the real-time accumulator
// lives in memory with its own day tracker so the two resets cannot race
// into an inconsistent order across restarts.
type Machine struct {
	store         *store.Store
	source        UsageSource
	notifier      Notifier
	retentionDays int
	logger        zerolog.Logger

	mu          sync.Mutex
	accumDay    string
	accumMobile int64
}

// NewMachine constructs the quota alert machine.
func NewMachine(st *store.Store, source UsageSource, notifier Notifier, retentionDays int, logger zerolog.Logger) *Machine {
	if retentionDays <= 0 {
		retentionDays = 60
	}
	return &Machine{
		store:         st,
		source:        source,
		notifier:      notifier,
		retentionDays: retentionDays,
		logger:        logger.With().Str("component", "alert_machine").Logger(),
	}
}

// AddMobile feeds one tick's transport-specific mobile delta into the
// real-time accumulator. The accumulator closes the gap while the
// privileged historical query lags behind live traffic.
func (m *Machine) AddMobile(delta int64, now time.Time) {
	if delta <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolloverAccumLocked(now)
	m.accumMobile += delta
}

// Accumulated reports the in-memory mobile byte count since the last
// rollover.
func (m *Machine) Accumulated() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accumMobile
}

// Evaluate runs one alert check. The day-rollover reset happens first,
// before any flag is read, which is what guarantees the reset
// happens-before every threshold check of that day. Safe to call
// concurrently; overlapping evaluations serialize.
func (m *Machine) Evaluate(ctx context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	today := now.Format(DateLayout)
	state := m.store.AlertState()
	if state.LastAlertDate != today {
		if err := m.store.ResetAlertFlags(today); err != nil {
			return err
		}
		state = store.AlertState{LastAlertDate: today}
		m.rolloverAccumLocked(now)
		m.pruneLocked(now)
	}

	if !m.store.GetBool(store.KeyDailyLimitEnabled, false) {
		return nil
	}
	limitMB := m.store.GetFloat(store.KeyDailyLimitMB, 0)
	if limitMB <= 0 {
		return nil
	}

	// Once both thresholds have fired the historical query is skipped
	// entirely until the next rollover.
	if state.Fired80 && state.Fired100 {
		return nil
	}

	mobile, _, _, err := m.source.TodayUsage(ctx, now)
	if err != nil {
		m.logger.Warn().Err(err).Msg("today usage query failed; treating as zero")
		mobile = 0
	}
	// The authoritative source wins once it catches up; until then the
	// accumulator covers the lag.
	if m.accumMobile > mobile {
		mobile = m.accumMobile
	}

	limitBytes := decimal.NewFromFloat(limitMB).Mul(decBytesPerMiB).IntPart()
	if limitBytes <= 0 {
		return nil
	}
	percent := decimal.NewFromInt(mobile).
		Div(decimal.NewFromInt(limitBytes)).
		Mul(decHundred)

	switch {
	case percent.GreaterThanOrEqual(decHundred) && !state.Fired100:
		m.fireLocked(ctx, store.KeyAlert100Triggered, Notification{
			Kind:       Kind100,
			Title:      "Daily data limit reached",
			Message:    "Daily data limit reached.",
			UsageBytes: mobile,
			LimitBytes: limitBytes,
			Percent:    percent,
			FiredAt:    now,
		})
	case percent.GreaterThanOrEqual(decEighty) && !state.Fired80 && !state.Fired100:
		m.fireLocked(ctx, store.KeyAlert80Triggered, Notification{
			Kind:       Kind80,
			Title:      "Data Warning",
			Message:    "You've used 80% of your daily data limit.",
			UsageBytes: mobile,
			LimitBytes: limitBytes,
			Percent:    percent,
			FiredAt:    now,
		})
	}

	return nil
}

func (m *Machine) fireLocked(ctx context.Context, flagKey string, note Notification) {
	pct, _ := note.Percent.Float64()
	rec := store.AlertRecord{
		FiredAt:    note.FiredAt,
		Kind:       note.Kind,
		UsageBytes: note.UsageBytes,
		LimitBytes: note.LimitBytes,
		Percent:    pct,
	}
	if _, err := m.store.MarkAlertFired(flagKey, rec); err != nil {
		m.logger.Error().Err(err).Str("kind", note.Kind).Msg("failed to persist alert state")
		// flag not set; next evaluation retries the same threshold
		return
	}
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, note); err != nil {
		m.logger.Error().Err(err).Str("kind", note.Kind).Msg("failed to dispatch alert")
	}
}

func (m *Machine) rolloverAccumLocked(now time.Time) {
	day := now.Format(DateLayout)
	if m.accumDay != day {
		m.accumDay = day
		m.accumMobile = 0
	}
}

// pruneLocked enforces the retention policy once per rollover.
func (m *Machine) pruneLocked(now time.Time) {
	cutoff := now.AddDate(0, 0, -m.retentionDays)
	if n, err := m.store.PruneManualBefore(store.DayKey(cutoff)); err != nil {
		m.logger.Warn().Err(err).Msg("manual counter prune failed")
	} else if n > 0 {
		m.logger.Debug().Int("deleted", n).Msg("pruned manual counters")
	}
	if n, err := m.store.DeleteAlertsBefore(cutoff); err != nil {
		m.logger.Warn().Err(err).Msg("alert audit prune failed")
	} else if n > 0 {
		m.logger.Debug().Int("deleted", n).Msg("pruned alert records")
	}
}
