package store

import (
	"time"

	"netspeed-daemon/internal/config"
)

// Seed writes config defaults for preference keys that have never been set.
// Existing values always win; runtime edits go through the set command.
func (s *Store) Seed(defaults config.DefaultsConfig) error {
	type seedEntry struct {
		key   string
		write func() error
	}
	entries := []seedEntry{
		{KeyShowSpeed, func() error { return s.SetBool(KeyShowSpeed, defaults.ShowSpeed) }},
		{KeyShowUpDown, func() error { return s.SetBool(KeyShowUpDown, defaults.ShowUpDown) }},
		{KeyShowWifiSignal, func() error { return s.SetBool(KeyShowWifiSignal, defaults.ShowWifiSignal) }},
		{KeyDailyLimitEnabled, func() error { return s.SetBool(KeyDailyLimitEnabled, defaults.DailyLimitEnabled) }},
		{KeyDailyLimitMB, func() error { return s.SetFloat(KeyDailyLimitMB, defaults.DailyLimitMB) }},
		{KeySelectedUnit, func() error { return s.SetString(KeySelectedUnit, defaults.SelectedUnit) }},
		{KeyUnitInMB, func() error { return s.SetBool(KeyUnitInMB, defaults.UnitInMB) }},
	}
	for _, e := range entries {
		if s.Has(e.key) {
			continue
		}
		if err := e.write(); err != nil {
			return err
		}
	}
	return nil
}

// ResetMarker returns the user-triggered usage reset timestamp, zero when
// never set.
func (s *Store) ResetMarker() time.Time {
	ms := s.GetInt64(KeyResetTimestamp, 0)
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// SetResetMarker records the reset timestamp; range queries clamp to it.
func (s *Store) SetResetMarker(t time.Time) error {
	return s.SetInt64(KeyResetTimestamp, t.UnixMilli())
}
