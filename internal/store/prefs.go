package store

import (
	"fmt"
	"strconv"

	"go.etcd.io/bbolt"
)

// Preference keys. Names are shared with every external collaborator that
// reads or writes the state database.
const (
	KeyShowSpeed         = "show_speed"
	KeyShowUpDown        = "show_up_down"
	KeyShowWifiSignal    = "show_wifi_signal"
	KeyDailyLimitEnabled = "daily_limit_enabled"
	KeyDailyLimitMB      = "daily_limit_mb"
	KeySelectedUnit      = "selected_unit"
	KeyLastAlertDate     = "last_alert_date"
	KeyAlert80Triggered  = "alert_80_triggered"
	KeyAlert100Triggered = "alert_100_triggered"
	KeyResetTimestamp    = "reset_timestamp"
	KeyUnitInMB          = "unit_in_mb"
)

// GetBool reads a boolean preference, returning def when unset.
func (s *Store) GetBool(key string, def bool) bool {
	raw, err := s.getRaw(key)
	if err != nil || raw == nil {
		return def
	}
	v, err := strconv.ParseBool(string(raw))
	if err != nil {
		return def
	}
	return v
}

// SetBool writes a boolean preference.
func (s *Store) SetBool(key string, v bool) error {
	return s.putRaw(key, []byte(strconv.FormatBool(v)))
}

// GetFloat reads a float preference, returning def when unset.
func (s *Store) GetFloat(key string, def float64) float64 {
	raw, err := s.getRaw(key)
	if err != nil || raw == nil {
		return def
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return def
	}
	return v
}

// SetFloat writes a float preference.
func (s *Store) SetFloat(key string, v float64) error {
	return s.putRaw(key, []byte(strconv.FormatFloat(v, 'f', -1, 64)))
}

// GetInt64 reads an integer preference, returning def when unset.
func (s *Store) GetInt64(key string, def int64) int64 {
	raw, err := s.getRaw(key)
	if err != nil || raw == nil {
		return def
	}
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return def
	}
	return v
}

// SetInt64 writes an integer preference.
func (s *Store) SetInt64(key string, v int64) error {
	return s.putRaw(key, []byte(strconv.FormatInt(v, 10)))
}

// GetString reads a string preference, returning def when unset.
func (s *Store) GetString(key string, def string) string {
	raw, err := s.getRaw(key)
	if err != nil || raw == nil {
		return def
	}
	return string(raw)
}

// SetString writes a string preference.
func (s *Store) SetString(key string, v string) error {
	return s.putRaw(key, []byte(v))
}

// Has reports whether a preference key is present.
func (s *Store) Has(key string) bool {
	raw, err := s.getRaw(key)
	return err == nil && raw != nil
}

// SetDailyLimitMB updates the quota threshold and clears both per-day alert
// flags in the same transaction, so the machine may re-alert against the new
// value. Every writer of the limit must go through here.
func (s *Store) SetDailyLimitMB(limitMB float64) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketPrefs))
		if b == nil {
			return fmt.Errorf("prefs bucket missing")
		}
		if err := b.Put([]byte(KeyDailyLimitMB), []byte(strconv.FormatFloat(limitMB, 'f', -1, 64))); err != nil {
			return err
		}
		if err := b.Put([]byte(KeyAlert80Triggered), []byte("false")); err != nil {
			return err
		}
		return b.Put([]byte(KeyAlert100Triggered), []byte("false"))
	})
}

func (s *Store) getRaw(key string) ([]byte, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	var out []byte
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketPrefs))
		if b == nil {
			return fmt.Errorf("prefs bucket missing")
		}
		if v := b.Get([]byte(key)); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

func (s *Store) putRaw(key string, value []byte) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketPrefs))
		if b == nil {
			return fmt.Errorf("prefs bucket missing")
		}
		return b.Put([]byte(key), value)
	})
}
