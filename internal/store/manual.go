package store

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"go.etcd.io/bbolt"
)

const (
	manualMobilePrefix = "manual_mobile_"
	manualWifiPrefix   = "manual_wifi_"

	// DayKeyLayout formats the per-day counter key suffix.
	DayKeyLayout = "20060102"
)

// DayKey renders the per-day counter key suffix for a local timestamp.
func DayKey(t time.Time) string {
	return t.Format(DayKeyLayout)
}

// AddManualUsage accumulates per-tick deltas into the fallback counters for
// one calendar day. The read-modify-write runs inside a single transaction
// so racing ticks cannot lose updates.
func (s *Store) AddManualUsage(dayKey string, mobileDelta, wifiDelta int64) error {
	if mobileDelta <= 0 && wifiDelta <= 0 {
		return nil
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketPrefs))
		if b == nil {
			return fmt.Errorf("prefs bucket missing")
		}
		if mobileDelta > 0 {
			if err := incrementCounter(b, manualMobilePrefix+dayKey, mobileDelta); err != nil {
				return err
			}
		}
		if wifiDelta > 0 {
			if err := incrementCounter(b, manualWifiPrefix+dayKey, wifiDelta); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetManualUsage overwrites the fallback counters for one day. Used by the
// backfill job to mirror the privileged source.
func (s *Store) SetManualUsage(dayKey string, mobile, wifi int64) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketPrefs))
		if b == nil {
			return fmt.Errorf("prefs bucket missing")
		}
		if err := b.Put([]byte(manualMobilePrefix+dayKey), []byte(strconv.FormatInt(mobile, 10))); err != nil {
			return err
		}
		return b.Put([]byte(manualWifiPrefix+dayKey), []byte(strconv.FormatInt(wifi, 10)))
	})
}

// ManualUsage reads the fallback counters for one day. Missing keys read as
// zero.
func (s *Store) ManualUsage(dayKey string) (mobile, wifi int64, err error) {
	db, err := s.getDB()
	if err != nil {
		return 0, 0, err
	}
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketPrefs))
		if b == nil {
			return fmt.Errorf("prefs bucket missing")
		}
		mobile = readCounter(b, manualMobilePrefix+dayKey)
		wifi = readCounter(b, manualWifiPrefix+dayKey)
		return nil
	})
	return mobile, wifi, err
}

// PruneManualBefore deletes fallback counters for days strictly older than
// the cutoff day key. Returns the number of deleted keys.
func (s *Store) PruneManualBefore(cutoffDayKey string) (int, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	deleted := 0
	err = db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketPrefs))
		if b == nil {
			return fmt.Errorf("prefs bucket missing")
		}
		for _, prefix := range []string{manualMobilePrefix, manualWifiPrefix} {
			c := b.Cursor()
			p := []byte(prefix)
			for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
				day := string(k[len(p):])
				if day < cutoffDayKey {
					if err := c.Delete(); err != nil {
						return err
					}
					deleted++
				}
			}
		}
		return nil
	})
	return deleted, err
}

func incrementCounter(b *bbolt.Bucket, key string, delta int64) error {
	current := readCounter(b, key)
	return b.Put([]byte(key), []byte(strconv.FormatInt(current+delta, 10)))
}

func readCounter(b *bbolt.Bucket, key string) int64 {
	raw := b.Get([]byte(key))
	if raw == nil {
		return 0
	}
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
