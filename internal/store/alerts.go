package store

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// AlertState is the persisted per-day quota alert machine state.
type AlertState struct {
	LastAlertDate string
	Fired80       bool
	Fired100      bool
}

// AlertRecord captures a fired quota alert for auditing.
type AlertRecord struct {
	ID         uint64    `json:"id"`
	FiredAt    time.Time `json:"fired_at"`
	Kind       string    `json:"kind"`
	UsageBytes int64     `json:"usage_bytes"`
	LimitBytes int64     `json:"limit_bytes"`
	Percent    float64   `json:"percent"`
}

// AlertState reads the persisted alert flags and rollover date.
func (s *Store) AlertState() AlertState {
	return AlertState{
		LastAlertDate: s.GetString(KeyLastAlertDate, ""),
		Fired80:       s.GetBool(KeyAlert80Triggered, false),
		Fired100:      s.GetBool(KeyAlert100Triggered, false),
	}
}

// ResetAlertFlags clears both flags and stamps the new day in one
// transaction, so a crash between the two writes cannot leave a half reset.
func (s *Store) ResetAlertFlags(date string) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketPrefs))
		if b == nil {
			return fmt.Errorf("prefs bucket missing")
		}
		if err := b.Put([]byte(KeyLastAlertDate), []byte(date)); err != nil {
			return err
		}
		if err := b.Put([]byte(KeyAlert80Triggered), []byte("false")); err != nil {
			return err
		}
		return b.Put([]byte(KeyAlert100Triggered), []byte("false"))
	})
}

// MarkAlertFired sets one flag and appends the audit record atomically.
func (s *Store) MarkAlertFired(flagKey string, rec AlertRecord) (AlertRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return AlertRecord{}, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		prefs := tx.Bucket([]byte(bucketPrefs))
		if prefs == nil {
			return fmt.Errorf("prefs bucket missing")
		}
		if err := prefs.Put([]byte(flagKey), []byte("true")); err != nil {
			return err
		}

		alerts := tx.Bucket([]byte(bucketAlerts))
		if alerts == nil {
			return fmt.Errorf("alerts bucket missing")
		}
		seq, err := alerts.NextSequence()
		if err != nil {
			return err
		}
		rec.ID = seq
		data, err := marshal(rec)
		if err != nil {
			return err
		}
		return alerts.Put(alertKey(seq), data)
	})
	if err != nil {
		return AlertRecord{}, err
	}
	return rec, nil
}

// ListRecentAlerts lists the most recent audit records, newest first.
func (s *Store) ListRecentAlerts(limit int) ([]AlertRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	records := make([]AlertRecord, 0, limit)
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketAlerts))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(records) < limit; k, v = c.Prev() {
			var rec AlertRecord
			if err := unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

// DeleteAlertsBefore removes audit records older than the cutoff.
func (s *Store) DeleteAlertsBefore(olderThan time.Time) (int, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	deleted := 0
	err = db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketAlerts))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec AlertRecord
			if err := unmarshal(v, &rec); err != nil {
				continue
			}
			if rec.FiredAt.Before(olderThan) {
				if err := c.Delete(); err != nil {
					return err
				}
				deleted++
			}
		}
		return nil
	})
	return deleted, err
}

func alertKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
