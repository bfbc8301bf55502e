package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var (
	// ErrNotConfigured indicates the store was not opened.
	ErrNotConfigured = errors.New("store: database not configured")
)

const (
	bucketPrefs  = "prefs"
	bucketAlerts = "alerts"
)

// Store wraps the bbolt database holding preferences, per-day fallback
// counters, alert state, and the alert audit log. It is the single shared
// mutable resource between the daemon and the settings commands; writes are
// last-writer-wins per key, and read-modify-write increments run inside one
// bbolt transaction.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) the state database.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, ErrNotConfigured
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketPrefs, bucketAlerts} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) getDB() (*bbolt.DB, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	return s.db, nil
}

func marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
