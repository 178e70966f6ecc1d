// Package prefs persists the preferred-APN selections: one row id per
// subscription, kept apart from the carrier tables in a bbolt file.
package prefs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

// Unset is the value reported for a subscription with no preference.
const Unset int64 = -1

// Key selects which preference a value belongs to.
type Key string

const (
	// PreferredAPN is the APN used for default data.
	PreferredAPN Key = "preferred-apn"

	// PreferredTetheringAPN is the APN used while tethering.
	PreferredTetheringAPN Key = "preferred-tethering-apn"
)

var buckets = []Key{PreferredAPN, PreferredTetheringAPN}

// ErrUnknownKey is returned for a Key outside the declared set.
var ErrUnknownKey = errors.New("unknown preference key")

// Store is a bbolt-backed preference store.
type Store struct {
	db     *bolt.DB
	logger logrus.FieldLogger
}

// Config holds preference store configuration.
type Config struct {
	// Path to the bbolt file
	Path string

	// Timeout bounds how long Open waits for the file lock
	Timeout time.Duration

	Logger logrus.FieldLogger
}

// DefaultConfig returns a default preference store configuration.
func DefaultConfig() Config {
	return Config{
		Path:    "/var/lib/carrierconf/preferred-apn.db",
		Timeout: 5 * time.Second,
	}
}

// Open opens or creates the preference file.
func Open(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open preference store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(b)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, logger: cfg.Logger.WithField("component", "prefs")}, nil
}

// Close closes the preference file.
func (s *Store) Close() error {
	return s.db.Close()
}

func subKey(subID int64) []byte {
	return []byte(strconv.FormatInt(subID, 10))
}

func bucket(tx *bolt.Tx, key Key) (*bolt.Bucket, error) {
	b := tx.Bucket([]byte(key))
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return b, nil
}

// Get returns the stored row id for subID, or Unset.
func (s *Store) Get(key Key, subID int64) (int64, error) {
	id := Unset
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := bucket(tx, key)
		if err != nil {
			return err
		}
		if v := b.Get(subKey(subID)); len(v) == 8 {
			id = int64(binary.BigEndian.Uint64(v))
		}
		return nil
	})
	if err != nil {
		return Unset, err
	}
	return id, nil
}

// Set records id for subID. Setting Unset removes the entry.
func (s *Store) Set(key Key, subID, id int64) error {
	if id == Unset {
		return s.Reset(key, subID)
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, key)
		if err != nil {
			return err
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(id))
		return b.Put(subKey(subID), buf[:])
	})
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	s.logger.WithFields(logrus.Fields{"key": key, "sub_id": subID, "apn_id": id}).Debug("preference set")
	return nil
}

// Reset clears the preference for subID.
func (s *Store) Reset(key Key, subID int64) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, key)
		if err != nil {
			return err
		}
		return b.Delete(subKey(subID))
	})
	if err != nil {
		return fmt.Errorf("failed to reset %s: %w", key, err)
	}
	s.logger.WithFields(logrus.Fields{"key": key, "sub_id": subID}).Debug("preference reset")
	return nil
}

// All returns every stored preference for key, by subscription id.
func (s *Store) All(key Key) (map[int64]int64, error) {
	out := make(map[int64]int64)
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := bucket(tx, key)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			sub, err := strconv.ParseInt(string(k), 10, 64)
			if err != nil || len(v) != 8 {
				return nil
			}
			out[sub] = int64(binary.BigEndian.Uint64(v))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
