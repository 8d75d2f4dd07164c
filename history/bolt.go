package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"scdl/types"

	"go.etcd.io/bbolt"
)

const (
	historyBucket  = "history"
	metadataBucket = "metadata"
	schemaVersion  = 1
)

// BoltStore keeps the slot as a JSON array under SlotKey in a bbolt file
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the database at dbPath
func NewBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &BoltStore{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *BoltStore) initialize() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(historyBucket)); err != nil {
			return fmt.Errorf("failed to create history bucket: %w", err)
		}

		meta, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return fmt.Errorf("failed to create metadata bucket: %w", err)
		}

		if err := meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", schemaVersion))); err != nil {
			return fmt.Errorf("failed to store schema version: %w", err)
		}
		return nil
	})
}

// Load returns the stored list; a missing slot is an empty list
func (s *BoltStore) Load() ([]types.HistoryEntry, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(historyBucket))
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", historyBucket)
		}
		if v := bucket.Get([]byte(SlotKey)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, nil
	}

	var entries []types.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}
	return entries, nil
}

// Save replaces the stored list
func (s *BoltStore) Save(entries []types.HistoryEntry) error {
	if entries == nil {
		return errors.New("cannot save nil history")
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(historyBucket))
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", historyBucket)
		}
		return bucket.Put([]byte(SlotKey), data)
	})
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}
