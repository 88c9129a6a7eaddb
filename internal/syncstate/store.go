// Package syncstate persists the WebDAV sync planner's per-file
// bookkeeping (last-seen hash, ETag and tombstone flag) in a bbolt
// database.
package syncstate

import (
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"
)

const rowsBucket = "rows"

// Row is the recorded state for one canonical remote path.
type Row struct {
	RemotePath string    `json:"remote_path"`
	LastHash   string    `json:"last_hash"`
	LastETag   string    `json:"last_etag"`
	UpdatedAt  time.Time `json:"updated_at"`
	Tombstone  bool      `json:"tombstone"`
}

// Store wraps a bbolt database holding Rows keyed by RemotePath.
type Store struct {
	db *bolt.DB
}

// Open creates/opens the bbolt file at path and ensures the rows
// bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(rowsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Get returns the row for remotePath, ok=false if none is recorded.
func (s *Store) Get(remotePath string) (Row, bool, error) {
	var row Row
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(rowsBucket))
		data := b.Get([]byte(remotePath))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &row)
	})
	return row, found, err
}

// All loads every row, keyed by canonical remote path.
func (s *Store) All() (map[string]Row, error) {
	out := map[string]Row{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(rowsBucket))
		return b.ForEach(func(k, v []byte) error {
			var row Row
			if err := json.Unmarshal(v, &row); err != nil {
				return err
			}
			out[string(k)] = row
			return nil
		})
	})
	return out, err
}

// Upsert writes row, keyed by row.RemotePath.
func (s *Store) Upsert(row Row) error {
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(rowsBucket))
		return b.Put([]byte(row.RemotePath), data)
	})
}

// MarkTombstone upserts a tombstone row recording that remotePath was
// deliberately deleted, so a later sync doesn't resurrect it.
func (s *Store) MarkTombstone(remotePath string) error {
	return s.Upsert(Row{RemotePath: remotePath, Tombstone: true, UpdatedAt: time.Now()})
}

// Remove deletes the row for remotePath entirely, once the path is
// gone on both sides and its tombstone has served its purpose.
func (s *Store) Remove(remotePath string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(rowsBucket))
		return b.Delete([]byte(remotePath))
	})
}
