// Package journal keeps a local audit trail of calls made to the list API
// in a BoltDB file.
package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/listctl/api"
)

var (
	bucketCalls  = []byte("calls")
	bucketByTime = []byte("calls_by_time")
)

// Filter contains filters for listing calls
type Filter struct {
	Endpoint string
	Outcome  string
	Since    time.Time
	Limit    int
	Offset   int
}

// Stats contains journal statistics
type Stats struct {
	Total      int64            `json:"total"`
	ByOutcome  map[string]int64 `json:"by_outcome"`
	ByEndpoint map[string]int64 `json:"by_endpoint"`
	OldestAt   time.Time        `json:"oldest_at,omitempty"`
	NewestAt   time.Time        `json:"newest_at,omitempty"`
}

// BoltStorage stores call records in BoltDB. It implements api.Recorder.
type BoltStorage struct {
	db *bolt.DB
}

var _ api.Recorder = (*BoltStorage)(nil)

// NewBoltStorage opens (or creates) the journal at path
func NewBoltStorage(path string) (*BoltStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketCalls, bucketByTime} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStorage{db: db}, nil
}

// Record stores a call record
func (s *BoltStorage) Record(ctx context.Context, rec *api.CallRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("call record without id")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal call record: %w", err)
		}
		if err := tx.Bucket(bucketCalls).Put([]byte(rec.ID), data); err != nil {
			return fmt.Errorf("failed to store call record: %w", err)
		}
		if err := tx.Bucket(bucketByTime).Put(makeIndexKey(rec.StartedAt, rec.ID), []byte(rec.ID)); err != nil {
			return fmt.Errorf("failed to index call record: %w", err)
		}
		return nil
	})
}

// Get retrieves a call record by ID. It returns nil, nil when not found.
func (s *BoltStorage) Get(ctx context.Context, id string) (*api.CallRecord, error) {
	var rec *api.CallRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCalls).Get([]byte(id))
		if data == nil {
			return nil
		}
		var r api.CallRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("failed to unmarshal call record: %w", err)
		}
		rec = &r
		return nil
	})

	return rec, err
}

// List returns records matching the filter, newest first
func (s *BoltStorage) List(ctx context.Context, filter Filter) ([]*api.CallRecord, error) {
	var records []*api.CallRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		calls := tx.Bucket(bucketCalls)
		c := tx.Bucket(bucketByTime).Cursor()

		skipped := 0
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if !filter.Since.IsZero() && timestampFromKey(k).Before(filter.Since) {
				break
			}

			data := calls.Get(v)
			if data == nil {
				continue
			}
			var rec api.CallRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				continue
			}

			if filter.Endpoint != "" && rec.Endpoint != filter.Endpoint {
				continue
			}
			if filter.Outcome != "" && rec.Outcome != filter.Outcome {
				continue
			}

			if skipped < filter.Offset {
				skipped++
				continue
			}

			records = append(records, &rec)
			if filter.Limit > 0 && len(records) >= filter.Limit {
				break
			}
		}
		return nil
	})

	return records, err
}

// Stats returns journal statistics
func (s *BoltStorage) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByOutcome:  make(map[string]int64),
		ByEndpoint: make(map[string]int64),
	}

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketByTime).Cursor()
		if k, _ := c.First(); k != nil {
			stats.OldestAt = timestampFromKey(k)
		}
		if k, _ := c.Last(); k != nil {
			stats.NewestAt = timestampFromKey(k)
		}

		return tx.Bucket(bucketCalls).ForEach(func(k, v []byte) error {
			var rec api.CallRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil
			}
			stats.Total++
			stats.ByOutcome[rec.Outcome]++
			stats.ByEndpoint[rec.Endpoint]++
			return nil
		})
	})

	return stats, err
}

// Cleanup deletes records older than maxAge and, when maxCount > 0, the
// oldest records beyond maxCount. It returns the number deleted.
func (s *BoltStorage) Cleanup(ctx context.Context, maxAge time.Duration, maxCount int) (int, error) {
	deleted := 0

	err := s.db.Update(func(tx *bolt.Tx) error {
		calls := tx.Bucket(bucketCalls)
		index := tx.Bucket(bucketByTime)

		excess := 0
		if maxCount > 0 {
			if n := index.Stats().KeyN; n > maxCount {
				excess = n - maxCount
			}
		}

		var cutoff time.Time
		if maxAge > 0 {
			cutoff = time.Now().Add(-maxAge)
		}

		c := index.Cursor()
		for k, v := c.First(); k != nil; k, v = c.First() {
			expired := !cutoff.IsZero() && timestampFromKey(k).Before(cutoff)
			if !expired && excess == 0 {
				break
			}
			if err := calls.Delete(v); err != nil {
				return err
			}
			if err := c.Delete(); err != nil {
				return err
			}
			if excess > 0 {
				excess--
			}
			deleted++
		}
		return nil
	})

	return deleted, err
}

// Close closes the storage
func (s *BoltStorage) Close() error {
	return s.db.Close()
}

// makeIndexKey creates a sortable key from timestamp and ID
func makeIndexKey(t time.Time, id string) []byte {
	key := make([]byte, 8, 8+1+len(id))
	binary.BigEndian.PutUint64(key, uint64(t.UnixNano()))
	key = append(key, ':')
	return append(key, id...)
}

// timestampFromKey extracts the timestamp from an index key
func timestampFromKey(key []byte) time.Time {
	if len(key) < 8 {
		return time.Time{}
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(key[:8])))
}
