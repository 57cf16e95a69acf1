package fakeapi

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketLists    = []byte("lists")
	bucketSegments = []byte("segments")
)

// ErrNotFound is returned when a list or segment does not exist
var ErrNotFound = errors.New("not found")

// List is a mailing list held by the fake API
type List struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Segment is a sublist held by the fake API
type Segment struct {
	ID            int64      `json:"id"`
	ListID        int64      `json:"list_id"`
	Name          string     `json:"name"`
	Query         string     `json:"query"`
	MailingsCount int64      `json:"mailings_count"`
	LastUsed      *time.Time `json:"last_used,omitempty"`
	CreatedOn     time.Time  `json:"created_on"`
	Engagement    *float64   `json:"engagement,omitempty"`
	Count         int64      `json:"count"`
}

// Store keeps lists and segments in BoltDB
type Store struct {
	db *bolt.DB
}

// OpenStore opens (or creates) a store at path
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketLists, bucketSegments} {
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

	return &Store{db: db}, nil
}

// Close closes the store
func (s *Store) Close() error {
	return s.db.Close()
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func put(b *bolt.Bucket, id int64, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(itob(id), data)
}

func get(b *bolt.Bucket, id int64, v any) error {
	data := b.Get(itob(id))
	if data == nil {
		return ErrNotFound
	}
	return json.Unmarshal(data, v)
}

// PutList creates or replaces a list
func (s *Store) PutList(l *List) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx.Bucket(bucketLists), l.ID, l)
	})
}

// GetList returns a list by ID
func (s *Store) GetList(id int64) (*List, error) {
	var l List
	err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx.Bucket(bucketLists), id, &l)
	})
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateSegment stores a new segment of an existing list and assigns its ID
func (s *Store) CreateSegment(seg *Segment) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		var l List
		if err := get(tx.Bucket(bucketLists), seg.ListID, &l); err != nil {
			return fmt.Errorf("list %d: %w", seg.ListID, err)
		}

		b := tx.Bucket(bucketSegments)
		if seg.ID == 0 {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			seg.ID = int64(seq)
		} else if uint64(seg.ID) > b.Sequence() {
			if err := b.SetSequence(uint64(seg.ID)); err != nil {
				return err
			}
		}
		if seg.CreatedOn.IsZero() {
			seg.CreatedOn = time.Now().UTC().Truncate(time.Second)
		}
		return put(b, seg.ID, seg)
	})
}

// GetSegment returns a segment by ID
func (s *Store) GetSegment(id int64) (*Segment, error) {
	var seg Segment
	err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx.Bucket(bucketSegments), id, &seg)
	})
	if err != nil {
		return nil, err
	}
	return &seg, nil
}

// UpdateSegment applies fn to a stored segment and saves the result
func (s *Store) UpdateSegment(id int64, fn func(*Segment) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSegments)
		var seg Segment
		if err := get(b, id, &seg); err != nil {
			return err
		}
		if err := fn(&seg); err != nil {
			return err
		}
		return put(b, id, &seg)
	})
}

// DeleteSegment removes a segment
func (s *Store) DeleteSegment(id int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSegments)
		if b.Get(itob(id)) == nil {
			return ErrNotFound
		}
		return b.Delete(itob(id))
	})
}

// ListSegments returns the segments of a list ordered by ID
func (s *Store) ListSegments(listID int64) ([]*Segment, error) {
	var result []*Segment

	err := s.db.View(func(tx *bolt.Tx) error {
		var l List
		if err := get(tx.Bucket(bucketLists), listID, &l); err != nil {
			return err
		}
		return tx.Bucket(bucketSegments).ForEach(func(k, v []byte) error {
			var seg Segment
			if err := json.Unmarshal(v, &seg); err != nil {
				return nil
			}
			if seg.ListID == listID {
				result = append(result, &seg)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
