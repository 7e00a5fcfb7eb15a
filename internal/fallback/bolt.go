// ABOUTME: Fallback store backed by an embedded bbolt database file.
// ABOUTME: Entries are keyed by the bucket sequence so iteration follows append order.
package fallback

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harperreed/healthhub/internal/log"
	bolt "go.etcd.io/bbolt"
)

var bucketEntries = []byte("fallback_entries")

// BoltLog stores entries in a single bbolt bucket.
type BoltLog struct {
	db *bolt.DB
}

var _ Store = (*BoltLog)(nil)

// OpenBoltLog opens or creates a bbolt log at path.
func OpenBoltLog(path string) (*BoltLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create fallback directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketEntries); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketEntries, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltLog{db: db}, nil
}

func seqKey(n uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, n)
	return k
}

// Append stages e under the next sequence number.
func (b *BoltLog) Append(_ context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode fallback entry: %w", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketEntries)
		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		return bucket.Put(seqKey(seq), data)
	})
}

// LoadAll returns every staged entry in append order.
func (b *BoltLog) LoadAll(_ context.Context) []Entry {
	var entries []Entry
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				log.WithComponent("fallback").Warn().Err(err).Uint64("seq", binary.BigEndian.Uint64(k)).Msg("skipping undecodable entry")
				return nil
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		log.WithComponent("fallback").Warn().Err(err).Msg("fallback entries unavailable")
		return nil
	}
	return entries
}

// Remove drops the entries with the given keys.
func (b *BoltLog) Remove(_ context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	drop := keySet(keys)

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketEntries)

		var doomed [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return nil
			}
			if _, ok := drop[e.Key()]; ok {
				doomed = append(doomed, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range doomed {
			if err := bucket.Delete(k); err != nil {
				return fmt.Errorf("remove fallback entry: %w", err)
			}
		}
		return nil
	})
}

// Clear drops every entry and resets the sequence.
func (b *BoltLog) Clear(_ context.Context) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketEntries); err != nil {
			return fmt.Errorf("delete bucket: %w", err)
		}
		_, err := tx.CreateBucket(bucketEntries)
		return err
	})
}

// Close closes the database
func (b *BoltLog) Close() error {
	return b.db.Close()
}
