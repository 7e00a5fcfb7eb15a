// ABOUTME: Fallback store backed by an embedded Badger key-value log.
// ABOUTME: Entries live under a prefix with time-ordered UUIDv7 keys.
package fallback

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"github.com/harperreed/healthhub/internal/log"
)

var badgerPrefix = []byte("fallback:")

// BadgerLog stores entries in a Badger database directory.
type BadgerLog struct {
	db *badger.DB
}

var _ Store = (*BadgerLog)(nil)

// OpenBadgerLog opens or creates a Badger log in dir.
func OpenBadgerLog(dir string) (*BadgerLog, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create fallback directory: %w", err)
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger log: %w", err)
	}
	return &BadgerLog{db: db}, nil
}

// Append stages e under a new time-ordered key.
func (b *BadgerLog) Append(_ context.Context, e Entry) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode fallback entry: %w", err)
	}
	key := append(append([]byte{}, badgerPrefix...), id.String()...)

	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	}); err != nil {
		return fmt.Errorf("append fallback entry: %w", err)
	}
	return nil
}

// each walks entries in key order. Undecodable values are skipped.
func (b *BadgerLog) each(txn *badger.Txn, fn func(key []byte, e Entry) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(badgerPrefix); it.ValidForPrefix(badgerPrefix); it.Next() {
		item := it.Item()
		var e Entry
		err := item.Value(func(v []byte) error {
			return json.Unmarshal(v, &e)
		})
		if err != nil {
			log.WithComponent("fallback").Warn().Err(err).Str("key", string(item.Key())).Msg("skipping undecodable entry")
			continue
		}
		if err := fn(item.KeyCopy(nil), e); err != nil {
			return err
		}
	}
	return nil
}

// LoadAll returns every staged entry in append order.
func (b *BadgerLog) LoadAll(_ context.Context) []Entry {
	var entries []Entry
	err := b.db.View(func(txn *badger.Txn) error {
		return b.each(txn, func(_ []byte, e Entry) error {
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
func (b *BadgerLog) Remove(_ context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	drop := keySet(keys)

	var doomed [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		return b.each(txn, func(key []byte, e Entry) error {
			if _, ok := drop[e.Key()]; ok {
				doomed = append(doomed, key)
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("scan fallback entries: %w", err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		for _, key := range doomed {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove fallback entries: %w", err)
	}
	return nil
}

// Clear drops every entry.
func (b *BadgerLog) Clear(_ context.Context) error {
	if err := b.db.DropPrefix(badgerPrefix); err != nil {
		return fmt.Errorf("clear fallback entries: %w", err)
	}
	return nil
}

// Close closes the database.
func (b *BadgerLog) Close() error {
	return b.db.Close()
}
