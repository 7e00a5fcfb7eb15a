// ABOUTME: Charm KV client wrapper implementing the primary store.
// ABOUTME: Provides thread-safe access, error classification and automatic cloud sync.
package charm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/charm/client"
	"github.com/charmbracelet/charm/kv"
	"github.com/harperreed/healthhub/internal/log"
	"github.com/harperreed/healthhub/internal/storage"
)

const (
	// DBName is the Charm KV database name.
	DBName = "healthhub"
	// DefaultHost is the Charm server used when none is configured.
	DefaultHost = "charm.2389.dev"

	MetricPrefix  = "metric:"
	SymptomPrefix = "symptom:"
)

var (
	errClosed   = errors.New("charm client is closed")
	errReadOnly = errors.New("database is locked by another process")
)

// kvStore is the subset of *kv.KV the client uses.
type kvStore interface {
	Set(key, value []byte) error
	Get(key []byte) ([]byte, error)
	Keys() ([][]byte, error)
	Sync() error
	Reset() error
	IsReadOnly() bool
	Close() error
}

// Options configures Open.
type Options struct {
	Host     string
	AutoSync bool
}

// Client stores metrics and symptoms in Charm KV.
type Client struct {
	kv       kvStore
	autoSync bool
	closed   bool
	mu       sync.RWMutex
}

var _ storage.PrimaryStore = (*Client)(nil)

// Open opens the Charm KV database, pulling remote data when writable.
func Open(opts Options) (*Client, error) {
	host := opts.Host
	if host == "" {
		host = DefaultHost
	}
	// Set server before opening KV
	if err := os.Setenv("CHARM_HOST", host); err != nil {
		return nil, fmt.Errorf("set charm host: %w", err)
	}

	db, err := kv.OpenWithDefaultsFallback(DBName)
	if err != nil {
		return nil, fmt.Errorf("open charm kv: %w", err)
	}

	c := newClient(db, opts.AutoSync)
	if !db.IsReadOnly() {
		if err := db.Sync(); err != nil {
			log.WithComponent("charm").Warn().Err(err).Msg("initial sync failed")
		}
	}
	return c, nil
}

func newClient(store kvStore, autoSync bool) *Client {
	return &Client{kv: store, autoSync: autoSync}
}

// Close closes the KV database connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.kv.Close()
}

// IsReadOnly returns true if the database is open in read-only mode.
// This happens when another process (like an MCP server) holds the lock.
func (c *Client) IsReadOnly() bool {
	return c.kv.IsReadOnly()
}

// Sync synchronizes local state with Charm Cloud.
func (c *Client) Sync() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed || c.kv.IsReadOnly() {
		return nil
	}
	return c.kv.Sync()
}

// SetAutoSync enables or disables automatic sync after writes.
func (c *Client) SetAutoSync(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoSync = enabled
}

// ID returns the Charm user ID for the current account.
func (c *Client) ID() (string, error) {
	cc, err := client.NewClientWithDefaults()
	if err != nil {
		return "", fmt.Errorf("create charm client: %w", err)
	}
	return cc.ID()
}

// Reset wipes local data and rebuilds from Charm Cloud.
func (c *Client) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kv.Reset()
}

// Ping checks the local KV can be read.
func (c *Client) Ping(_ context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return storage.Unavailable("ping", errClosed)
	}
	if _, err := c.kv.Keys(); err != nil {
		return storage.Unavailable("ping", err)
	}
	return nil
}

// syncIfEnabled pushes local changes. Sync failures only delay replication.
func (c *Client) syncIfEnabled() {
	if c.autoSync && !c.kv.IsReadOnly() {
		if err := c.kv.Sync(); err != nil {
			log.WithComponent("charm").Debug().Err(err).Msg("sync after write failed")
		}
	}
}

// insert stores data under key unless the key already exists.
func (c *Client) insert(op, key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return storage.Unavailable(op, errClosed)
	}
	if c.kv.IsReadOnly() {
		return storage.Unavailable(op, errReadOnly)
	}

	keys, err := c.kv.Keys()
	if err != nil {
		return storage.Unavailable(op, err)
	}
	k := []byte(key)
	for _, existing := range keys {
		if bytes.Equal(existing, k) {
			return storage.Duplicate(op, fmt.Errorf("key %s", key))
		}
	}

	if err := c.kv.Set(k, data); err != nil {
		return storage.Unavailable(op, err)
	}
	c.syncIfEnabled()
	return nil
}

// listByPrefix returns all values with keys matching the given prefix.
func (c *Client) listByPrefix(op, prefix string) ([][]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, storage.Unavailable(op, errClosed)
	}

	keys, err := c.kv.Keys()
	if err != nil {
		return nil, storage.Unavailable(op, err)
	}

	var results [][]byte
	prefixBytes := []byte(prefix)
	for _, key := range keys {
		if !bytes.HasPrefix(key, prefixBytes) {
			continue
		}
		val, err := c.kv.Get(key)
		if err != nil {
			return nil, storage.Unavailable(op, err)
		}
		results = append(results, val)
	}

	return results, nil
}

// userPrefix scopes a type prefix to one user. Zero means every user.
func userPrefix(typePrefix string, userID int64) string {
	if userID == 0 {
		return typePrefix
	}
	return fmt.Sprintf("%s%d:", typePrefix, userID)
}

// marshalJSON is a helper to marshal data to JSON.
func marshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

// unmarshalJSON is a helper to unmarshal JSON data.
func unmarshalJSON[T any](data []byte) (*T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
