// ABOUTME: Store interface for the local staging area used while the primary store is down.
// ABOUTME: Implementations serialize access so concurrent appends never lose entries.
package fallback

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("fallback store is closed")

// Store holds records staged for reconciliation.
type Store interface {
	// Append stages one entry.
	Append(ctx context.Context, e Entry) error
	// LoadAll returns every staged entry in append order. Absent, corrupt or
	// unreadable data yields an empty slice; the failure is logged.
	LoadAll(ctx context.Context) []Entry
	// Remove drops the entries whose Key is in keys.
	Remove(ctx context.Context, keys []string) error
	// Clear drops every entry.
	Clear(ctx context.Context) error
	Close() error
}

func keySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}
