// ABOUTME: Fallback store backed by a single JSON array file.
// ABOUTME: Guarded by a mutex and a cross-process flock; writes are atomic via temp file and rename.
package fallback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/harperreed/healthhub/internal/log"
)

// DefaultFileName is the staging file name used when none is configured.
const DefaultFileName = "health_metrics.json"

const lockRetryDelay = 25 * time.Millisecond

var errCorrupt = errors.New("fallback file is corrupt")

// JSONFile stores entries as a JSON array in one file.
type JSONFile struct {
	path   string
	mu     sync.Mutex
	lock   *flock.Flock
	now    func() time.Time
	closed bool
}

var _ Store = (*JSONFile)(nil)

// NewJSONFile returns a store for path, creating the parent directory.
// The file itself is created on first append.
func NewJSONFile(path string) (*JSONFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create fallback directory: %w", err)
	}
	return &JSONFile{
		path: path,
		lock: flock.New(path + ".lock"),
		now:  time.Now,
	}, nil
}

// Path returns the staging file path.
func (f *JSONFile) Path() string {
	return f.path
}

// withLock runs fn holding both the in-process and the file lock.
func (f *JSONFile) withLock(ctx context.Context, fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}

	locked, err := f.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock fallback file: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock fallback file: %s is held by another process", f.lock.Path())
	}
	defer func() { _ = f.lock.Unlock() }()

	return fn()
}

// read decodes the file. A missing or blank file is an empty list.
func (f *JSONFile) read() ([]Entry, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read fallback file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	return entries, nil
}

// write replaces the file atomically.
func (f *JSONFile) write(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode fallback entries: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanupTmp := true
	defer func() {
		if cleanupTmp {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		return fmt.Errorf("set fallback file permissions: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	cleanupTmp = false

	if err := syncDir(dir); err != nil {
		log.WithComponent("fallback").Warn().Err(err).Msg("directory sync failed")
	}
	return nil
}

// quarantine moves a corrupt file aside so its bytes are kept.
func (f *JSONFile) quarantine() (string, error) {
	dest := fmt.Sprintf("%s.corrupt-%d", f.path, f.now().Unix())
	if err := os.Rename(f.path, dest); err != nil {
		return "", fmt.Errorf("quarantine corrupt fallback file: %w", err)
	}
	return dest, nil
}

// Append stages e. A corrupt file is quarantined and a new list started.
func (f *JSONFile) Append(ctx context.Context, e Entry) error {
	return f.withLock(ctx, func() error {
		entries, err := f.read()
		if errors.Is(err, errCorrupt) {
			dest, qerr := f.quarantine()
			if qerr != nil {
				return qerr
			}
			log.WithComponent("fallback").Warn().Err(err).Str("moved_to", dest).Msg("corrupt fallback file quarantined")
			entries, err = nil, nil
		}
		if err != nil {
			return err
		}
		return f.write(append(entries, e))
	})
}

// LoadAll returns every staged entry, or none if the file cannot be read.
func (f *JSONFile) LoadAll(ctx context.Context) []Entry {
	var entries []Entry
	err := f.withLock(ctx, func() error {
		var err error
		entries, err = f.read()
		return err
	})
	if err != nil {
		log.WithComponent("fallback").Warn().Err(err).Str("path", f.path).Msg("fallback entries unavailable")
		return nil
	}
	return entries
}

// Remove drops the entries with the given keys. A corrupt file is left untouched.
func (f *JSONFile) Remove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	drop := keySet(keys)
	return f.withLock(ctx, func() error {
		entries, err := f.read()
		if err != nil {
			return err
		}
		kept := entries[:0]
		for _, e := range entries {
			if _, ok := drop[e.Key()]; !ok {
				kept = append(kept, e)
			}
		}
		return f.write(kept)
	})
}

// Clear empties the file, leaving an empty JSON array.
func (f *JSONFile) Clear(ctx context.Context) error {
	return f.withLock(ctx, func() error {
		return f.write(nil)
	})
}

// Close releases the store. Further calls fail with ErrClosed.
func (f *JSONFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// syncDir syncs a directory so a rename survives a crash.
func syncDir(dirPath string) error {
	dir, err := os.Open(dirPath)
	if err != nil {
		return fmt.Errorf("open dir for sync: %w", err)
	}
	defer dir.Close()

	if err := dir.Sync(); err != nil {
		return fmt.Errorf("sync dir: %w", err)
	}
	return nil
}
