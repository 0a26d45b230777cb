// Package storage provides the durable client-side record store used for
// sessions and other small keyed records. Values are opaque bytes; callers
// own the encoding.
package storage

import (
	"context"
	"errors"
	"fmt"

	"opscenter/internal/config"
)

// ErrNotFound is returned by Get when no record exists under the key.
var ErrNotFound = errors.New("storage: key not found")

// Store is a keyed record store with localStorage-like semantics.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	// Remove deletes the record. Removing a missing key is not an error.
	Remove(key string) error
	Close() error
}

// Watcher is implemented by stores that can report changes made by other
// processes sharing the same backing storage.
type Watcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// Open builds the store selected by the storage config. Relative paths are
// resolved against the workspace.
func Open(workspace string, sc config.StorageConfig) (Store, error) {
	switch sc.Backend {
	case config.BackendFile:
		return NewFileStore(config.ResolvePath(workspace, sc.Path))
	case config.BackendSQLite:
		return NewSQLiteStore(config.ResolvePath(workspace, sc.Path))
	case config.BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
	}
}
