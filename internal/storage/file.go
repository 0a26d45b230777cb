package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"opscenter/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// errCorruptDocument marks a document that exists but is not valid JSON.
var errCorruptDocument = errors.New("corrupt storage document")

// FileStore persists all records in a single JSON document of key -> string.
// Every operation re-reads the document so writes from other processes are
// visible, the same way browser localStorage is shared between tabs.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by the JSON document at path.
// The file is created lazily on first write.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("file store path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing document path.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	doc := map[string]string{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w %s: %v", errCorruptDocument, f.path, err)
	}
	return doc, nil
}

// setAside moves a corrupt document to <path>.corrupt and starts over with an
// empty one. Any other load error is returned unchanged.
func (f *FileStore) setAside(err error) (map[string]string, error) {
	if !errors.Is(err, errCorruptDocument) {
		return nil, err
	}
	backup := f.path + ".corrupt"
	if rerr := os.Rename(f.path, backup); rerr != nil {
		return nil, fmt.Errorf("failed to set aside %s: %w", f.path, rerr)
	}
	logging.StorageWarn("moved unreadable document %s to %s: %v", f.path, backup, err)
	return map[string]string{}, nil
}

// save writes through a temp file and rename so readers never see a torn document.
func (f *FileStore) save(doc map[string]string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path)
}

func (f *FileStore) Get(key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	v, ok := doc[key]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(v), nil
}

func (f *FileStore) Set(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		if doc, err = f.setAside(err); err != nil {
			return fmt.Errorf("failed to write %s: %w", key, err)
		}
	}
	doc[key] = string(value)
	if err := f.save(doc); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	logging.StorageDebug("set %s (%d bytes)", key, len(value))
	return nil
}

func (f *FileStore) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		if doc, err = f.setAside(err); err != nil {
			return fmt.Errorf("failed to remove %s: %w", key, err)
		}
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	if err := f.save(doc); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	logging.StorageDebug("removed %s", key)
	return nil
}

func (f *FileStore) Close() error { return nil }

// Watch calls onChange whenever the backing document is written, renamed or
// removed. The directory is watched rather than the file because saves replace
// the file. Watching stops when ctx is done.
func (f *FileStore) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(f.path), err)
	}

	target := filepath.Clean(f.path)
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					onChange()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				if !errors.Is(err, fsnotify.ErrEventOverflow) {
					logging.StorageWarn("watch error on %s: %v", target, err)
					continue
				}
				onChange()
			}
		}
	}()
	return nil
}
