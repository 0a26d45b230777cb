package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"opscenter/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"file": func(t *testing.T) Store {
			s, err := NewFileStore(filepath.Join(t.TempDir(), "storage.json"))
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "storage.db"))
			require.NoError(t, err)
			return s
		},
	}
}

func TestStoreContract(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })

			_, err := s.Get("wk_user_session")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set("wk_user_session", []byte(`{"id":"WK-1"}`)))
			got, err := s.Get("wk_user_session")
			require.NoError(t, err)
			assert.Equal(t, `{"id":"WK-1"}`, string(got))

			require.NoError(t, s.Set("wk_user_session", []byte(`{"id":"WK-2"}`)))
			got, err = s.Get("wk_user_session")
			require.NoError(t, err)
			assert.Equal(t, `{"id":"WK-2"}`, string(got), "set overwrites")

			require.NoError(t, s.Set("other", []byte("x")))
			require.NoError(t, s.Remove("wk_user_session"))
			_, err = s.Get("wk_user_session")
			assert.ErrorIs(t, err, ErrNotFound)

			other, err := s.Get("other")
			require.NoError(t, err)
			assert.Equal(t, "x", string(other), "remove leaves other keys alone")

			assert.NoError(t, s.Remove("never-set"), "removing a missing key is not an error")
		})
	}
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	s := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, s.Set("k", buf))
	buf[0] = 'z'

	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "storage.json")

	a, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, a.Set("k", []byte("v")))

	b, err := NewFileStore(path)
	require.NoError(t, err)
	got, err := b.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileStore_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = s.Get("k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	// Writes recover the document; the unreadable bytes are kept aside
	require.NoError(t, s.Set("k", []byte("v")))
	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	backup, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(backup))
}

func TestFileStore_RemoveCorruptDocumentKeepsBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"session":"alex",`), 0600))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Remove("session"))

	backup, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err)
	assert.Equal(t, `{"session":"alex",`, string(backup))

	_, err = s.Get("session")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_ReadErrorDoesNotOverwrite(t *testing.T) {
	// A directory at the document path cannot be read as a file.
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.Mkdir(path, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "keep"), []byte("x"), 0600))

	s, err := NewFileStore(path)
	require.NoError(t, err)

	assert.Error(t, s.Set("k", []byte("v")))
	assert.Error(t, s.Remove("k"))

	_, err = os.Stat(filepath.Join(path, "keep"))
	assert.NoError(t, err)
	_, err = os.Stat(path + ".corrupt")
	assert.True(t, os.IsNotExist(err))
}

func TestSQLiteStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.db")

	a, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, a.Set("k", []byte("v")))
	require.NoError(t, a.Close())

	b, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	got, err := b.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}

func TestFileStore_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	watched, err := NewFileStore(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 16)
	require.NoError(t, watched.Watch(ctx, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}))

	// A second process writing the same document
	other, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, other.Set("wk_user_session", []byte("{}")))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("expected change notification")
	}
}

func TestOpen(t *testing.T) {
	ws := t.TempDir()

	s, err := Open(ws, config.StorageConfig{Backend: config.BackendFile, Path: "a/storage.json"})
	require.NoError(t, err)
	fs, ok := s.(*FileStore)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(ws, "a", "storage.json"), fs.Path())

	s, err = Open(ws, config.StorageConfig{Backend: config.BackendSQLite, Path: "storage.db"})
	require.NoError(t, err)
	_, ok = s.(*SQLiteStore)
	assert.True(t, ok)
	require.NoError(t, s.Close())

	s, err = Open(ws, config.StorageConfig{Backend: config.BackendMemory})
	require.NoError(t, err)
	_, ok = s.(*MemoryStore)
	assert.True(t, ok)

	_, err = Open(ws, config.StorageConfig{Backend: "redis"})
	assert.Error(t, err)
}
