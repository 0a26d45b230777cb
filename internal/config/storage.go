package config

import "fmt"

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// StorageConfig configures the durable record store.
type StorageConfig struct {
	Backend    string `yaml:"backend"`     // file, sqlite, memory
	Path       string `yaml:"path"`        // relative paths resolve against the workspace
	SessionKey string `yaml:"session_key"` // key holding the serialized session
	Watch      bool   `yaml:"watch"`       // follow changes made by other processes (file backend)
}

// Validate checks the storage section.
func (s *StorageConfig) Validate() error {
	switch s.Backend {
	case BackendFile, BackendSQLite:
		if s.Path == "" {
			return fmt.Errorf("storage.path is required for the %s backend", s.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid storage backend: %s (valid: %s, %s, %s)", s.Backend, BackendFile, BackendSQLite, BackendMemory)
	}
	if s.SessionKey == "" {
		return fmt.Errorf("storage.session_key must not be empty")
	}
	return nil
}
