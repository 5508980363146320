package learning

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"liora/internal/storage"
)

// Persister loads and saves learning snapshots.
type Persister interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
}

// FileStore keeps the snapshot in one JSON file. Saves go through a
// temporary file and a rename so a crash never truncates the previous one.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Load returns the migrated snapshot. A missing file yields defaults and no
// error; a corrupt file yields defaults and the decode error.
func (f *FileStore) Load() (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultSnapshot(), nil
		}
		return DefaultSnapshot(), fmt.Errorf("read snapshot: %w", err)
	}
	if len(data) == 0 {
		return DefaultSnapshot(), nil
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return DefaultSnapshot(), fmt.Errorf("decode snapshot: %w", err)
	}
	return Migrate(s), nil
}

func (f *FileStore) Save(s Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return storage.WriteFileAtomic(f.path, append(data, '\n'))
}
