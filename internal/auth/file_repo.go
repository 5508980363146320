package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"liora/internal/storage"
)

// FileRepository stores users as a JSON array. It backs both the allow-list
// and the queue of pending access requests.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

func NewFileRepository(path string) (*FileRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	return &FileRepository{path: path}, nil
}

// LoadAll treats a missing or empty file as no users.
func (r *FileRepository) LoadAll() ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadUnlocked()
}

func (r *FileRepository) Upsert(user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	users, _ := r.loadUnlocked()
	updated := false
	for i, u := range users {
		if u.ID == user.ID {
			users[i] = user
			updated = true
			break
		}
	}
	if !updated {
		users = append(users, user)
	}
	return r.saveUnlocked(users)
}

func (r *FileRepository) Remove(userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	users, _ := r.loadUnlocked()
	out := make([]User, 0, len(users))
	for _, u := range users {
		if u.ID != userID {
			out = append(out, u)
		}
	}
	return r.saveUnlocked(out)
}

func (r *FileRepository) loadUnlocked() ([]User, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []User{}, nil
		}
		return []User{}, fmt.Errorf("read users: %w", err)
	}
	if len(data) == 0 {
		return []User{}, nil
	}
	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		return []User{}, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

func (r *FileRepository) saveUnlocked(users []User) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	return storage.WriteFileAtomic(r.path, append(data, '\n'))
}
