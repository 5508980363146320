package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"liora/internal/storage"
)

// Store keeps every conversation in memory and rewrites one JSON file after
// each change. An empty path keeps everything in memory.
type Store struct {
	mu     sync.RWMutex
	path   string
	convs  map[string]*Conversation
	now    func() time.Time
	newID  func() string
	logger *zap.Logger
}

type Option func(*Store)

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func WithIDs(next func() string) Option { return func(s *Store) { s.newID = next } }

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open loads conversations from path. A missing file starts empty; a corrupt
// one is logged and replaced on the next write.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:   path,
		convs:  make(map[string]*Conversation),
		now:    time.Now,
		newID:  uuid.NewString,
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	if path == "" {
		return s, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read conversations: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	var stored map[string]*Conversation
	if err := json.Unmarshal(data, &stored); err != nil {
		s.logger.Warn("conversations file unreadable, starting empty", zap.String("path", path), zap.Error(err))
		return s, nil
	}
	for id, c := range stored {
		if c == nil {
			continue
		}
		c.ID = id
		s.convs[id] = c
	}
	return s, nil
}

// Create starts an empty conversation titled "New Chat HH:MM".
func (s *Store) Create(owner, persona string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	c := &Conversation{
		ID:          s.newID(),
		Title:       fmt.Sprintf("%s %s", DefaultTitle, now.Format("15:04")),
		Owner:       owner,
		Persona:     persona,
		Messages:    []Message{},
		CreatedAt:   now,
		LastUpdated: now,
	}
	s.convs[c.ID] = c
	s.saveLocked()
	return clone(c), nil
}

func (s *Store) Get(id string) (Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return clone(c), nil
}

// List returns conversations, most recently updated first.
func (s *Store) List() []Conversation {
	return s.list(func(*Conversation) bool { return true })
}

// ListOwned is List restricted to one owner.
func (s *Store) ListOwned(owner string) []Conversation {
	return s.list(func(c *Conversation) bool { return c.Owner == owner })
}

func (s *Store) list(keep func(*Conversation) bool) []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Conversation, 0, len(s.convs))
	for _, c := range s.convs {
		if keep(c) {
			out = append(out, clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastUpdated.Equal(out[j].LastUpdated) {
			return out[i].LastUpdated.After(out[j].LastUpdated)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) Append(id, role, content string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	now := s.now()
	c.Messages = append(c.Messages, Message{Role: role, Content: content, Timestamp: now.Format("15:04")})
	c.LastUpdated = now
	s.saveLocked()
	return clone(c), nil
}

func (s *Store) Rename(id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("empty title")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return ErrNotFound
	}
	c.Title = title
	s.saveLocked()
	return nil
}

// SetPersona records the persona a conversation is held with.
func (s *Store) SetPersona(id, persona string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return ErrNotFound
	}
	c.Persona = persona
	s.saveLocked()
	return nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[id]; !ok {
		return ErrNotFound
	}
	delete(s.convs, id)
	s.saveLocked()
	return nil
}

// History renders the last window messages of a conversation.
func (s *Store) History(id string, window int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[id]
	if !ok {
		return "", ErrNotFound
	}
	return RenderHistory(c.Messages, window), nil
}

// saveLocked rewrites the file. A failed write keeps the in-memory state;
// the next change retries with the full map.
func (s *Store) saveLocked() {
	if s.path == "" {
		return
	}
	data, err := json.MarshalIndent(s.convs, "", "  ")
	if err == nil {
		err = storage.WriteFileAtomic(s.path, append(data, '\n'))
	}
	if err != nil {
		s.logger.Warn("failed to save conversations", zap.String("path", s.path), zap.Error(err))
	}
}

func clone(c *Conversation) Conversation {
	out := *c
	out.Messages = append([]Message(nil), c.Messages...)
	return out
}
