package conversation

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("c%d", n)
	}
}

func newTestStore(t *testing.T, path string) *Store {
	t.Helper()
	clock := &stepClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	s, err := Open(path, WithClock(clock.now), WithIDs(seqIDs()))
	require.NoError(t, err)
	return s
}

func TestStore_CreateAppendHistory(t *testing.T) {
	s := newTestStore(t, "")
	c, err := s.Create("", "liora")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, "New Chat 09:01", c.Title)
	assert.True(t, c.NeedsTitle())

	_, err = s.Append(c.ID, RoleUser, "hello")
	require.NoError(t, err)
	got, err := s.Append(c.ID, RoleAssistant, "hi there")
	require.NoError(t, err)
	assert.Len(t, got.Messages, 2)
	assert.Equal(t, "09:03", got.Messages[1].Timestamp)
	assert.Equal(t, 1, got.UserMessages())

	h, err := s.History(c.ID, 6)
	require.NoError(t, err)
	assert.Equal(t, "User: hello\nAssistant: hi there\n", h)

	h, err = s.History(c.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "Assistant: hi there\n", h)
}

func TestStore_NotFound(t *testing.T) {
	s := newTestStore(t, "")
	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Append("missing", RoleUser, "x")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Rename("missing", "x"), ErrNotFound)
	assert.ErrorIs(t, s.Delete("missing"), ErrNotFound)
	_, err = s.History("missing", 6)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := newTestStore(t, "")
	a, _ := s.Create("", "")
	b, _ := s.Create("", "")
	_, err := s.Append(a.ID, RoleUser, "bump")
	require.NoError(t, err)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)

	require.NoError(t, s.Delete(a.ID))
	assert.Len(t, s.List(), 1)
}

func TestStore_ListOwned(t *testing.T) {
	s := newTestStore(t, "")
	mine, _ := s.Create("tg:1", "")
	_, _ = s.Create("tg:2", "")
	owned := s.ListOwned("tg:1")
	require.Len(t, owned, 1)
	assert.Equal(t, mine.ID, owned[0].ID)
	assert.Empty(t, s.ListOwned("tg:3"))
	assert.Len(t, s.List(), 2)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := newTestStore(t, "")
	c, _ := s.Create("", "")
	_, _ = s.Append(c.ID, RoleUser, "one")
	got, _ := s.Get(c.ID)
	got.Messages[0].Content = "mutated"
	again, _ := s.Get(c.ID)
	assert.Equal(t, "one", again.Messages[0].Content)
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "conversations.json")
	s := newTestStore(t, path)
	c, err := s.Create("cli", "poet")
	require.NoError(t, err)
	_, err = s.Append(c.ID, RoleUser, "tell me about the sea")
	require.NoError(t, err)
	require.NoError(t, s.Rename(c.ID, "Sea Stories"))

	reopened, err := Open(path)
	require.NoError(t, err)
	got, err := reopened.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sea Stories", got.Title)
	assert.Equal(t, "poet", got.Persona)
	assert.Equal(t, "cli", got.Owner)
	assert.False(t, got.NeedsTitle())
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "tell me about the sea", got.Messages[0].Content)
}

func TestOpen_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversations.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))
	s, err := Open(path)
	require.NoError(t, err)
	assert.Empty(t, s.List())
}

func TestRename_RejectsEmpty(t *testing.T) {
	s := newTestStore(t, "")
	c, _ := s.Create("", "")
	assert.Error(t, s.Rename(c.ID, "   "))
}

// blockPath turns path into a non-empty directory so renames onto it fail.
func blockPath(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.MkdirAll(filepath.Join(path, "blocker"), 0o755))
}

func TestStore_WriteFailureKeepsMemoryState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversations.json")
	core, logs := observer.New(zap.WarnLevel)
	s, err := Open(path, WithClock((&stepClock{}).now), WithIDs(seqIDs()), WithLogger(zap.New(core)))
	require.NoError(t, err)
	c, err := s.Create("cli", "")
	require.NoError(t, err)
	blockPath(t, path)

	got, err := s.Append(c.ID, RoleUser, "hi")
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	require.NoError(t, s.Rename(c.ID, "Greetings"))
	require.NoError(t, s.SetPersona(c.ID, "poet"))

	stored, err := s.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Greetings", stored.Title)
	assert.Equal(t, "poet", stored.Persona)
	assert.Len(t, stored.Messages, 1)
	assert.Equal(t, 3, logs.FilterMessage("failed to save conversations").Len())

	require.NoError(t, s.Delete(c.ID))
	_, err = s.Get(c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
