package persona

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_IsTotal(t *testing.T) {
	s := NewSelector("")
	assert.Equal(t, "liora", s.Get("").ID)
	assert.Equal(t, "liora", s.Get("nobody").ID)
	assert.Equal(t, "mentor", s.Get("  Mentor ").ID)
	assert.Equal(t, "😉 Liora", s.Get("liora").Label())
	for _, id := range s.Names() {
		p := s.Get(id)
		assert.NotEmpty(t, p.Instructions, id)
		assert.NotEmpty(t, p.Emoji, id)
	}
}

func TestInstruction_FallsBackToDefault(t *testing.T) {
	s := NewSelector("")
	assert.Contains(t, s.Instruction("poet"), "gentle poet")
	assert.Equal(t, s.Default().Instructions, s.Instruction("nobody"))
}

func TestNewSelector_DefaultOverride(t *testing.T) {
	assert.Equal(t, "analyst", NewSelector("analyst").Get("unknown").ID)
	assert.Equal(t, "liora", NewSelector("ghost").Default().ID)
}

func TestLoadFile_MergesOverBuiltins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.yaml")
	content := `personas:
  - id: Pirate
    emoji: "🏴‍☠️"
    instructions: Talk like a pirate.
  - id: mentor
    display_name: Sensei
    emoji: "🥋"
    instructions: Teach with calm discipline.
  - id: empty
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s := NewSelector("")
	require.NoError(t, s.LoadFile(path))
	assert.True(t, s.Has("pirate"))
	assert.Equal(t, "pirate", s.Get("PIRATE").DisplayName)
	assert.Equal(t, "Sensei", s.Get("mentor").DisplayName)
	assert.False(t, s.Has("empty"))
	assert.Contains(t, s.Names(), "pirate")
}

func TestLoadFile_Errors(t *testing.T) {
	s := NewSelector("")
	assert.Error(t, s.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("personas: [unclosed"), 0o644))
	assert.Error(t, s.LoadFile(bad))
	assert.Equal(t, "liora", s.Get("").ID)
}
