package conversation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fixedIntn int

func (f fixedIntn) Intn(n int) int { return int(f) % n }

func TestStarter(t *testing.T) {
	assert.Equal(t, starters[0], Starter(nil))
	assert.Equal(t, starters[2], Starter(fixedIntn(2)))
	assert.Equal(t, starters[0], Starter(fixedIntn(5)))
}

func TestFallbackTitle(t *testing.T) {
	cases := map[string]string{
		"what is quantum computing really": "What Is Quantum",
		"hello":                            "Hello",
		"   ":                              DefaultTitle,
		"supercalifragilistic expialidocious words": "Supercalifragilistic Expi",
	}
	for in, want := range cases {
		assert.Equal(t, want, FallbackTitle(in), in)
	}
}

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, "Travel Plans", CleanTitle(`  "Travel Plans"  `))
	assert.Equal(t, "Its Python", CleanTitle("It's Python"))
	long := CleanTitle(strings.Repeat("a", 40))
	assert.Len(t, long, 25)
}

func TestTitlePrompt(t *testing.T) {
	p := TitlePrompt("I want to visit Japan")
	assert.Contains(t, p, "'I want to visit Japan'")
	assert.Contains(t, p, "max 25 characters")
	assert.True(t, strings.HasSuffix(p, "Title:"))
}
