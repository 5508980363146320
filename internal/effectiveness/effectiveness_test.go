package effectiveness

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_ShortQuestionLongAnswerPenalised(t *testing.T) {
	got := Score("hi", strings.Repeat("A", 250))
	assert.InDelta(t, 0.4, got, 1e-9)
}

func TestScore_LongQuestionShortAnswerPenalised(t *testing.T) {
	got := Score(strings.Repeat("x", 120), "ok")
	assert.InDelta(t, 0.4, got, 1e-9)
}

func TestScore_TopicOverlapEngagementAndSentiment(t *testing.T) {
	// user topics: technology, entertainment; response covers technology only
	user := "I love programming and music"
	resp := "Programming is great, what do you think?"
	assert.InDelta(t, 0.5+0.1+0.1+0.1, Score(user, resp), 1e-9)
}

func TestScore_ClampedToUnitInterval(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	words := []string{"love", "hate", "code", "music", "interesting", "hi", "!", "science", "bad", "great"}
	for i := 0; i < 500; i++ {
		var u, a strings.Builder
		for j := 0; j < r.Intn(40); j++ {
			u.WriteString(words[r.Intn(len(words))] + " ")
		}
		for j := 0; j < r.Intn(80); j++ {
			a.WriteString(words[r.Intn(len(words))] + " ")
		}
		s := Score(u.String(), a.String())
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}
