package conversation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

var starters = []string{
	"Hi! I'm your AI assistant. What's on your mind today?",
	"Hello! I'd love to get to know you better. What interests you most?",
	"Hey there! I'm here to chat. What would you like to talk about?",
	"Welcome! I'm curious - what's something you're passionate about?",
	"Hi! I'm excited to chat with you. What's been on your mind lately?",
}

// Intn is satisfied by *rand.Rand.
type Intn interface {
	Intn(n int) int
}

// Starter picks an opening question. A nil r always yields the first one.
func Starter(r Intn) string {
	if r == nil {
		return starters[0]
	}
	return starters[r.Intn(len(starters))]
}

// TitlePrompt asks the model for a short title of a conversation opening
// with message.
func TitlePrompt(message string) string {
	return fmt.Sprintf(`Generate a short, contextual title (max %d characters) for a conversation that starts with: '%s'

Rules:
- Be specific and contextual to the topic
- Use 2-4 words maximum
- No quotes or special characters
- Examples: "Python Programming", "Travel Plans", "Recipe Ideas", "Book Discussion"
- If it's a question, focus on the subject, not the question format

Title:`, maxTitleLength, message)
}

// CleanTitle trims a model-produced title, drops quotes and cuts it to the
// title limit.
func CleanTitle(raw string) string {
	t := truncate(strings.TrimSpace(raw), maxTitleLength)
	t = strings.NewReplacer(`"`, "", "'", "").Replace(t)
	return strings.TrimSpace(t)
}

// FallbackTitle title-cases the first three words of message.
func FallbackTitle(message string) string {
	words := strings.Fields(message)
	if len(words) > 3 {
		words = words[:3]
	}
	for i, w := range words {
		words[i] = titleWord(w)
	}
	t := truncate(strings.Join(words, " "), maxTitleLength)
	if t == "" {
		return DefaultTitle
	}
	return t
}

func titleWord(w string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range w {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		prevLetter = false
		b.WriteRune(r)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
