// Package conversation keeps chat threads and their messages.
package conversation

import (
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("conversation not found")

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// DefaultTitle marks a conversation that still waits for a contextual title.
	DefaultTitle   = "New Chat"
	maxTitleLength = 25
)

type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type Conversation struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	// Owner scopes a conversation to a front-end user, e.g. "tg:42".
	Owner       string    `json:"owner,omitempty"`
	Persona     string    `json:"persona,omitempty"`
	Messages    []Message `json:"messages"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// UserMessages counts messages sent by the user.
func (c Conversation) UserMessages() int {
	n := 0
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// NeedsTitle reports whether the conversation still carries a placeholder title.
func (c Conversation) NeedsTitle() bool {
	return strings.HasPrefix(c.Title, DefaultTitle)
}

// RenderHistory formats the last window messages as "User: ..." and
// "Assistant: ..." lines. A window <= 0 renders everything.
func RenderHistory(msgs []Message, window int) string {
	if window > 0 && len(msgs) > window {
		msgs = msgs[len(msgs)-window:]
	}
	var b strings.Builder
	for _, m := range msgs {
		if m.Role == RoleUser {
			b.WriteString("User: ")
		} else {
			b.WriteString("Assistant: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}
