package assistant

import (
	"strings"

	"liora/internal/augment"
	"liora/internal/learning"
	"liora/internal/llm"
)

func buildPrompt(instructions string, g learning.Guidance, history, message string, aug augment.Augmentation) []llm.Message {
	system := instructions + "\n\n" + g.Prompt()

	var user strings.Builder
	if history != "" {
		user.WriteString("Conversation history:\n")
		user.WriteString(history)
		user.WriteString("\n\nCurrent message: ")
	}
	user.WriteString(message)
	if !aug.Empty() {
		user.WriteString("\n\nWeave this into your reply naturally:\n")
		user.WriteString(aug.Block())
	}
	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user.String()},
	}
}
