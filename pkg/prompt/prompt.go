// Package prompt builds the ordered message list sent to the model.
package prompt

import (
	"encoding/json"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MaxHistory is the number of prior turns carried into a prompt.
const MaxHistory = 5

const contextInstruction = "Use the information in the context above to answer the user's question accurately when it is relevant."

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn is one entry of client-supplied history. Older clients send the
// text under "text" instead of "content".
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (t *Turn) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    string `json:"role"`
		Content string `json:"content"`
		Text    string `json:"text"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t.Role = raw.Role
	t.Content = raw.Content
	if t.Content == "" {
		t.Content = raw.Text
	}
	return nil
}

// SystemPrompt appends the delimited context block to base when
// contextText is not empty.
func SystemPrompt(base, contextText string) string {
	if strings.TrimSpace(contextText) == "" {
		return base
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\n=== DOCUMENT CONTEXT ===\n")
	b.WriteString(contextText)
	b.WriteString("\n=== END ===\n\n")
	b.WriteString(contextInstruction)
	return b.String()
}

// Assemble returns the system message, then the user and assistant turns
// among the last MaxHistory of them, oldest first, then the new user message.
// Turns with empty content count toward the window but are not sent.
func Assemble(basePrompt, contextText string, history []Turn, newMessage string) []Message {
	window := make([]Turn, 0, len(history))
	for _, turn := range history {
		if turn.Role == RoleUser || turn.Role == RoleAssistant {
			window = append(window, turn)
		}
	}
	if len(window) > MaxHistory {
		window = window[len(window)-MaxHistory:]
	}

	accepted := make([]Message, 0, len(window))
	for _, turn := range window {
		if turn.Content != "" {
			accepted = append(accepted, Message{Role: turn.Role, Content: turn.Content})
		}
	}

	messages := make([]Message, 0, len(accepted)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: SystemPrompt(basePrompt, contextText)})
	messages = append(messages, accepted...)
	messages = append(messages, Message{Role: RoleUser, Content: newMessage})
	return messages
}
