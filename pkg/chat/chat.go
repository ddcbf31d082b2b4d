package chat

import "strings"

const (
	ChatRoleUser   = "user"
	ChatRoleAgent  = "assistant"
	ChatRoleSystem = "system"
)

// ChatMessage is a single message sent to a text-generation provider.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// ChatResponse is the text returned by a provider.
type ChatResponse struct {
	Message string `json:"message,omitempty"`
	Model   string `json:"model,omitempty"`
}

func System(content string) ChatMessage {
	return ChatMessage{Role: ChatRoleSystem, Content: content}
}

func User(content string) ChatMessage {
	return ChatMessage{Role: ChatRoleUser, Content: content}
}

// SplitSystem joins all system messages into one prompt and returns the
// remaining conversation. Providers with a dedicated system field use it.
func SplitSystem(messages []ChatMessage) (string, []ChatMessage) {
	var systemParts []string
	var rest []ChatMessage

	for _, msg := range messages {
		if msg.Role == ChatRoleSystem {
			systemParts = append(systemParts, msg.Content)
		} else {
			rest = append(rest, msg)
		}
	}

	return strings.Join(systemParts, "\n\n"), rest
}
