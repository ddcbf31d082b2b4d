package services

import (
	"context"

	"github.com/Abdullah0x0/dreamdirector/pkg/chat"
)

// LLMService defines the interface for interacting with a text-generation
// provider.
type LLMService interface {
	// InitModel prepares the provider on startup
	InitModel(ctx context.Context, modelName string) error

	// Chat generates a completion for the given conversation
	Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error)
}
