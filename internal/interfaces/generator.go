package interfaces

import "context"

// Generator is a chat-style text-generation collaborator.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}
