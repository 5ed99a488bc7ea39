package domain

import "context"

// Completer executes a structured-prompt text completion.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

// CompletionOptions bound a single completion call.
type CompletionOptions struct {
	MaxTokens   int
	Temperature float32
}
