package llm

import "context"

// Provider abstracts a chat-completion backend (OpenAI, Anthropic).
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Name() string
}

// Gateway routes completions to a configured provider with retry and
// fallback.
type Gateway interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest is a single-turn prompt with an optional system message.
// JSONOutput asks the provider for a JSON object response where the backend
// supports enforcing it.
type CompletionRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	JSONOutput  bool
}
