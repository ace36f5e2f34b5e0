// Package llm provides the text-generation collaborator boundary: a small
// Client interface, provider implementations for Gemini and OpenAI-compatible
// endpoints, and the error kinds callers branch on. Pacing, retries, and model
// selection live in the rate governor, not here.
package llm

import "context"

// Request carries one generation call's parameters. Model may be empty, in
// which case the client uses its configured default.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
	Model       string
}

// Client is the text-generation collaborator. Implementations fail with
// *RateLimitError when the provider is over quota and *GenerationError for
// everything else.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// EstimateTokens is the cheap prompt-size heuristic used for model tier
// selection: one token per three characters.
func EstimateTokens(prompt string) int {
	return len(prompt) / 3
}
