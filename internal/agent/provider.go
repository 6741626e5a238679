package agent

import "context"

// GenerateOptions tunes a single Provider.Generate call.
type GenerateOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// GenerateResult is what every provider backend normalizes its response to,
// regardless of wire format.
type GenerateResult struct {
	Content           string
	PromptTokens      int
	CompletionTokens  int
}

// Provider is the router's contract with the loop: one blocking call in,
// one normalized result or error out. No provider-specific types leak
// across this boundary.
type Provider interface {
	Generate(ctx context.Context, messages []Message, opts GenerateOptions) (GenerateResult, error)
}

// Memory is the loop's view of core memory: enough to compile it into the
// prompt and to auto-commit a version after a memory-mutating tool call.
type Memory interface {
	Compile() string
	Commit(message string) (string, error)
}
