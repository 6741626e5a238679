package providers

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/lucerna-ai/lucerna/internal/agent"
)

// GeminiConfig configures the Gemini backend. Enrichment beyond the
// distilled spec's provider roster, grounded in the teacher's own
// providers/google.go.
type GeminiConfig struct {
	APIKey       string
	DefaultModel string
}

// GeminiBackend calls Google's Gemini API through google.golang.org/genai.
type GeminiBackend struct {
	client       *genai.Client
	defaultModel string
	hasKey       bool
}

// NewGeminiBackend builds a Gemini backend. Client construction is lazy in
// spirit but eager in practice: genai.NewClient only validates the key
// shape, it doesn't dial out.
func NewGeminiBackend(ctx context.Context, cfg GeminiConfig) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		return &GeminiBackend{defaultModel: cfg.DefaultModel}, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &GeminiBackend{client: client, defaultModel: cfg.DefaultModel, hasKey: true}, nil
}

func (g *GeminiBackend) Name() string { return "gemini" }

func (g *GeminiBackend) Probe(_ context.Context) bool { return g.hasKey }

func (g *GeminiBackend) Generate(ctx context.Context, messages []agent.Message, opts agent.GenerateOptions) (agent.GenerateResult, error) {
	if g.client == nil {
		return agent.GenerateResult{}, fmt.Errorf("gemini: no API key configured")
	}
	model := opts.Model
	if model == "" {
		model = g.defaultModel
	}
	if model == "" {
		return agent.GenerateResult{}, fmt.Errorf("gemini: no model configured")
	}

	prompt := flattenMessages(messages)
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return agent.GenerateResult{}, err
	}

	result := agent.GenerateResult{Content: resp.Text()}
	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return result, nil
}

// flattenMessages renders a transcript as plain text for backends whose
// SDK takes a single prompt string rather than a role-tagged message list.
func flattenMessages(messages []agent.Message) string {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(string(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
