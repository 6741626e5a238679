package providers

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lucerna-ai/lucerna/internal/agent"
)

// AnthropicConfig configures the Anthropic backend.
type AnthropicConfig struct {
	APIKey       string
	DefaultModel string
}

// AnthropicBackend calls the Anthropic Messages API through the official
// SDK rather than raw HTTP.
type AnthropicBackend struct {
	client       anthropic.Client
	defaultModel string
	hasKey       bool
}

// NewAnthropicBackend builds an Anthropic backend.
func NewAnthropicBackend(cfg AnthropicConfig) *AnthropicBackend {
	return &AnthropicBackend{
		client:       anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		defaultModel: cfg.DefaultModel,
		hasKey:       cfg.APIKey != "",
	}
}

func (a *AnthropicBackend) Name() string { return "anthropic" }

// Probe is cheap by construction: a hosted backend is reachable whenever
// it has credentials configured. A network call here would defeat the
// purpose of a fast auto-detect pass.
func (a *AnthropicBackend) Probe(_ context.Context) bool { return a.hasKey }

func (a *AnthropicBackend) Generate(ctx context.Context, messages []agent.Message, opts agent.GenerateOptions) (agent.GenerateResult, error) {
	model := opts.Model
	if model == "" {
		model = a.defaultModel
	}
	if model == "" {
		return agent.GenerateResult{}, fmt.Errorf("anthropic: no model configured")
	}

	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	system, msgs := splitSystemAndMessages(messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  msgs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return agent.GenerateResult{}, err
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return agent.GenerateResult{
		Content:          text,
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}, nil
}

func splitSystemAndMessages(messages []agent.Message) (string, []anthropic.MessageParam) {
	var system string
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case agent.RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
		case agent.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return system, out
}
