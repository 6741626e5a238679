package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lucerna-ai/lucerna/internal/agent"
)

// OpenAICompatibleConfig configures any backend that speaks the OpenAI
// chat-completions wire format: OpenAI itself, Groq, OpenRouter, Azure
// OpenAI, and llama-server all qualify.
type OpenAICompatibleConfig struct {
	BackendName  string
	BaseURL      string
	APIKey       string
	DefaultModel string
	// HealthURL, when set, is probed with a plain GET during auto-detect
	// instead of assuming reachability from the presence of an API key —
	// this is how llama-server (no key, but not always running) is told
	// apart from a hosted cloud backend.
	HealthURL string
}

// OpenAICompatibleBackend wraps github.com/sashabaranov/go-openai, pointed
// at whichever BaseURL the config names.
type OpenAICompatibleBackend struct {
	name         string
	client       *openai.Client
	defaultModel string
	healthURL    string
	hasKey       bool
}

// NewOpenAICompatibleBackend builds a backend for one OpenAI-wire-compatible
// provider.
func NewOpenAICompatibleBackend(cfg OpenAICompatibleConfig) *OpenAICompatibleBackend {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAICompatibleBackend{
		name:         cfg.BackendName,
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: cfg.DefaultModel,
		healthURL:    cfg.HealthURL,
		hasKey:       cfg.APIKey != "",
	}
}

func (b *OpenAICompatibleBackend) Name() string { return b.name }

// Probe reports reachability. When HealthURL is configured it performs a
// cheap GET (llama-server); otherwise a backend is considered reachable
// whenever it was constructed with an API key (hosted cloud providers).
func (b *OpenAICompatibleBackend) Probe(ctx context.Context) bool {
	if b.healthURL == "" {
		return b.hasKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.healthURL, nil)
	if err != nil {
		return false
	}
	client := &http.Client{Timeout: 500 * time.Millisecond}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return false
	}
	text := strings.ToLower(string(body))
	return strings.Contains(text, "ok") || strings.Contains(text, "loading model")
}

func (b *OpenAICompatibleBackend) Generate(ctx context.Context, messages []agent.Message, opts agent.GenerateOptions) (agent.GenerateResult, error) {
	model := opts.Model
	if model == "" {
		model = b.defaultModel
	}
	if model == "" {
		return agent.GenerateResult{}, fmt.Errorf("%s: no model configured", b.name)
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(messages),
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		req.Temperature = float32(opts.Temperature)
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return agent.GenerateResult{}, err
	}
	if len(resp.Choices) == 0 {
		return agent.GenerateResult{}, fmt.Errorf("%s: no choices returned", b.name)
	}

	return agent.GenerateResult{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func toOpenAIMessages(messages []agent.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case agent.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case agent.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case agent.RoleTool:
			role = openai.ChatMessageRoleTool
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:       role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		})
	}
	return out
}
