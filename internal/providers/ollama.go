package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lucerna-ai/lucerna/internal/agent"
)

// OllamaConfig configures the Ollama backend.
type OllamaConfig struct {
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// OllamaBackend talks to a local Ollama daemon over its native /api/chat
// endpoint, which is not OpenAI-wire-compatible.
type OllamaBackend struct {
	client       *http.Client
	baseURL      string
	defaultModel string
}

// NewOllamaBackend builds an Ollama backend, defaulting BaseURL to
// http://localhost:11434.
func NewOllamaBackend(cfg OllamaConfig) *OllamaBackend {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OllamaBackend{
		client:       &http.Client{Timeout: timeout},
		baseURL:      baseURL,
		defaultModel: cfg.DefaultModel,
	}
}

func (o *OllamaBackend) Name() string { return "ollama" }

// Probe pings Ollama's /api/tags endpoint, which is cheap and always
// present on a running daemon.
func (o *OllamaBackend) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	client := &http.Client{Timeout: 500 * time.Millisecond}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message         ollamaChatMessage `json:"message"`
	Done            bool              `json:"done"`
	Error           string            `json:"error"`
	PromptEvalCount int               `json:"prompt_eval_count"`
	EvalCount       int               `json:"eval_count"`
}

func (o *OllamaBackend) Generate(ctx context.Context, messages []agent.Message, opts agent.GenerateOptions) (agent.GenerateResult, error) {
	model := opts.Model
	if model == "" {
		model = o.defaultModel
	}
	if model == "" {
		return agent.GenerateResult{}, fmt.Errorf("ollama: no model configured")
	}

	numPredict := 4096
	if opts.MaxTokens > 0 {
		numPredict = opts.MaxTokens
	}
	payload := ollamaChatRequest{
		Model:    model,
		Stream:   false,
		Messages: toOllamaMessages(messages),
		Options:  map[string]any{"num_predict": numPredict},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return agent.GenerateResult{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return agent.GenerateResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return agent.GenerateResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return agent.GenerateResult{}, fmt.Errorf("ollama status %d", resp.StatusCode)
	}

	var decoded ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return agent.GenerateResult{}, fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != "" {
		return agent.GenerateResult{}, fmt.Errorf("ollama: %s", decoded.Error)
	}

	return agent.GenerateResult{
		Content:          decoded.Message.Content,
		PromptTokens:     decoded.PromptEvalCount,
		CompletionTokens: decoded.EvalCount,
	}, nil
}

func toOllamaMessages(messages []agent.Message) []ollamaChatMessage {
	out := make([]ollamaChatMessage, 0, len(messages))
	for _, m := range messages {
		role := string(m.Role)
		if m.Role == agent.RoleTool {
			role = "tool"
		}
		out = append(out, ollamaChatMessage{Role: role, Content: m.Content})
	}
	return out
}
