package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/lucerna-ai/lucerna/internal/agent"
)

// BedrockConfig configures the Amazon Bedrock backend. Enrichment beyond
// the distilled spec's provider roster, grounded in the teacher's
// providers/bedrock.go and its aws-sdk-go-v2 dependency.
type BedrockConfig struct {
	ModelID string
	Region  string
}

// BedrockBackend invokes an Anthropic-family model hosted on Bedrock via
// bedrockruntime.InvokeModel, using the same request/response shape
// Anthropic's own API uses (Bedrock's "anthropic.*" model family is
// wire-compatible with the Messages API body).
type BedrockBackend struct {
	client  *bedrockruntime.Client
	modelID string
}

// NewBedrockBackend builds a Bedrock backend from the default AWS
// credential chain. It returns a backend that always fails Probe if no
// model ID is configured, rather than erroring out at construction —
// Bedrock is opt-in enrichment, not a required provider.
func NewBedrockBackend(ctx context.Context, cfg BedrockConfig) (*BedrockBackend, error) {
	if cfg.ModelID == "" {
		return &BedrockBackend{}, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}
	return &BedrockBackend{
		client:  bedrockruntime.NewFromConfig(awsCfg),
		modelID: cfg.ModelID,
	}, nil
}

func (b *BedrockBackend) Name() string { return "bedrock" }

func (b *BedrockBackend) Probe(_ context.Context) bool { return b.client != nil }

type bedrockAnthropicRequest struct {
	AnthropicVersion string                   `json:"anthropic_version"`
	MaxTokens        int                      `json:"max_tokens"`
	System           string                   `json:"system,omitempty"`
	Messages         []bedrockAnthropicMessage `json:"messages"`
}

type bedrockAnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockAnthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (b *BedrockBackend) Generate(ctx context.Context, messages []agent.Message, opts agent.GenerateOptions) (agent.GenerateResult, error) {
	if b.client == nil {
		return agent.GenerateResult{}, fmt.Errorf("bedrock: not configured")
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	var system string
	msgs := make([]bedrockAnthropicMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == agent.RoleSystem {
			system = m.Content
			continue
		}
		role := "user"
		if m.Role == agent.RoleAssistant {
			role = "assistant"
		}
		msgs = append(msgs, bedrockAnthropicMessage{Role: role, Content: m.Content})
	}

	payload := bedrockAnthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		System:           system,
		Messages:         msgs,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return agent.GenerateResult{}, err
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return agent.GenerateResult{}, err
	}

	var decoded bedrockAnthropicResponse
	if err := json.Unmarshal(out.Body, &decoded); err != nil {
		return agent.GenerateResult{}, fmt.Errorf("decode bedrock response: %w", err)
	}

	var text string
	for _, block := range decoded.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return agent.GenerateResult{
		Content:          text,
		PromptTokens:     decoded.Usage.InputTokens,
		CompletionTokens: decoded.Usage.OutputTokens,
	}, nil
}
