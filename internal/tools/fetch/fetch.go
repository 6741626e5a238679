// Package fetch provides a tool that retrieves a URL over HTTP and returns
// its body, bounded in size and time.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lucerna-ai/lucerna/internal/agent"
)

const maxBodyBytes = 1 << 20 // 1MB

// Tool implements agent.Tool for a bounded HTTP GET.
type Tool struct {
	Client *http.Client
}

var _ agent.Tool = (*Tool)(nil)

func (t *Tool) Name() string             { return "fetch" }
func (t *Tool) Description() string      { return "Fetch a URL over HTTP and return its body, up to 1MB." }
func (t *Tool) RiskLevel() agent.RiskLevel { return agent.RiskLow }

func (t *Tool) Schema() agent.Schema {
	return agent.Schema{
		Type: "object",
		Properties: map[string]agent.Property{
			"url": {Type: "string", Description: "the URL to GET"},
		},
		Required: []string{"url"},
	}
}

type fetchArgs struct {
	URL string `json:"url"`
}

func (t *Tool) Invoke(ctx context.Context, raw json.RawMessage) (string, error) {
	var args fetchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.URL == "" {
		return "", fmt.Errorf("url must not be empty")
	}

	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, args.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", args.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return string(body), fmt.Errorf("fetch %s: status %d", args.URL, resp.StatusCode)
	}
	return string(body), nil
}
