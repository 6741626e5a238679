// Package shell provides a tool that runs a single shell command and
// returns its combined output, bounded by a timeout.
package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/lucerna-ai/lucerna/internal/agent"
)

// Tool implements agent.Tool by running commands through `sh -c`.
type Tool struct {
	Timeout time.Duration
}

var _ agent.Tool = (*Tool)(nil)

func (t *Tool) Name() string             { return "shell" }
func (t *Tool) Description() string      { return "Run a shell command and return its combined stdout/stderr." }
func (t *Tool) RiskLevel() agent.RiskLevel { return agent.RiskHigh }

func (t *Tool) Schema() agent.Schema {
	return agent.Schema{
		Type: "object",
		Properties: map[string]agent.Property{
			"command": {Type: "string", Description: "the command line to execute"},
		},
		Required: []string{"command"},
	}
}

type shellArgs struct {
	Command string `json:"command"`
}

func (t *Tool) Invoke(ctx context.Context, raw json.RawMessage) (string, error) {
	var args shellArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Command == "" {
		return "", fmt.Errorf("command must not be empty")
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", args.Command)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return out.String(), fmt.Errorf("command failed: %w", err)
	}
	return out.String(), nil
}
