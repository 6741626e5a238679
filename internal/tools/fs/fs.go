// Package fs provides a minimal, sandboxed-by-convention filesystem tool:
// read, write, and list operations rooted at one directory.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucerna-ai/lucerna/internal/agent"
)

// Tool implements agent.Tool for filesystem access rooted at Root. Every
// path argument is resolved relative to Root and rejected if it would
// escape it.
type Tool struct {
	Root string
}

var _ agent.Tool = (*Tool)(nil)

func (t *Tool) Name() string             { return "filesystem" }
func (t *Tool) Description() string      { return "Read, write, or list files under the agent's working directory." }
func (t *Tool) RiskLevel() agent.RiskLevel { return agent.RiskMedium }

func (t *Tool) Schema() agent.Schema {
	return agent.Schema{
		Type: "object",
		Properties: map[string]agent.Property{
			"operation": {Type: "string", Enum: []string{"read", "write", "list"}, Description: "which operation to perform"},
			"path":      {Type: "string", Description: "path relative to the working directory"},
			"content":   {Type: "string", Description: "content to write (operation=write only)"},
		},
		Required: []string{"operation", "path"},
	}
}

type fsArgs struct {
	Operation string `json:"operation"`
	Path      string `json:"path"`
	Content   string `json:"content"`
}

func (t *Tool) Invoke(_ context.Context, raw json.RawMessage) (string, error) {
	var args fsArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	resolved, err := t.resolve(args.Path)
	if err != nil {
		return "", err
	}

	switch args.Operation {
	case "read":
		data, err := os.ReadFile(resolved)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", args.Path, err)
		}
		return string(data), nil
	case "write":
		if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
			return "", fmt.Errorf("mkdir for %s: %w", args.Path, err)
		}
		if err := os.WriteFile(resolved, []byte(args.Content), 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", args.Path, err)
		}
		return fmt.Sprintf("wrote %d bytes to %s", len(args.Content), args.Path), nil
	case "list":
		entries, err := os.ReadDir(resolved)
		if err != nil {
			return "", fmt.Errorf("list %s: %w", args.Path, err)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.IsDir() {
				names = append(names, e.Name()+"/")
			} else {
				names = append(names, e.Name())
			}
		}
		return strings.Join(names, "\n"), nil
	default:
		return "", fmt.Errorf("unknown operation %q", args.Operation)
	}
}

func (t *Tool) resolve(rel string) (string, error) {
	root, err := filepath.Abs(t.Root)
	if err != nil {
		return "", err
	}
	joined := filepath.Join(root, rel)
	if joined != root && !strings.HasPrefix(joined, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the working directory", rel)
	}
	return joined, nil
}
