// Package memory exposes Core Memory's agent-callable operations
// (append, replace, clear, create) as tools the agent loop can invoke
// through the registry, so a model can edit its own long-term context.
package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lucerna-ai/lucerna/internal/agent"
	core "github.com/lucerna-ai/lucerna/internal/memory"
)

// Core is the subset of *memory.CoreMemory the tools in this package need.
type Core interface {
	Append(label, value string) error
	Replace(label, old, new string) error
	Clear(label string) error
	Create(label, description string, limit int, readOnly bool) error
	CreateWithValue(label, value, description string, limit int, readOnly bool) error
}

// Register adds all four memory tools to reg, bound to mem.
func Register(reg *agent.Registry, mem Core) error {
	for _, t := range []agent.Tool{
		&AppendTool{Memory: mem},
		&ReplaceTool{Memory: mem},
		&ClearTool{Memory: mem},
		&CreateTool{Memory: mem},
	} {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// mapMemoryErr passes a core memory error through unchanged; the registry
// wraps any non-ToolError as execution_failed, which is the right
// classification for not_found/read_only/over_limit failures surfaced to
// the model as a tool error.
func mapMemoryErr(err error) error { return err }

// AppendTool implements the memory_append tool.
type AppendTool struct{ Memory Core }

var _ agent.Tool = (*AppendTool)(nil)

func (t *AppendTool) Name() string             { return "memory_append" }
func (t *AppendTool) Description() string      { return "Append content to a core memory block." }
func (t *AppendTool) RiskLevel() agent.RiskLevel { return agent.RiskLow }

func (t *AppendTool) Schema() agent.Schema {
	return agent.Schema{
		Type: "object",
		Properties: map[string]agent.Property{
			"label":   {Type: "string", Description: "the block label"},
			"content": {Type: "string", Description: "text to append"},
		},
		Required: []string{"label", "content"},
	}
}

func (t *AppendTool) Invoke(_ context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		Label   string `json:"label"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if err := t.Memory.Append(args.Label, args.Content); err != nil {
		return "", mapMemoryErr(err)
	}
	return fmt.Sprintf("appended to %s", args.Label), nil
}

// ReplaceTool implements the memory_replace tool.
type ReplaceTool struct{ Memory Core }

var _ agent.Tool = (*ReplaceTool)(nil)

func (t *ReplaceTool) Name() string             { return "memory_replace" }
func (t *ReplaceTool) Description() string      { return "Replace a substring within a core memory block's value." }
func (t *ReplaceTool) RiskLevel() agent.RiskLevel { return agent.RiskLow }

func (t *ReplaceTool) Schema() agent.Schema {
	return agent.Schema{
		Type: "object",
		Properties: map[string]agent.Property{
			"label": {Type: "string", Description: "the block label"},
			"old":   {Type: "string", Description: "substring to find"},
			"new":   {Type: "string", Description: "replacement text"},
		},
		Required: []string{"label", "old", "new"},
	}
}

func (t *ReplaceTool) Invoke(_ context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		Label string `json:"label"`
		Old   string `json:"old"`
		New   string `json:"new"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if err := t.Memory.Replace(args.Label, args.Old, args.New); err != nil {
		return "", mapMemoryErr(err)
	}
	return fmt.Sprintf("replaced in %s", args.Label), nil
}

// ClearTool implements the memory_clear tool.
type ClearTool struct{ Memory Core }

var _ agent.Tool = (*ClearTool)(nil)

func (t *ClearTool) Name() string             { return "memory_clear" }
func (t *ClearTool) Description() string      { return "Reset a core memory block's value to empty." }
func (t *ClearTool) RiskLevel() agent.RiskLevel { return agent.RiskMedium }

func (t *ClearTool) Schema() agent.Schema {
	return agent.Schema{
		Type:       "object",
		Properties: map[string]agent.Property{"label": {Type: "string", Description: "the block label"}},
		Required:   []string{"label"},
	}
}

func (t *ClearTool) Invoke(_ context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		Label string `json:"label"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if err := t.Memory.Clear(args.Label); err != nil {
		return "", mapMemoryErr(err)
	}
	return fmt.Sprintf("cleared %s", args.Label), nil
}

// CreateTool implements the memory_create tool.
type CreateTool struct{ Memory Core }

var _ agent.Tool = (*CreateTool)(nil)

func (t *CreateTool) Name() string             { return "memory_create" }
func (t *CreateTool) Description() string      { return "Create a new core memory block. No-op if the label already exists." }
func (t *CreateTool) RiskLevel() agent.RiskLevel { return agent.RiskLow }

func (t *CreateTool) Schema() agent.Schema {
	return agent.Schema{
		Type: "object",
		Properties: map[string]agent.Property{
			"label":       {Type: "string", Description: "the new block's label"},
			"value":       {Type: "string", Description: "initial value, default empty"},
			"description": {Type: "string", Description: "what this block holds"},
			"limit":       {Type: "integer", Description: "character cap, default 1000"},
		},
		Required: []string{"label"},
	}
}

func (t *CreateTool) Invoke(_ context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		Label       string `json:"label"`
		Value       string `json:"value"`
		Description string `json:"description"`
		Limit       int    `json:"limit"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	limit := args.Limit
	if limit <= 0 {
		limit = 1000
	}
	if err := t.Memory.CreateWithValue(args.Label, args.Value, args.Description, limit, false); err != nil {
		if merr, ok := err.(*core.Error); ok && merr.Kind == core.ErrKindAlreadyExists {
			return fmt.Sprintf("%s already exists", args.Label), nil
		}
		return "", mapMemoryErr(err)
	}
	return fmt.Sprintf("created %s", args.Label), nil
}
