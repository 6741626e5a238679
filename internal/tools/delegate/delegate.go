// Package delegate implements call_subordinate: a tool that lets the agent
// loop invoke itself on a focused sub-task, with a read-only copy of the
// parent's persona/human/knowledge/capabilities blocks but its own scratch
// memory and conversation. See spec.md's "Recursive delegation" design
// note — the source calls its analogue call_subordinate/delegate_parallel.
package delegate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lucerna-ai/lucerna/internal/agent"
	"github.com/lucerna-ai/lucerna/internal/memory"
)

// maxDepth bounds how many levels a subordinate call can recurse, since a
// sub-agent's registry still contains call_subordinate itself.
const maxDepth = 3

type depthKey struct{}

// Tool implements agent.Tool for "call_subordinate": it runs a fresh,
// bounded agent turn against an inherited memory snapshot and returns the
// sub-agent's final reply as this tool's result.
type Tool struct {
	Provider     agent.Provider
	Registry     *agent.Registry
	ParentMemory *memory.CoreMemory
	Logger       *slog.Logger
}

var _ agent.Tool = (*Tool)(nil)

func (t *Tool) Name() string { return "call_subordinate" }

func (t *Tool) Description() string {
	return "Delegate a focused sub-task to a fresh agent loop that inherits read-only context from this agent."
}

func (t *Tool) RiskLevel() agent.RiskLevel { return agent.RiskMedium }

func (t *Tool) Schema() agent.Schema {
	return agent.Schema{
		Type: "object",
		Properties: map[string]agent.Property{
			"task": {Type: "string", Description: "the sub-task to delegate"},
		},
		Required: []string{"task"},
	}
}

type delegateArgs struct {
	Task string `json:"task"`
}

func (t *Tool) Invoke(ctx context.Context, raw json.RawMessage) (string, error) {
	var args delegateArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Task == "" {
		return "", fmt.Errorf("task must not be empty")
	}

	depth, _ := ctx.Value(depthKey{}).(int)
	if depth >= maxDepth {
		return "", fmt.Errorf("call_subordinate: maximum delegation depth (%d) reached", maxDepth)
	}
	ctx = context.WithValue(ctx, depthKey{}, depth+1)

	childMem, err := memory.New("sub-"+uuid.NewString(), ephemeralBlockStore{}, ephemeralVersionStore{}, t.Logger)
	if err != nil {
		return "", fmt.Errorf("init sub-agent memory: %w", err)
	}
	if t.ParentMemory != nil {
		if err := childMem.InheritFrom(t.ParentMemory); err != nil {
			return "", fmt.Errorf("inherit memory: %w", err)
		}
	}

	loop := agent.New(t.Provider, t.Registry, childMem, agent.LoopConfig{
		System: "You are a subordinate agent delegated a single focused task. Use the response tool to return your final answer once the task is complete.",
		Logger: t.Logger,
	})

	turn, err := loop.Run(ctx, nil, args.Task)
	if err != nil {
		return "", fmt.Errorf("subordinate turn: %w", err)
	}
	return turn.Reply, nil
}

// ephemeralBlockStore/ephemeralVersionStore give a sub-agent its own
// scratch memory that is never written to disk and never outlives the
// delegate call.
type ephemeralBlockStore struct{}

func (ephemeralBlockStore) Save(string, map[string]memory.Block)      {}
func (ephemeralBlockStore) Load(string) (map[string]memory.Block, error) { return nil, nil }

type ephemeralVersionStore struct{}

func (ephemeralVersionStore) Save(*memory.Version) error           { return nil }
func (ephemeralVersionStore) Load(string) (*memory.Version, error) { return nil, nil }
