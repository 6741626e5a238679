package delegate

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/lucerna-ai/lucerna/internal/agent"
	"github.com/lucerna-ai/lucerna/internal/memory"
)

type stubBlockStore struct{}

func (stubBlockStore) Save(string, map[string]memory.Block)          {}
func (stubBlockStore) Load(string) (map[string]memory.Block, error) { return nil, nil }

type stubVersionStore struct{}

func (stubVersionStore) Save(*memory.Version) error           { return nil }
func (stubVersionStore) Load(string) (*memory.Version, error) { return nil, nil }

// fakeProvider always answers with a single "response" tool call, so a
// delegated sub-turn resolves in one step without needing a real model.
type fakeProvider struct{}

func (fakeProvider) Generate(_ context.Context, _ []agent.Message, _ agent.GenerateOptions) (agent.GenerateResult, error) {
	return agent.GenerateResult{Content: `{"tool_name":"response","tool_args":{"message":"sub-task complete"}}`}, nil
}

func TestTool_Invoke_RunsSubTurn(t *testing.T) {
	parent, err := memory.New("parent", stubBlockStore{}, stubVersionStore{}, nil)
	if err != nil {
		t.Fatalf("parent memory: %v", err)
	}
	if err := parent.Append("persona", "a careful research assistant"); err != nil {
		t.Fatalf("seed persona: %v", err)
	}

	registry := agent.NewRegistry(nil)
	tool := &Tool{Provider: fakeProvider{}, Registry: registry, ParentMemory: parent, Logger: nil}
	if err := registry.Register(tool); err != nil {
		t.Fatalf("register: %v", err)
	}

	raw, _ := json.Marshal(map[string]string{"task": "summarize the attached notes"})
	out, err := tool.Invoke(context.Background(), raw)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out != "sub-task complete" {
		t.Fatalf("unexpected reply %q", out)
	}
}

func TestTool_Invoke_RejectsEmptyTask(t *testing.T) {
	registry := agent.NewRegistry(nil)
	tool := &Tool{Provider: fakeProvider{}, Registry: registry}

	if _, err := tool.Invoke(context.Background(), json.RawMessage(`{"task":""}`)); err == nil {
		t.Fatal("expected empty task to be rejected")
	}
}

func TestTool_Invoke_BoundsRecursionDepth(t *testing.T) {
	registry := agent.NewRegistry(nil)
	tool := &Tool{Provider: fakeProvider{}, Registry: registry}

	ctx := context.WithValue(context.Background(), depthKey{}, maxDepth)
	raw, _ := json.Marshal(map[string]string{"task": "go deeper"})
	if _, err := tool.Invoke(ctx, raw); err == nil {
		t.Fatal("expected delegation depth limit to trigger")
	}
}
