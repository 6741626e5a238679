package memory

import (
	"context"
	"encoding/json"
	"testing"

	core "github.com/lucerna-ai/lucerna/internal/memory"
)

type stubBlockStore struct{}

func (stubBlockStore) Save(string, map[string]core.Block)          {}
func (stubBlockStore) Load(string) (map[string]core.Block, error) { return nil, nil }

type stubVersionStore struct{}

func (stubVersionStore) Save(*core.Version) error           { return nil }
func (stubVersionStore) Load(string) (*core.Version, error) { return nil, nil }

func newTestMemory(t *testing.T) *core.CoreMemory {
	t.Helper()
	mem, err := core.New("test-agent", stubBlockStore{}, stubVersionStore{}, nil)
	if err != nil {
		t.Fatalf("core.New: %v", err)
	}
	return mem
}

func TestAppendTool_Invoke(t *testing.T) {
	mem := newTestMemory(t)
	tool := &AppendTool{Memory: mem}

	out, err := tool.Invoke(context.Background(), json.RawMessage(`{"label":"persona","content":"a helpful agent"}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out != "appended to persona" {
		t.Fatalf("unexpected result %q", out)
	}
	b, _ := mem.Get("persona")
	if b.Value != "a helpful agent" {
		t.Fatalf("unexpected block value %q", b.Value)
	}
}

func TestReplaceTool_Invoke(t *testing.T) {
	mem := newTestMemory(t)
	if err := mem.Append("persona", "a cautious agent"); err != nil {
		t.Fatalf("seed append: %v", err)
	}

	tool := &ReplaceTool{Memory: mem}
	_, err := tool.Invoke(context.Background(), json.RawMessage(`{"label":"persona","old":"cautious","new":"helpful"}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	b, _ := mem.Get("persona")
	if b.Value != "a helpful agent" {
		t.Fatalf("unexpected block value %q", b.Value)
	}
}

func TestClearTool_Invoke(t *testing.T) {
	mem := newTestMemory(t)
	_ = mem.Append("persona", "something")

	tool := &ClearTool{Memory: mem}
	if _, err := tool.Invoke(context.Background(), json.RawMessage(`{"label":"persona"}`)); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	b, _ := mem.Get("persona")
	if b.Value != "" {
		t.Fatalf("expected cleared block, got %q", b.Value)
	}
}

func TestCreateTool_NoOpIfExists(t *testing.T) {
	mem := newTestMemory(t)
	tool := &CreateTool{Memory: mem}

	out, err := tool.Invoke(context.Background(), json.RawMessage(`{"label":"persona","description":"dup"}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out != "persona already exists" {
		t.Fatalf("expected no-op message, got %q", out)
	}
}

func TestCreateTool_NewBlock(t *testing.T) {
	mem := newTestMemory(t)
	tool := &CreateTool{Memory: mem}

	if _, err := tool.Invoke(context.Background(), json.RawMessage(`{"label":"scratch","description":"working notes","limit":500}`)); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	b, ok := mem.Get("scratch")
	if !ok {
		t.Fatal("expected scratch block to be created")
	}
	if b.Limit != 500 {
		t.Fatalf("unexpected limit %d", b.Limit)
	}
}

func TestCreateTool_WithInitialValue(t *testing.T) {
	mem := newTestMemory(t)
	tool := &CreateTool{Memory: mem}

	if _, err := tool.Invoke(context.Background(), json.RawMessage(`{"label":"scratch","value":"seeded"}`)); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	b, ok := mem.Get("scratch")
	if !ok {
		t.Fatal("expected scratch block to be created")
	}
	if b.Value != "seeded" {
		t.Fatalf("expected seeded value, got %q", b.Value)
	}
}
