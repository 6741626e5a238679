package agent

import (
	"context"
	"encoding/json"
	"testing"
)

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "echoes its message argument" }
func (echoTool) RiskLevel() RiskLevel { return RiskLow }
func (echoTool) Schema() Schema {
	return Schema{
		Type: "object",
		Properties: map[string]Property{
			"message": {Type: "string"},
		},
		Required: []string{"message"},
	}
}
func (echoTool) Invoke(_ context.Context, args json.RawMessage) (string, error) {
	var in struct{ Message string `json:"message"` }
	if err := json.Unmarshal(args, &in); err != nil {
		return "", err
	}
	return in.Message, nil
}

func TestRegistry_InvokeSuccess(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.Register(echoTool{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	out, err := r.Invoke(context.Background(), "echo", json.RawMessage(`{"message":"hi"}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out != "hi" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRegistry_NotFound(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Invoke(context.Background(), "missing", json.RawMessage(`{}`))
	te, ok := IsToolError(err)
	if !ok {
		t.Fatalf("expected ToolError, got %v", err)
	}
	if te.Kind != ErrKindNotFound {
		t.Fatalf("expected not_found, got %s", te.Kind)
	}
}

func TestRegistry_MissingRequired(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.Register(echoTool{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := r.Invoke(context.Background(), "echo", json.RawMessage(`{}`))
	te, ok := IsToolError(err)
	if !ok {
		t.Fatalf("expected ToolError, got %v", err)
	}
	if te.Kind != ErrKindMissingRequired {
		t.Fatalf("expected missing_required, got %s", te.Kind)
	}
}

func TestRegistry_RejectsBadName(t *testing.T) {
	r := NewRegistry(nil)
	err := r.Register(badNameTool{})
	if err == nil {
		t.Fatal("expected error for invalid tool name")
	}
}

type badNameTool struct{ echoTool }

func (badNameTool) Name() string { return "Not-Valid!" }
