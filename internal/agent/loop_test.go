package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

// scriptedProvider returns one canned reply per call, in order, and records
// the message lists it was asked to generate from.
type scriptedProvider struct {
	replies []string
	calls   [][]Message
}

func (p *scriptedProvider) Generate(_ context.Context, messages []Message, _ GenerateOptions) (GenerateResult, error) {
	p.calls = append(p.calls, messages)
	idx := len(p.calls) - 1
	if idx >= len(p.replies) {
		return GenerateResult{}, errNoMoreScriptedReplies
	}
	return GenerateResult{Content: p.replies[idx]}, nil
}

var errNoMoreScriptedReplies = errors.New("scripted provider ran out of replies")

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(nil)
	if err := r.Register(echoTool{}); err != nil {
		t.Fatalf("register echo: %v", err)
	}
	return r
}

// TestLoop_BasicToolTurn matches spec scenario 1: the model calls echo, then
// terminates with response; the final reply and transcript order both check
// out.
func TestLoop_BasicToolTurn(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"tool_name":"echo","tool_args":{"message":"hi"}}`,
		`{"tool_name":"response","tool_args":{"message":"done: hi"}}`,
	}}
	reg := newTestRegistry(t)
	loop := New(provider, reg, nil, LoopConfig{})

	turn, err := loop.Run(context.Background(), nil, "say hi")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if turn.Reply != "done: hi" {
		t.Fatalf("unexpected reply %q", turn.Reply)
	}
	if turn.TerminatedBy != TerminatedByResponse {
		t.Fatalf("unexpected termination %q", turn.TerminatedBy)
	}

	if len(turn.Appended) != 3 {
		t.Fatalf("expected 3 appended messages, got %d: %+v", len(turn.Appended), turn.Appended)
	}
	if turn.Appended[0].Role != RoleUser {
		t.Fatalf("expected first appended message to be user, got %s", turn.Appended[0].Role)
	}
	if turn.Appended[1].Role != RoleTool || turn.Appended[1].Content != "hi" {
		t.Fatalf("expected tool result 'hi', got %+v", turn.Appended[1])
	}
	if turn.Appended[2].Role != RoleAssistant || turn.Appended[2].Content != "done: hi" {
		t.Fatalf("expected final assistant message, got %+v", turn.Appended[2])
	}
}

// TestLoop_MultiToolReply matches spec scenario 5: two tool invocations
// followed by a response in the same reply, all dispatched in one step.
func TestLoop_MultiToolReply(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"tool_name":"echo","tool_args":{"message":"one"}}` +
			`{"tool_name":"echo","tool_args":{"message":"two"}}` +
			`{"tool_name":"response","tool_args":{"message":"done"}}`,
	}}
	reg := newTestRegistry(t)
	loop := New(provider, reg, nil, LoopConfig{})

	turn, err := loop.Run(context.Background(), nil, "go")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if turn.Steps != 1 {
		t.Fatalf("expected everything to resolve in a single step, got %d", turn.Steps)
	}
	if len(turn.Appended) != 4 { // user + tool + tool + assistant-final
		t.Fatalf("expected 4 appended messages, got %d: %+v", len(turn.Appended), turn.Appended)
	}
	if turn.Appended[1].Content != "one" || turn.Appended[2].Content != "two" {
		t.Fatalf("expected tool results in parse order, got %+v", turn.Appended[1:3])
	}
	if turn.Appended[3].Content != "done" {
		t.Fatalf("expected final assistant message 'done', got %+v", turn.Appended[3])
	}
}

// TestLoop_ToolNotFoundContinues checks that an unknown tool name becomes a
// synthetic tool error message rather than aborting the turn.
func TestLoop_ToolNotFoundContinues(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"tool_name":"nope","tool_args":{}}`,
		`{"tool_name":"response","tool_args":{"message":"ok"}}`,
	}}
	reg := newTestRegistry(t)
	loop := New(provider, reg, nil, LoopConfig{})

	turn, err := loop.Run(context.Background(), nil, "go")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if turn.Reply != "ok" {
		t.Fatalf("unexpected reply %q", turn.Reply)
	}
	if turn.Appended[1].Role != RoleTool {
		t.Fatalf("expected a synthetic tool error message, got %+v", turn.Appended[1])
	}
}

// TestLoop_StepBudgetExhausted checks that a model that never stops calling
// tools terminates with a budget message once MaxIterations is reached.
func TestLoop_StepBudgetExhausted(t *testing.T) {
	replies := make([]string, 3)
	for i := range replies {
		replies[i] = `{"tool_name":"echo","tool_args":{"message":"x"}}`
	}
	provider := &scriptedProvider{replies: replies}
	reg := newTestRegistry(t)
	loop := New(provider, reg, nil, LoopConfig{MaxIterations: 3})

	turn, err := loop.Run(context.Background(), nil, "go")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if turn.TerminatedBy != TerminatedByStepBudget {
		t.Fatalf("expected step budget termination, got %s", turn.TerminatedBy)
	}
	if turn.Steps != 3 {
		t.Fatalf("expected 3 steps consumed, got %d", turn.Steps)
	}
}

// TestLoop_NoOpRetriedOnce checks that whitespace-only, no-invocation replies
// are retried once before the turn terminates as an error.
func TestLoop_NoOpRetriedOnce(t *testing.T) {
	provider := &scriptedProvider{replies: []string{"   ", "\n\t"}}
	reg := newTestRegistry(t)
	loop := New(provider, reg, nil, LoopConfig{})

	turn, err := loop.Run(context.Background(), nil, "go")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if turn.TerminatedBy != TerminatedByError {
		t.Fatalf("expected error termination after second no-op, got %s", turn.TerminatedBy)
	}
	if len(provider.calls) != 2 {
		t.Fatalf("expected exactly 2 generate calls (retry once), got %d", len(provider.calls))
	}
}

// fakeMemory records every commit message it receives. Together with
// memoryAppendStub, which mutates nothing real but is registered under a
// memory tool name, it lets the auto-commit path be exercised.
type fakeMemory struct {
	commits []string
}

func (m *fakeMemory) Compile() string { return "persona\nmem" }
func (m *fakeMemory) Commit(message string) (string, error) {
	m.commits = append(m.commits, message)
	return "v1", nil
}

func TestLoop_MemoryToolTriggersAutoCommit(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"tool_name":"memory_append","tool_args":{"label":"human","content":"likes go"}}`,
		`{"tool_name":"response","tool_args":{"message":"noted"}}`,
	}}
	reg := NewRegistry(nil)
	if err := reg.Register(memoryAppendStub{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	mem := &fakeMemory{}
	loop := New(provider, reg, mem, LoopConfig{})

	turn, err := loop.Run(context.Background(), nil, "remember this")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if turn.Reply != "noted" {
		t.Fatalf("unexpected reply %q", turn.Reply)
	}
	if len(mem.commits) != 1 || mem.commits[0] != "Auto-snapshot after tool memory_append" {
		t.Fatalf("expected one auto-snapshot commit, got %+v", mem.commits)
	}
}

type memoryAppendStub struct{}

func (memoryAppendStub) Name() string        { return "memory_append" }
func (memoryAppendStub) Description() string { return "appends to a memory block" }
func (memoryAppendStub) RiskLevel() RiskLevel { return RiskLow }
func (memoryAppendStub) Schema() Schema {
	return Schema{Type: "object", Properties: map[string]Property{
		"label":   {Type: "string"},
		"content": {Type: "string"},
	}, Required: []string{"label", "content"}}
}
func (memoryAppendStub) Invoke(_ context.Context, args json.RawMessage) (string, error) {
	return "ok", nil
}
