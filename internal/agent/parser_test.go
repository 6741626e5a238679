package agent

import "testing"

func TestExtractToolCalls_SingleCall(t *testing.T) {
	text := `Sure, let me check that. {"tool_name": "weather", "tool_args": {"city": "Lisbon"}}`
	calls, remainder := ExtractToolCalls(text)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Name != "weather" {
		t.Fatalf("unexpected tool name %q", calls[0].Name)
	}
	if remainder != "Sure, let me check that." {
		t.Fatalf("unexpected remainder %q", remainder)
	}
}

func TestExtractToolCalls_IgnoresProseBraces(t *testing.T) {
	text := `The set {1, 2, 3} has three elements.`
	calls, remainder := ExtractToolCalls(text)
	if len(calls) != 0 {
		t.Fatalf("expected 0 calls, got %d", len(calls))
	}
	if remainder != text {
		t.Fatalf("remainder should be unchanged, got %q", remainder)
	}
}

func TestExtractToolCalls_MultipleCalls(t *testing.T) {
	text := `{"tool_name": "a", "tool_args": {}} and then {"tool_name": "b", "tool_args": {"x": 1}}`
	calls, _ := ExtractToolCalls(text)
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].Name != "a" || calls[1].Name != "b" {
		t.Fatalf("unexpected order/names: %+v", calls)
	}
}

func TestExtractToolCalls_NestedBracesInArgs(t *testing.T) {
	text := `{"tool_name": "nested", "tool_args": {"obj": {"inner": {"deep": 1}}}}`
	calls, _ := ExtractToolCalls(text)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
}

func TestExtractToolCalls_BraceInsideStringLiteral(t *testing.T) {
	text := `{"tool_name": "echo", "tool_args": {"msg": "a } b"}}`
	calls, _ := ExtractToolCalls(text)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call despite brace in string, got %d", len(calls))
	}
}
