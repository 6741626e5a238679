package fs

import (
	"context"
	"encoding/json"
	"testing"
)

func TestTool_WriteReadList(t *testing.T) {
	dir := t.TempDir()
	tool := &Tool{Root: dir}

	_, err := tool.Invoke(context.Background(), json.RawMessage(`{"operation":"write","path":"note.txt","content":"hello"}`))
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := tool.Invoke(context.Background(), json.RawMessage(`{"operation":"read","path":"note.txt"}`))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out != "hello" {
		t.Fatalf("unexpected content %q", out)
	}

	listing, err := tool.Invoke(context.Background(), json.RawMessage(`{"operation":"list","path":"."}`))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if listing != "note.txt" {
		t.Fatalf("unexpected listing %q", listing)
	}
}

func TestTool_RejectsPathEscape(t *testing.T) {
	dir := t.TempDir()
	tool := &Tool{Root: dir}

	_, err := tool.Invoke(context.Background(), json.RawMessage(`{"operation":"read","path":"../../etc/passwd"}`))
	if err == nil {
		t.Fatal("expected an escape to be rejected")
	}
}
