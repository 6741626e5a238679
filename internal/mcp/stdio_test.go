package mcp

import (
	"context"
	"testing"
	"time"
)

// echoScript is a minimal JSON-RPC peer: for every request line it reads,
// it writes back a response carrying the same id and a fixed result.
const echoScript = `while IFS= read -r line; do
  id=$(printf '%s' "$line" | sed -E 's/.*"id":([0-9]+).*/\1/')
  printf '{"jsonrpc":"2.0","id":%s,"result":{"ok":true}}\n' "$id"
done`

func TestStdioTransport_CallRoundTrip(t *testing.T) {
	cfg := &ServerConfig{Command: "sh", Args: []string{"-c", echoScript}, Name: "echo-server"}
	tr := NewStdioTransport(cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := tr.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer tr.Close()

	result, err := tr.Call(ctx, "ping", map[string]any{})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if string(result) == "" {
		t.Fatal("expected a non-empty result")
	}
}

func TestStdioTransport_CloseFailsPending(t *testing.T) {
	cfg := &ServerConfig{Command: "sh", Args: []string{"-c", "sleep 5"}, Name: "slow-server"}
	tr := NewStdioTransport(cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := tr.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := tr.Call(context.Background(), "ping", nil)
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)
	_ = tr.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected call to fail after close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("call did not return after close")
	}
}
