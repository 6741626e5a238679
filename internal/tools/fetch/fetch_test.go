package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTool_FetchesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "hello from origin")
	}))
	defer srv.Close()

	tool := &Tool{}
	out, err := tool.Invoke(context.Background(), json.RawMessage(fmt.Sprintf(`{"url":%q}`, srv.URL)))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out != "hello from origin" {
		t.Fatalf("unexpected body %q", out)
	}
}

func TestTool_StatusErrorStillReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "not found")
	}))
	defer srv.Close()

	tool := &Tool{}
	out, err := tool.Invoke(context.Background(), json.RawMessage(fmt.Sprintf(`{"url":%q}`, srv.URL)))
	if err == nil {
		t.Fatal("expected a 404 to surface as an error")
	}
	if out != "not found" {
		t.Fatalf("unexpected body %q", out)
	}
}

func TestTool_TruncatesOversizedBody(t *testing.T) {
	big := strings.Repeat("a", maxBodyBytes+1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, big)
	}))
	defer srv.Close()

	tool := &Tool{}
	out, err := tool.Invoke(context.Background(), json.RawMessage(fmt.Sprintf(`{"url":%q}`, srv.URL)))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if len(out) != maxBodyBytes {
		t.Fatalf("expected body capped at %d bytes, got %d", maxBodyBytes, len(out))
	}
}

func TestTool_RejectsEmptyURL(t *testing.T) {
	tool := &Tool{}
	if _, err := tool.Invoke(context.Background(), json.RawMessage(`{"url":""}`)); err == nil {
		t.Fatal("expected empty url to be rejected")
	}
}
