package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Client wraps a Transport with the MCP handshake and tool-calling
// convenience methods. One Client exists per connected server.
type Client struct {
	name      string
	transport Transport
	logger    *slog.Logger

	tools []ToolInfo
}

// NewClient wraps an already-constructed transport.
func NewClient(name string, transport Transport, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{name: name, transport: transport, logger: logger.With("component", "mcp_client", "server", name)}
}

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      clientInfo     `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

const protocolVersion = "2024-11-05"

// Initialize performs the initialize -> notifications/initialized ->
// tools/list handshake and populates Tools().
func (c *Client) Initialize(ctx context.Context) error {
	params := initializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      clientInfo{Name: "lucerna", Version: "0.1.0"},
	}
	if _, err := c.transport.Call(ctx, "initialize", params); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if err := c.transport.Notify(ctx, "notifications/initialized", nil); err != nil {
		return fmt.Errorf("notifications/initialized: %w", err)
	}
	return c.RefreshTools(ctx)
}

// RefreshTools re-fetches the server's tool catalog.
func (c *Client) RefreshTools(ctx context.Context) error {
	raw, err := c.transport.Call(ctx, "tools/list", map[string]any{})
	if err != nil {
		return fmt.Errorf("tools/list: %w", err)
	}
	var result struct {
		Tools []ToolInfo `json:"tools"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("decode tools/list: %w", err)
	}
	c.tools = result.Tools
	return nil
}

// Tools returns the last-fetched tool catalog.
func (c *Client) Tools() []ToolInfo { return c.tools }

// CallTool invokes name with args and returns the tool's textual result.
// Any argument value that arrived as a JSON string but whose schema
// property declares a non-string type is coerced before the call goes out
// over the wire, per the string-typed tool-call boundary.
func (c *Client) CallTool(ctx context.Context, name string, args json.RawMessage) (string, error) {
	coerced := orEmptyObject(args)
	for _, info := range c.tools {
		if info.Name == name {
			coerced = coerceArgs(coerced, info.InputSchema)
			break
		}
	}
	params := map[string]any{"name": name, "arguments": coerced}
	raw, err := c.transport.Call(ctx, "tools/call", params)
	if err != nil {
		return "", err
	}
	return parseToolCallResult(raw)
}

// coerceArgs rewrites any string-valued field in args whose inputSchema
// property declares integer/number/boolean/array/object, parsing the
// string per the spec's coercion rule. Fields already in their schema's
// native JSON type, or with no matching schema property, pass through
// unchanged.
func coerceArgs(args json.RawMessage, inputSchema json.RawMessage) json.RawMessage {
	if len(inputSchema) == 0 {
		return args
	}
	var schema struct {
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(inputSchema, &schema); err != nil || len(schema.Properties) == 0 {
		return args
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(args, &decoded); err != nil {
		return args
	}

	for key, prop := range schema.Properties {
		raw, ok := decoded[key]
		if !ok {
			continue
		}
		var asString string
		if err := json.Unmarshal(raw, &asString); err != nil {
			continue // not a JSON string; already typed, leave as-is
		}
		switch prop.Type {
		case "integer", "number":
			if n, err := strconv.ParseFloat(asString, 64); err == nil {
				if b, err := json.Marshal(n); err == nil {
					decoded[key] = b
				}
			}
		case "boolean":
			if asString == "true" || asString == "false" {
				decoded[key] = json.RawMessage(asString)
			}
		case "array", "object":
			var probe any
			if json.Unmarshal([]byte(asString), &probe) == nil {
				decoded[key] = json.RawMessage(asString)
			}
		}
	}

	out, err := json.Marshal(decoded)
	if err != nil {
		return args
	}
	return out
}

func orEmptyObject(args json.RawMessage) json.RawMessage {
	if len(args) == 0 {
		return json.RawMessage(`{}`)
	}
	return args
}

// parseToolCallResult extracts a textual rendering from an MCP tools/call
// result. Each content block contributes per its MIME-like type: "text"
// contributes its text, "image" the literal "[image data]", "resource"
// "[resource: <uri>]"; unrecognized types are skipped. Recognized blocks
// are joined with "\n". If no block was recognized, it falls back to the
// result's top-level "text" field, and failing that to a pretty-printed
// dump of the whole result.
func parseToolCallResult(raw json.RawMessage) (string, error) {
	var result struct {
		Content []struct {
			Type     string `json:"type"`
			Text     string `json:"text"`
			URI      string `json:"uri"`
			Resource struct {
				URI string `json:"uri"`
			} `json:"resource"`
		} `json:"content"`
		Text    string `json:"text"`
		IsError bool   `json:"isError"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("decode tools/call result: %w", err)
	}

	var lines []string
	for _, block := range result.Content {
		switch block.Type {
		case "text":
			lines = append(lines, block.Text)
		case "image":
			lines = append(lines, "[image data]")
		case "resource":
			uri := block.URI
			if uri == "" {
				uri = block.Resource.URI
			}
			lines = append(lines, fmt.Sprintf("[resource: %s]", uri))
		}
	}

	out := strings.Join(lines, "\n")
	if len(lines) == 0 {
		if result.Text != "" {
			out = result.Text
		} else if pretty, err := json.MarshalIndent(json.RawMessage(raw), "", "  "); err == nil {
			out = string(pretty)
		}
	}

	if result.IsError {
		return out, fmt.Errorf("mcp tool returned an error: %s", out)
	}
	return out, nil
}

// Close tears down the underlying transport.
func (c *Client) Close() error { return c.transport.Close() }
