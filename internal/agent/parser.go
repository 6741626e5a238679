package agent

import (
	"encoding/json"
	"strings"
)

// rawToolCall mirrors the model-facing grammar: a JSON object embedded in
// assistant prose carrying a tool_name and a tool_args object.
type rawToolCall struct {
	ToolName string          `json:"tool_name"`
	ToolArgs json.RawMessage `json:"tool_args"`
}

// ExtractToolCalls scans assistant text for embedded {"tool_name":...,
// "tool_args":...} objects. It returns the calls found, in order, and the
// text with those JSON fragments removed (trimmed), which is what gets
// shown to the user when the turn produces only a plain reply.
//
// The grammar is heuristic by design (spec section 9 marks a stricter
// fenced-block grammar as merely preferable, not mandatory): a JSON object
// is recognized as a tool call only if it decodes cleanly and carries a
// non-empty tool_name, so ordinary prose containing braces is left alone.
func ExtractToolCalls(text string) ([]ToolCall, string) {
	var calls []ToolCall
	var remainder strings.Builder

	i := 0
	for i < len(text) {
		if text[i] != '{' {
			remainder.WriteByte(text[i])
			i++
			continue
		}
		end := matchingBrace(text, i)
		if end == -1 {
			remainder.WriteByte(text[i])
			i++
			continue
		}
		candidate := text[i : end+1]
		var raw rawToolCall
		if err := json.Unmarshal([]byte(candidate), &raw); err == nil && raw.ToolName != "" {
			args := raw.ToolArgs
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			calls = append(calls, ToolCall{Name: raw.ToolName, Args: args})
			i = end + 1
			continue
		}
		remainder.WriteString(candidate)
		i = end + 1
	}

	return calls, strings.TrimSpace(remainder.String())
}

// matchingBrace returns the index of the '{' at start's matching '}',
// respecting string literals so braces inside quoted strings don't throw
// off the depth count. Returns -1 if the braces never balance.
func matchingBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
