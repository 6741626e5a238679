package mcp

import "strings"

// SanitizeToolName namespaces a server's tool name as
// mcp_<sanitized-server>_<sanitized-tool> so tools from different servers
// can't collide in the shared registry, and produces a name that satisfies
// the registry's [a-z0-9_]+ pattern regardless of what the server
// advertised.
//
// SanitizeToolName is stable under re-application: sanitizing an
// already-sanitized name for the same server yields the same string, so
// callers never have to track whether a name has already passed through
// here.
func SanitizeToolName(serverName, toolName string) string {
	prefix := "mcp_" + sanitizeFragment(serverName)
	if strings.HasPrefix(toolName, prefix+"_") {
		return toolName
	}
	return prefix + "_" + sanitizeFragment(toolName)
}

func sanitizeFragment(s string) string {
	s = strings.ToLower(s)
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	out := sb.String()
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	return strings.Trim(out, "_")
}
