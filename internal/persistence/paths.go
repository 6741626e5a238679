package persistence

import "path/filepath"

// Layout resolves the on-disk paths for every kind of persisted state,
// rooted at a single base directory (typically ~/.lucerna).
type Layout struct {
	BaseDir string
}

func (l Layout) CoreMemoryFile(agentID string) string {
	return filepath.Join(l.BaseDir, "core_memory_"+agentID+".json")
}

func (l Layout) MemoryVersionFile(id string) string {
	return filepath.Join(l.BaseDir, "memory_versions", "v_"+shortID(id)+".json")
}

func (l Layout) MemoryVersionsDir() string {
	return filepath.Join(l.BaseDir, "memory_versions")
}

// MCPServersFile resolves the mcp_servers.json path. An empty name falls
// back to the default filename; a name that's already absolute (an
// operator-configured path outside BaseDir) is returned unchanged.
func (l Layout) MCPServersFile(name string) string {
	if name == "" {
		name = "mcp_servers.json"
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(l.BaseDir, name)
}

func (l Layout) SessionFile(sessionID string) string {
	return filepath.Join(l.BaseDir, "sessions", sessionID+".json")
}

func shortID(id string) string {
	if len(id) > 16 {
		return id[:16]
	}
	return id
}
