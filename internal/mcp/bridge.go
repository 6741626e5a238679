package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"

	"github.com/lucerna-ai/lucerna/internal/agent"
)

// connection tracks one server's lifecycle state alongside its client.
type connection struct {
	mu     sync.Mutex
	cfg    ServerConfig
	state  State
	client *Client
}

// Bridge owns every configured MCP server connection and mirrors their
// tools into a shared tool registry under namespaced names.
type Bridge struct {
	mu          sync.RWMutex
	connections map[string]*connection
	registry    *agent.Registry
	connectOnce singleflight.Group
	logger      *slog.Logger
	configPath  string
	watcher     *fsnotify.Watcher
}

// NewBridge loads configPath (an mcp_servers.json object, see
// serverConfigFile) and starts
// watching it for changes. Servers are not connected until a tool call
// needs them.
func NewBridge(registry *agent.Registry, configPath string, logger *slog.Logger) (*Bridge, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		connections: make(map[string]*connection),
		registry:    registry,
		logger:      logger.With("component", "mcp_bridge"),
		configPath:  configPath,
	}

	if err := b.reloadConfig(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if werr := watcher.Add(configPath); werr == nil {
			b.watcher = watcher
			go b.watchConfig()
		} else {
			_ = watcher.Close()
		}
	}

	return b, nil
}

func (b *Bridge) watchConfig() {
	for {
		select {
		case ev, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := b.reloadConfig(); err != nil {
					b.logger.Warn("reload mcp config failed", "error", err)
				}
			}
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			b.logger.Warn("config watcher error", "error", err)
		}
	}
}

// serverConfigFile is the on-disk shape of mcp_servers.json:
// {"mcpServers": {"<name>": {"command":..., "args":[...], "env":{...}}}}.
type serverConfigFile struct {
	McpServers map[string]struct {
		Command string            `json:"command"`
		Args    []string          `json:"args,omitempty"`
		Env     map[string]string `json:"env,omitempty"`
	} `json:"mcpServers"`
}

func (b *Bridge) reloadConfig() error {
	data, err := os.ReadFile(b.configPath)
	if err != nil {
		return err
	}
	var file serverConfigFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("decode %s: %w", b.configPath, err)
	}

	seen := make(map[string]bool, len(file.McpServers))
	b.mu.Lock()
	for name, entry := range file.McpServers {
		cfg := ServerConfig{Name: name, Command: entry.Command, Args: entry.Args, Env: entry.Env}
		seen[name] = true
		if existing, ok := b.connections[name]; ok {
			existing.mu.Lock()
			existing.cfg = cfg
			existing.mu.Unlock()
			continue
		}
		b.connections[name] = &connection{cfg: cfg, state: StateDisconnected}
	}
	var removed []string
	for name := range b.connections {
		if !seen[name] {
			removed = append(removed, name)
		}
	}
	b.mu.Unlock()

	for _, name := range removed {
		_ = b.Disconnect(name)
		b.mu.Lock()
		delete(b.connections, name)
		b.mu.Unlock()
	}
	return nil
}

// connectTimeout bounds an on-demand reconnect so a hung or slow-starting
// MCP child can't block the calling turn indefinitely.
const connectTimeout = 5 * time.Second

// EnsureConnected connects to name if it isn't already ready, coalescing
// concurrent attempts for the same server into a single dial bounded by
// connectTimeout.
func (b *Bridge) EnsureConnected(ctx context.Context, name string) (*Client, error) {
	b.mu.RLock()
	conn, ok := b.connections[name]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("mcp: unknown server %q", name)
	}

	conn.mu.Lock()
	if conn.state == StateReady && conn.client != nil {
		client := conn.client
		conn.mu.Unlock()
		return client, nil
	}
	conn.mu.Unlock()

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	result, err, _ := b.connectOnce.Do(name, func() (any, error) {
		return b.connect(connectCtx, conn)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Client), nil
}

func (b *Bridge) connect(ctx context.Context, conn *connection) (*Client, error) {
	conn.mu.Lock()
	conn.state = StateConnecting
	cfg := conn.cfg
	conn.mu.Unlock()

	transport := NewStdioTransport(&cfg, b.logger)
	if err := transport.Start(ctx); err != nil {
		conn.mu.Lock()
		conn.state = StateDisconnected
		conn.mu.Unlock()
		return nil, fmt.Errorf("mcp: spawn %s: %w", cfg.Name, err)
	}

	conn.mu.Lock()
	conn.state = StateInitializing
	conn.mu.Unlock()

	client := NewClient(cfg.Name, transport, b.logger)
	if err := client.Initialize(ctx); err != nil {
		_ = transport.Close()
		conn.mu.Lock()
		conn.state = StateDisconnected
		conn.mu.Unlock()
		return nil, fmt.Errorf("mcp: initialize %s: %w", cfg.Name, err)
	}

	conn.mu.Lock()
	conn.client = client
	conn.state = StateReady
	conn.mu.Unlock()

	b.registerTools(cfg.Name, client)
	return client, nil
}

func (b *Bridge) registerTools(serverName string, client *Client) {
	if b.registry == nil {
		return
	}
	for _, ti := range client.Tools() {
		t := &mcpTool{
			bridge:     b,
			serverName: serverName,
			info:       ti,
			name:       SanitizeToolName(serverName, ti.Name),
		}
		if err := b.registry.Register(t); err != nil {
			b.logger.Warn("failed to register mcp tool", "server", serverName, "tool", ti.Name, "error", err)
		}
	}
}

// Disconnect tears down a server's connection and unregisters its tools.
func (b *Bridge) Disconnect(name string) error {
	b.mu.RLock()
	conn, ok := b.connections[name]
	b.mu.RUnlock()
	if !ok {
		return nil
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.state == StateDisconnected {
		return nil
	}
	conn.state = StateTerminating
	if conn.client != nil {
		for _, ti := range conn.client.Tools() {
			b.registry.Unregister(SanitizeToolName(name, ti.Name))
		}
		_ = conn.client.Close()
		conn.client = nil
	}
	conn.state = StateDisconnected
	return nil
}

// Close tears down every connection and stops watching the config file.
func (b *Bridge) Close() error {
	b.mu.RLock()
	names := make([]string, 0, len(b.connections))
	for n := range b.connections {
		names = append(names, n)
	}
	b.mu.RUnlock()

	for _, n := range names {
		_ = b.Disconnect(n)
	}
	if b.watcher != nil {
		return b.watcher.Close()
	}
	return nil
}

// mcpTool adapts a remote MCP tool to the local agent.Tool interface,
// connecting its server on first use.
type mcpTool struct {
	bridge     *Bridge
	serverName string
	info       ToolInfo
	name       string
}

func (t *mcpTool) Name() string               { return t.name }
func (t *mcpTool) Description() string        { return t.info.Description }
func (t *mcpTool) RiskLevel() agent.RiskLevel { return agent.RiskMedium }

func (t *mcpTool) Schema() agent.Schema {
	if len(t.info.InputSchema) == 0 {
		return agent.Schema{Type: "object"}
	}
	var decoded struct {
		Type       string                    `json:"type"`
		Properties map[string]agent.Property `json:"properties"`
		Required   []string                  `json:"required"`
	}
	if err := json.Unmarshal(t.info.InputSchema, &decoded); err != nil {
		return agent.Schema{Type: "object"}
	}
	return agent.Schema{Type: orObject(decoded.Type), Properties: decoded.Properties, Required: decoded.Required}
}

func orObject(t string) string {
	if t == "" {
		return "object"
	}
	return t
}

func (t *mcpTool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	client, err := t.bridge.EnsureConnected(ctx, t.serverName)
	if err != nil {
		return "", err
	}
	return client.CallTool(ctx, t.info.Name, args)
}
