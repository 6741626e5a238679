package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// supplementalPathDirs are appended to $PATH when resolving a configured
// MCP server's command, so a server installed outside the process's own
// PATH (common for GUI-launched or daemonized agents) is still found.
var supplementalPathDirs = []string{
	"/opt/homebrew/bin",
	"/opt/homebrew/sbin",
	"/usr/local/bin",
	"/usr/bin",
	"/bin",
	"/usr/sbin",
	"/sbin",
}

// resolveExecutable finds command on an augmented PATH. If command already
// contains a path separator it's used as-is (matching exec.LookPath's own
// rule); otherwise every directory in $PATH, then supplementalPathDirs, is
// searched in order.
func resolveExecutable(command string) (string, error) {
	if strings.ContainsRune(command, os.PathSeparator) {
		return command, nil
	}
	searchPath := os.Getenv("PATH")
	dirs := append(filepath.SplitList(searchPath), supplementalPathDirs...)
	for _, dir := range dirs {
		candidate := filepath.Join(dir, command)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("mcp: executable %q not found on PATH or %v", command, supplementalPathDirs)
}

// StdioTransport spawns an MCP server as a child process and speaks
// newline-delimited JSON-RPC 2.0 over its stdin/stdout.
type StdioTransport struct {
	config *ServerConfig
	logger *slog.Logger

	process *exec.Cmd
	stdin   io.WriteCloser

	pendingMu sync.Mutex
	pending   map[int64]chan *JSONRPCResponse

	events chan *JSONRPCNotification
	nextID atomic.Int64

	connected atomic.Bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewStdioTransport builds a transport for the given server config. It
// does not spawn the process — call Start for that.
func NewStdioTransport(cfg *ServerConfig, logger *slog.Logger) *StdioTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &StdioTransport{
		config:  cfg,
		logger:  logger.With("component", "mcp_stdio", "server", cfg.Name),
		pending: make(map[int64]chan *JSONRPCResponse),
		events:  make(chan *JSONRPCNotification, 64),
	}
}

// Start spawns the child process and begins reading its stdout.
func (t *StdioTransport) Start(ctx context.Context) error {
	resolved, err := resolveExecutable(t.config.Command)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, resolved, t.config.Args...)
	cmd.Env = os.Environ()
	for k, v := range t.config.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", t.config.Command, err)
	}

	t.process = cmd
	t.stdin = stdin
	t.stopChan = make(chan struct{})
	t.connected.Store(true)

	t.wg.Add(2)
	go t.readLoop(stdout)
	go t.logStderr(stderr)

	return nil
}

// readLoop consumes newline-delimited JSON-RPC messages. A single line
// larger than maxBufferBytes is drained up to its next newline and
// dropped with a warning, rather than discarding every byte currently
// buffered — so one oversized line desyncs only itself.
func (t *StdioTransport) readLoop(stdout io.Reader) {
	defer t.wg.Done()
	reader := bufio.NewReaderSize(stdout, 64*1024)

	for {
		line, err := t.readLineBounded(reader)
		if err != nil {
			if err != io.EOF {
				t.logger.Warn("stdout read loop ended", "error", err)
			}
			t.connected.Store(false)
			t.failAllPending(fmt.Errorf("transport closed: %w", err))
			return
		}
		if len(line) == 0 {
			continue
		}
		t.processLine(line)
	}
}

// readLineBounded reads one line, draining (without buffering) any excess
// past maxBufferBytes rather than growing without limit.
func (t *StdioTransport) readLineBounded(reader *bufio.Reader) ([]byte, error) {
	chunk, err := reader.ReadSlice('\n')
	out := append([]byte(nil), chunk...)
	for err == bufio.ErrBufferFull && len(out) <= maxBufferBytes {
		chunk, err = reader.ReadSlice('\n')
		out = append(out, chunk...)
	}
	if len(out) > maxBufferBytes {
		t.logger.Warn("line exceeded buffer, draining to next newline", "limit", maxBufferBytes)
		for err == bufio.ErrBufferFull {
			_, err = reader.ReadSlice('\n')
		}
		if err != nil && err != io.EOF {
			return nil, err
		}
		return nil, nil
	}
	return out, err
}

func (t *StdioTransport) processLine(line []byte) {
	var raw rawLine
	if err := json.Unmarshal(line, &raw); err != nil {
		t.logger.Warn("failed to decode line", "error", err)
		return
	}

	if raw.ID != nil {
		resp := &JSONRPCResponse{JSONRPC: raw.JSONRPC, ID: *raw.ID, Result: raw.Result, Error: raw.Error}
		t.pendingMu.Lock()
		ch, ok := t.pending[*raw.ID]
		if ok {
			delete(t.pending, *raw.ID)
		}
		t.pendingMu.Unlock()
		if ok {
			ch <- resp
		}
		return
	}

	if raw.Method != "" {
		notif := &JSONRPCNotification{JSONRPC: raw.JSONRPC, Method: raw.Method, Params: raw.Params}
		select {
		case t.events <- notif:
		default:
			t.logger.Warn("dropping notification, events channel full", "method", raw.Method)
		}
	}
}

func (t *StdioTransport) logStderr(stderr io.Reader) {
	defer t.wg.Done()
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		t.logger.Debug("server stderr", "line", scanner.Text())
	}
}

// Call sends a request and blocks until its response arrives, the context
// is cancelled, or 30 seconds elapse.
func (t *StdioTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !t.connected.Load() {
		return nil, fmt.Errorf("mcp: transport not connected")
	}

	id := t.nextID.Add(1)
	respCh := make(chan *JSONRPCResponse, 1)
	t.pendingMu.Lock()
	t.pending[id] = respCh
	t.pendingMu.Unlock()

	req := JSONRPCRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		t.removePending(id)
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	body = append(body, '\n')

	if _, err := t.stdin.Write(body); err != nil {
		t.removePending(id)
		return nil, fmt.Errorf("write request: %w", err)
	}

	timer := time.NewTimer(30 * time.Second)
	defer timer.Stop()

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		t.removePending(id)
		return nil, ctx.Err()
	case <-timer.C:
		t.removePending(id)
		return nil, fmt.Errorf("mcp: request %q timed out after 30s", method)
	case <-t.stopChan:
		t.removePending(id)
		return nil, fmt.Errorf("mcp: transport closing")
	}
}

// Notify sends a message with no id and does not wait for a reply.
func (t *StdioTransport) Notify(_ context.Context, method string, params any) error {
	if !t.connected.Load() {
		return fmt.Errorf("mcp: transport not connected")
	}
	notif := JSONRPCNotification{JSONRPC: "2.0", Method: method, Params: params}
	body, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	body = append(body, '\n')
	_, err = t.stdin.Write(body)
	return err
}

// Events returns incoming server-initiated notifications.
func (t *StdioTransport) Events() <-chan *JSONRPCNotification { return t.events }

// Close terminates the child process and releases resources.
func (t *StdioTransport) Close() error {
	if !t.connected.CompareAndSwap(true, false) {
		return nil
	}
	close(t.stopChan)
	_ = t.stdin.Close()
	if t.process != nil && t.process.Process != nil {
		_ = t.process.Process.Kill()
	}
	t.wg.Wait()
	t.failAllPending(fmt.Errorf("mcp: transport closed"))
	return nil
}

func (t *StdioTransport) removePending(id int64) {
	t.pendingMu.Lock()
	delete(t.pending, id)
	t.pendingMu.Unlock()
}

func (t *StdioTransport) failAllPending(err error) {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	for id, ch := range t.pending {
		ch <- &JSONRPCResponse{ID: id, Error: &JSONRPCError{Code: -1, Message: err.Error()}}
		delete(t.pending, id)
	}
}
