package persistence

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/lucerna-ai/lucerna/internal/memory"
)

// debounceWindow bounds how often a single agent's block set is actually
// written to disk when mutated repeatedly in quick succession.
const debounceWindow = 2 * time.Second

// FileBlockStore implements memory.BlockStore over JSON files, debouncing
// writes so a burst of Append calls costs one file write, not N.
type FileBlockStore struct {
	layout Layout
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]map[string]memory.Block
	timers  map[string]*time.Timer
}

// NewFileBlockStore builds a block store rooted at layout.BaseDir.
func NewFileBlockStore(layout Layout, logger *slog.Logger) *FileBlockStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileBlockStore{
		layout:  layout,
		logger:  logger.With("component", "memory_block_store"),
		pending: make(map[string]map[string]memory.Block),
		timers:  make(map[string]*time.Timer),
	}
}

// Save schedules a debounced write of agentID's block set. The most recent
// call within the debounce window wins; Flush forces it immediately.
func (s *FileBlockStore) Save(agentID string, blocks map[string]memory.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[agentID] = blocks
	if t, ok := s.timers[agentID]; ok {
		t.Reset(debounceWindow)
		return
	}
	s.timers[agentID] = time.AfterFunc(debounceWindow, func() { s.flush(agentID) })
}

// Flush writes agentID's pending block set immediately, if any is pending.
func (s *FileBlockStore) Flush(agentID string) error {
	s.mu.Lock()
	if t, ok := s.timers[agentID]; ok {
		t.Stop()
		delete(s.timers, agentID)
	}
	s.mu.Unlock()
	return s.flush(agentID)
}

func (s *FileBlockStore) flush(agentID string) error {
	s.mu.Lock()
	blocks, ok := s.pending[agentID]
	delete(s.pending, agentID)
	delete(s.timers, agentID)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	list := make([]memory.Block, 0, len(blocks))
	for _, b := range blocks {
		list = append(list, b)
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		s.logger.Error("marshal blocks failed", "agent", agentID, "error", err)
		return err
	}
	if err := WriteFileAtomic(s.layout.CoreMemoryFile(agentID), data, 0o600); err != nil {
		s.logger.Error("write blocks failed", "agent", agentID, "error", err)
		return err
	}
	return nil
}

// Load reads agentID's persisted block set, returning an empty map (not an
// error) if nothing has been saved yet.
func (s *FileBlockStore) Load(agentID string) (map[string]memory.Block, error) {
	data, err := ReadFileOrEmpty(s.layout.CoreMemoryFile(agentID))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var list []memory.Block
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	blocks := make(map[string]memory.Block, len(list))
	for _, b := range list {
		blocks[b.Label] = b
	}
	return blocks, nil
}
