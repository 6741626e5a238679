package memory

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// BlockStore persists the live block set. Save is expected to be debounced
// internally by the implementation (see internal/persistence) so callers
// can call it on every mutation without worrying about write amplification.
type BlockStore interface {
	Save(agentID string, blocks map[string]Block)
	Load(agentID string) (map[string]Block, error)
}

// VersionStore persists individual version snapshots.
type VersionStore interface {
	Save(v *Version) error
	Load(id string) (*Version, error)
}

// CoreMemory is the agent-callable core memory surface for one agent
// identity: a live block set plus a content-addressed version chain.
type CoreMemory struct {
	mu       sync.RWMutex
	agentID  string
	blocks   map[string]Block
	chain    []*Version // newest last; bounded to ringBufferCap
	headID   string
	blockStore   BlockStore
	versionStore VersionStore
	logger   *slog.Logger
}

// DefaultBlocks seeds a fresh agent identity with the blocks every agent
// starts with: persona, human and short_term are mutable working memory;
// system and capabilities are read-only and seeded once at bootstrap.
func DefaultBlocks() map[string]Block {
	return map[string]Block{
		"persona": {
			Label:       "persona",
			Value:       "",
			Limit:       2000,
			Description: "who the agent is and how it behaves",
		},
		"human": {
			Label:       "human",
			Value:       "",
			Limit:       2000,
			Description: "what the agent knows about the person it's talking to",
		},
		"short_term": {
			Label:       "short_term",
			Value:       "",
			Limit:       1500,
			Description: "working notes for the current session, cleared between sessions",
		},
		"knowledge": {
			Label:       "knowledge",
			Value:       "",
			Limit:       3000,
			Description: "durable facts and preferences accumulated across sessions",
		},
		"system": {
			Label:       "system",
			Value:       "You are a local personal agent. Use the available tools to act; call response to finish a turn.",
			Limit:       1000,
			Description: "fixed operating instructions for the agent",
			ReadOnly:    true,
		},
		"capabilities": {
			Label:       "capabilities",
			Value:       "",
			Limit:       2000,
			Description: "a summary of the tools and integrations currently available",
			ReadOnly:    true,
		},
	}
}

// New builds a CoreMemory for agentID, loading any persisted block set.
// If none exists, DefaultBlocks seeds it.
func New(agentID string, blockStore BlockStore, versionStore VersionStore, logger *slog.Logger) (*CoreMemory, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cm := &CoreMemory{
		agentID:      agentID,
		blockStore:   blockStore,
		versionStore: versionStore,
		logger:       logger.With("component", "core_memory", "agent", agentID),
	}

	loaded, err := blockStore.Load(agentID)
	if err != nil {
		return nil, fmt.Errorf("load blocks for %s: %w", agentID, err)
	}
	if len(loaded) == 0 {
		loaded = DefaultBlocks()
	}
	cm.blocks = loaded
	return cm, nil
}

// Get returns the named block.
func (cm *CoreMemory) Get(label string) (Block, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	b, ok := cm.blocks[label]
	return b, ok
}

// List returns every block, sorted by label.
func (cm *CoreMemory) List() []Block {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	out := make([]Block, 0, len(cm.blocks))
	for _, b := range cm.blocks {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Snapshot returns an immutable copy of the current block set without
// taking the write path — safe for read-only consumers like a debugging
// CLI command or the compiled prompt.
func (cm *CoreMemory) Snapshot() map[string]Block {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cloneBlocks(cm.blocks)
}

// Stats reports per-block utilization so callers can warn before an Append
// would reject with OverLimit.
type Stats struct {
	Label          string
	Used           int
	Limit          int
	UtilizationPct float64
}

func (cm *CoreMemory) Stats() []Stats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	out := make([]Stats, 0, len(cm.blocks))
	for _, b := range cm.blocks {
		pct := 0.0
		if b.Limit > 0 {
			pct = 100 * float64(len(b.Value)) / float64(b.Limit)
		}
		out = append(out, Stats{Label: b.Label, Used: len(b.Value), Limit: b.Limit, UtilizationPct: pct})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Create adds a new block with an empty value. If the label already exists
// it changes nothing and returns an already_exists *Error; the
// memory_create tool reports that case as a no-op.
func (cm *CoreMemory) Create(label, description string, limit int, readOnly bool) error {
	return cm.CreateWithValue(label, "", description, limit, readOnly)
}

// CreateWithValue is Create plus an initial value, for callers (the
// memory_create tool, inherit) that need to seed non-empty content at
// creation time.
func (cm *CoreMemory) CreateWithValue(label, value, description string, limit int, readOnly bool) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if _, exists := cm.blocks[label]; exists {
		return &Error{Kind: ErrKindAlreadyExists, Label: label}
	}
	cm.blocks[label] = Block{Label: label, Value: value, Description: description, Limit: limit, ReadOnly: readOnly}
	cm.persistBlocks()
	return nil
}

// Append grows a block's value, rejecting the mutation if the result would
// exceed the block's limit or if the block is read-only.
func (cm *CoreMemory) Append(label, value string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	b, ok := cm.blocks[label]
	if !ok {
		return &Error{Kind: ErrKindNotFound, Label: label}
	}
	if b.ReadOnly {
		return &Error{Kind: ErrKindReadOnly, Label: label}
	}
	next := b.Value + value
	if b.Limit > 0 && len(next) > b.Limit {
		return &Error{Kind: ErrKindOverLimit, Label: label}
	}
	b.Value = next
	cm.blocks[label] = b
	cm.persistBlocks()
	return nil
}

// Replace substitutes every occurrence of old with new within a block's
// current value.
func (cm *CoreMemory) Replace(label, old, new string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	b, ok := cm.blocks[label]
	if !ok {
		return &Error{Kind: ErrKindNotFound, Label: label}
	}
	if b.ReadOnly {
		return &Error{Kind: ErrKindReadOnly, Label: label}
	}
	next := strings.ReplaceAll(b.Value, old, new)
	if b.Limit > 0 && len(next) > b.Limit {
		return &Error{Kind: ErrKindOverLimit, Label: label}
	}
	b.Value = next
	cm.blocks[label] = b
	cm.persistBlocks()
	return nil
}

// Clear empties a block's value in place.
func (cm *CoreMemory) Clear(label string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	b, ok := cm.blocks[label]
	if !ok {
		return &Error{Kind: ErrKindNotFound, Label: label}
	}
	if b.ReadOnly {
		return &Error{Kind: ErrKindReadOnly, Label: label}
	}
	b.Value = ""
	cm.blocks[label] = b
	cm.persistBlocks()
	return nil
}

// persistBlocks must be called with cm.mu held.
func (cm *CoreMemory) persistBlocks() {
	if cm.blockStore != nil {
		cm.blockStore.Save(cm.agentID, cloneBlocks(cm.blocks))
	}
}

// Compile renders every block, sorted by label, as XML-ish tags wrapping
// each block's value — the text that gets spliced into the system prompt.
func (cm *CoreMemory) Compile() string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	labels := make([]string, 0, len(cm.blocks))
	for l := range cm.blocks {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	var sb strings.Builder
	for i, l := range labels {
		if i > 0 {
			sb.WriteString("\n")
		}
		b := cm.blocks[l]
		sb.WriteString("<")
		sb.WriteString(l)
		sb.WriteString(">\n")
		sb.WriteString(b.Value)
		sb.WriteString("\n</")
		sb.WriteString(l)
		sb.WriteString(">\n")
	}
	return sb.String()
}

// Commit snapshots the current block set into the version chain. If the
// content hash matches the current head, no new version is created and the
// existing head ID is returned — commit is idempotent with respect to the
// content, not the call count.
func (cm *CoreMemory) Commit(message string) (string, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	hash := hashBlocks(cm.blocks)
	if cm.headID == hash {
		return cm.headID, nil
	}

	v := &Version{
		ID:        hash,
		ParentID:  cm.headID,
		Message:   message,
		Blocks:    cloneBlocks(cm.blocks),
		CreatedAt: time.Now(),
	}
	cm.chain = append(cm.chain, v)
	if len(cm.chain) > ringBufferCap {
		cm.chain = cm.chain[len(cm.chain)-ringBufferCap:]
	}
	cm.headID = hash

	if cm.versionStore != nil {
		if err := cm.versionStore.Save(v); err != nil {
			cm.logger.Error("persist version failed", "version", v.ID, "error", err)
		}
	}
	return hash, nil
}

// Rollback returns the block snapshot (label -> value) recorded by the
// version matching idPrefix. It does not mutate the live block set — the
// caller decides whether, and how, to apply the returned values back.
// idPrefix may be a full version id or any unambiguous prefix of one; a
// version that is no longer in the in-memory chain is found in the version
// store only by a prefix of at least 16 characters.
func (cm *CoreMemory) Rollback(idPrefix string) (map[string]string, error) {
	v, err := cm.findVersion(idPrefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(v.Blocks))
	for label, b := range v.Blocks {
		out[label] = b.Value
	}
	return out, nil
}

// ApplyRollback replaces the live block set's values with those from a
// prior version's snapshot (as returned by Rollback), preserving each
// block's current limit/description/read_only metadata. It does not create
// a new version; the caller must Commit to record the restored state.
func (cm *CoreMemory) ApplyRollback(values map[string]string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for label, value := range values {
		b, ok := cm.blocks[label]
		if !ok {
			continue
		}
		b.Value = value
		cm.blocks[label] = b
	}
	cm.persistBlocks()
}

// Log returns the version chain, newest first.
func (cm *CoreMemory) Log() []*Version {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	out := make([]*Version, len(cm.chain))
	for i, v := range cm.chain {
		out[len(cm.chain)-1-i] = v
	}
	return out
}

// ChangeKind classifies how a label's value moved between two versions in a
// Diff.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeRemoved  ChangeKind = "removed"
	ChangeModified ChangeKind = "modified"
)

// DiffEntry describes one block's change between two versions. Old/New hold
// the value present in the from/to version respectively, empty when the
// label didn't exist there (Change == added/removed).
type DiffEntry struct {
	Label  string
	Change ChangeKind
	Old    string
	New    string
}

// Diff compares two versions' block values by label, set-symmetric over the
// union of labels; unchanged labels are omitted. from/to may be full
// version ids or unambiguous prefixes, resolved as in Rollback.
func (cm *CoreMemory) Diff(fromIDPrefix, toIDPrefix string) ([]DiffEntry, error) {
	from, err := cm.findVersion(fromIDPrefix)
	if err != nil {
		return nil, err
	}
	to, err := cm.findVersion(toIDPrefix)
	if err != nil {
		return nil, err
	}

	labels := map[string]struct{}{}
	for l := range from.Blocks {
		labels[l] = struct{}{}
	}
	for l := range to.Blocks {
		labels[l] = struct{}{}
	}

	var out []DiffEntry
	for l := range labels {
		oldBlock, hadOld := from.Blocks[l]
		newBlock, hasNew := to.Blocks[l]
		old, new := oldBlock.Value, newBlock.Value
		switch {
		case !hadOld && hasNew:
			out = append(out, DiffEntry{Label: l, Change: ChangeAdded, New: new})
		case hadOld && !hasNew:
			out = append(out, DiffEntry{Label: l, Change: ChangeRemoved, Old: old})
		case old != new:
			out = append(out, DiffEntry{Label: l, Change: ChangeModified, Old: old, New: new})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

// findVersion resolves a full version id or an unambiguous prefix, checking
// the in-memory chain before falling back to the version store.
func (cm *CoreMemory) findVersion(idPrefix string) (*Version, error) {
	cm.mu.RLock()
	for _, v := range cm.chain {
		if v.ID == idPrefix || strings.HasPrefix(v.ID, idPrefix) {
			cm.mu.RUnlock()
			return v, nil
		}
	}
	cm.mu.RUnlock()
	if cm.versionStore != nil {
		if v, err := cm.versionStore.Load(idPrefix); err == nil && v != nil {
			return v, nil
		}
	}
	return nil, &Error{Kind: ErrKindNotFound, Label: idPrefix}
}

// inheritableBlocks are the labels InheritFrom copies from a parent agent
// into a sub-agent identity, for sub-agent composition (delegate/subordinate
// tool calls).
var inheritableBlocks = []string{"persona", "human", "knowledge", "capabilities"}

// InheritFrom copies the parent's persona, human, knowledge and capabilities
// blocks into this agent's block set as read-only copies, overwriting any
// existing block with the same label. It does not commit; callers decide
// when to snapshot the result.
func (cm *CoreMemory) InheritFrom(source *CoreMemory) error {
	if source == nil {
		return fmt.Errorf("inherit_from: source is nil")
	}
	donor := source.Snapshot()

	cm.mu.Lock()
	defer cm.mu.Unlock()
	for _, label := range inheritableBlocks {
		b, ok := donor[label]
		if !ok {
			continue
		}
		b.ReadOnly = true
		cm.blocks[label] = b
	}
	cm.persistBlocks()
	return nil
}
