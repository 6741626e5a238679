package memory

import (
	"strings"
	"testing"
)

type fakeBlockStore struct {
	saved map[string]map[string]Block
}

func newFakeBlockStore() *fakeBlockStore { return &fakeBlockStore{saved: map[string]map[string]Block{}} }

func (f *fakeBlockStore) Save(agentID string, blocks map[string]Block) { f.saved[agentID] = blocks }
func (f *fakeBlockStore) Load(agentID string) (map[string]Block, error) { return f.saved[agentID], nil }

type fakeVersionStore struct {
	versions map[string]*Version
}

func newFakeVersionStore() *fakeVersionStore { return &fakeVersionStore{versions: map[string]*Version{}} }
func (f *fakeVersionStore) Save(v *Version) error { f.versions[v.ID] = v; return nil }
func (f *fakeVersionStore) Load(id string) (*Version, error) { return f.versions[id], nil }

func newTestMemory(t *testing.T) *CoreMemory {
	t.Helper()
	cm, err := New("agent-1", newFakeBlockStore(), newFakeVersionStore(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return cm
}

func TestAppend_OverLimitRejected(t *testing.T) {
	cm := newTestMemory(t)
	if err := cm.Create("notes", "scratch", 5, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := cm.Append("notes", "abcde"); err != nil {
		t.Fatalf("append within limit: %v", err)
	}
	err := cm.Append("notes", "f")
	if err == nil {
		t.Fatal("expected over_limit error")
	}
	var memErr *Error
	if !asMemoryError(err, &memErr) || memErr.Kind != ErrKindOverLimit {
		t.Fatalf("expected over_limit, got %v", err)
	}
}

func TestAppend_ReadOnlyRejected(t *testing.T) {
	cm := newTestMemory(t)
	if err := cm.Create("locked", "immutable", 100, true); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := cm.Append("locked", "x")
	var memErr *Error
	if !asMemoryError(err, &memErr) || memErr.Kind != ErrKindReadOnly {
		t.Fatalf("expected read_only, got %v", err)
	}
}

func TestCommit_IsIdempotentWithoutMutation(t *testing.T) {
	cm := newTestMemory(t)
	id1, err := cm.Commit("first")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	id2, err := cm.Commit("second, nothing changed")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected same version id, got %s vs %s", id1, id2)
	}
	if len(cm.Log()) != 1 {
		t.Fatalf("expected chain length 1, got %d", len(cm.Log()))
	}
}

func TestCommit_NewVersionOnMutation(t *testing.T) {
	cm := newTestMemory(t)
	id1, _ := cm.Commit("initial")
	if err := cm.Append("persona", "a cautious agent"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := cm.Replace("persona", "cautious", "helpful"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	id2, _ := cm.Commit("updated persona")
	if id1 == id2 {
		t.Fatal("expected a new version id after mutation")
	}
	log := cm.Log()
	if len(log) != 2 || log[0].ID != id2 || log[1].ID != id1 {
		t.Fatalf("unexpected log order: %+v", log)
	}
}

func TestRollback_ReturnsSnapshotWithoutMutating(t *testing.T) {
	cm := newTestMemory(t)
	id1, _ := cm.Commit("initial")
	_ = cm.Append("persona", "changed")
	cm.Commit("changed")

	snapshot, err := cm.Rollback(id1)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if snapshot["persona"] != "" {
		t.Fatalf("expected snapshot persona to be empty, got %q", snapshot["persona"])
	}

	// Rollback must not have mutated the live block set.
	b, _ := cm.Get("persona")
	if b.Value != "changed" {
		t.Fatalf("expected rollback to leave live state untouched, got %q", b.Value)
	}

	cm.ApplyRollback(snapshot)
	b, _ = cm.Get("persona")
	if b.Value != "" {
		t.Fatalf("expected ApplyRollback to restore empty persona, got %q", b.Value)
	}
}

func TestRingBuffer_BoundedAt100(t *testing.T) {
	cm := newTestMemory(t)
	for i := 0; i < 150; i++ {
		_ = cm.Clear("persona")
		_ = cm.Append("persona", string(rune('a'+i%26))+string(rune(i)))
		cm.Commit("iteration")
	}
	if len(cm.Log()) > ringBufferCap {
		t.Fatalf("expected chain length <= %d, got %d", ringBufferCap, len(cm.Log()))
	}
}

// TestCompile_RoundTripsValuesContainingAngleBrackets exercises invariant 6:
// a block value containing '<' or '>' still round-trips byte-for-byte when
// the compiled text is re-extracted between its own label's open/close tags.
func TestCompile_RoundTripsValuesContainingAngleBrackets(t *testing.T) {
	cm := newTestMemory(t)
	weird := "if x < y and y > z then <tag>nested</tag>"
	if err := cm.Append("persona", weird); err != nil {
		t.Fatalf("append: %v", err)
	}

	compiled := cm.Compile()
	open := "<persona>\n"
	close_ := "\n</persona>"
	start := strings.Index(compiled, open)
	if start == -1 {
		t.Fatalf("compiled text missing <persona> open tag: %q", compiled)
	}
	start += len(open)
	end := strings.Index(compiled[start:], close_)
	if end == -1 {
		t.Fatalf("compiled text missing </persona> close tag: %q", compiled)
	}
	extracted := compiled[start : start+end]
	if extracted != weird {
		t.Fatalf("round-trip mismatch: got %q, want %q", extracted, weird)
	}
}

func asMemoryError(err error, target **Error) bool {
	me, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = me
	return true
}
