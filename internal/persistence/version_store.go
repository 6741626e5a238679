package persistence

import (
	"encoding/json"
	"log/slog"

	"github.com/lucerna-ai/lucerna/internal/memory"
)

// FileVersionStore implements memory.VersionStore: one file per version,
// named by the first 16 characters of the version's content hash, written
// atomically.
type FileVersionStore struct {
	layout Layout
	logger *slog.Logger
}

// NewFileVersionStore builds a version store rooted at layout.BaseDir.
func NewFileVersionStore(layout Layout, logger *slog.Logger) *FileVersionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileVersionStore{layout: layout, logger: logger.With("component", "memory_version_store")}
}

func (s *FileVersionStore) Save(v *memory.Version) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(s.layout.MemoryVersionFile(v.ID), data, 0o600)
}

func (s *FileVersionStore) Load(id string) (*memory.Version, error) {
	data, err := ReadFileOrEmpty(s.layout.MemoryVersionFile(id))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var v memory.Version
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
