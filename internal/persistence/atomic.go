// Package persistence implements durable JSON file storage for everything
// the runtime needs to survive a restart: core memory blocks, memory
// versions, and session transcripts. Every write goes through the same
// write-to-temp-then-rename discipline so a crash mid-write never leaves a
// torn file behind.
package persistence

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to path by writing to a sibling temp file
// and renaming it over the destination, which is atomic on the same
// filesystem.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", tmp, path, err)
	}
	return nil
}

// ReadFileOrEmpty reads path, returning (nil, nil) rather than an error
// when the file doesn't exist yet — the common case for a fresh agent
// identity or an empty version store.
func ReadFileOrEmpty(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}
