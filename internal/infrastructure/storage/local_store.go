package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore serves uploaded files from a base directory. Paths are kept
// inside the base to stop a crafted storage_path from escaping it.
type LocalStore struct {
	BaseDir string
}

func NewLocalStore(baseDir string) *LocalStore {
	if baseDir == "" {
		baseDir = "."
	}
	return &LocalStore{BaseDir: baseDir}
}

func (s *LocalStore) GetFileContents(ctx context.Context, path string) ([]byte, error) {
	_ = ctx

	full := filepath.Join(s.BaseDir, filepath.Clean("/"+path))
	if !strings.HasPrefix(full, filepath.Clean(s.BaseDir)) {
		return nil, fmt.Errorf("path %q escapes storage base", path)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", full, err)
	}
	return data, nil
}
