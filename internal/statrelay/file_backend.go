package statrelay

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// FileSnapshotBackend persists the snapshot text to a local file.
// Writes go through a temp file plus rename so a crashed write never
// leaves a truncated snapshot behind.
type FileSnapshotBackend struct {
	Path string
}

func NewFileSnapshotBackend(path string) *FileSnapshotBackend {
	return &FileSnapshotBackend{Path: strings.TrimSpace(path)}
}

func (b *FileSnapshotBackend) Fetch(ctx context.Context) (string, error) {
	if b == nil || strings.TrimSpace(b.Path) == "" {
		return "", nil
	}
	data, err := os.ReadFile(b.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

func (b *FileSnapshotBackend) Write(ctx context.Context, text string) error {
	if b == nil || strings.TrimSpace(b.Path) == "" {
		return nil
	}
	dir := filepath.Dir(b.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := b.Path + ".tmp"
	if err := os.WriteFile(tmp, []byte(text), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, b.Path)
}
