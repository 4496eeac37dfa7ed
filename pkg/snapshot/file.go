package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const snapshotFileMode fs.FileMode = 0o644

type FileBackend struct {
	dir string
}

func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: dir}
}

func (b *FileBackend) Location(sessionID string) string {
	return filepath.Join(b.dir, objectName(sessionID))
}

func (b *FileBackend) Read(_ context.Context, sessionID string) ([]byte, error) {
	data, err := os.ReadFile(b.Location(sessionID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotExist
	}
	return data, err
}

// Write replaces the document atomically through a temp file in the same directory.
func (b *FileBackend) Write(_ context.Context, sessionID string, data []byte) error {
	if err := os.MkdirAll(b.dir, os.ModePerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(b.dir, objectName(sessionID)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(snapshotFileMode); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), b.Location(sessionID)); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

func objectName(sessionID string) string {
	return fmt.Sprintf("session_%s.json", sessionID)
}
