package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FilesystemSink writes archives into a local directory.
type FilesystemSink struct {
	dir string
}

// NewFilesystemSink creates the directory if needed.
func NewFilesystemSink(dir string) (*FilesystemSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &FilesystemSink{dir: dir}, nil
}

// Put writes to a temp file first and renames it into place so a partial
// archive is never visible under its final name.
func (s *FilesystemSink) Put(_ context.Context, name string, r io.Reader, size int64) (string, error) {
	destPath := filepath.Join(s.dir, filepath.Base(name))

	tmpFile, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != size {
		return "", fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return "", fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return destPath, nil
}
