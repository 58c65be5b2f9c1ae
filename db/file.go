// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileBackend keeps each table in <dir>/<table>.json.
type FileBackend struct {
	dir string
}

func OpenFile(dir string) (*FileBackend, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &FileBackend{dir: filepath.Clean(dir)}, nil
}

func (f *FileBackend) path(table string) string {
	return filepath.Join(f.dir, table+".json")
}

func (f *FileBackend) Read(ctx context.Context, table string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(f.path(table))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return payload, err
}

// Write goes through a temp file in the same directory and a rename, so a
// crash mid-write leaves the last good document in place.
func (f *FileBackend) Write(ctx context.Context, table string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, table+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path(table))
}

func (f *FileBackend) Close() error {
	return nil
}
