// Copyright (C) 2025, Admarkt. All rights reserved.
// See the file LICENSE for licensing terms.

// Package creative stores uploaded creative files. The exchange core only
// ever sees the returned reference; where the bytes live is a collaborator
// concern.
package creative

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Storage persists creative files and returns a URL path the file will be
// served under.
type Storage interface {
	Save(ctx context.Context, originalName string, r io.Reader) (string, error)
}

// DiskStorage writes creatives to a local directory, served under
// /uploads. File names are random so uploads cannot collide or overwrite
// each other.
type DiskStorage struct {
	dir string
}

// NewDiskStorage creates the upload directory if needed.
func NewDiskStorage(dir string) (*DiskStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &DiskStorage{dir: dir}, nil
}

// Dir returns the directory creatives are written to.
func (s *DiskStorage) Dir() string { return s.dir }

func (s *DiskStorage) Save(ctx context.Context, originalName string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.NewString() + filepath.Ext(filepath.Base(originalName))
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create creative file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write creative file: %w", err)
	}
	return "/uploads/" + name, nil
}
