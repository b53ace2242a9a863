// Copyright (C) 2025, Admarkt. All rights reserved.
// See the file LICENSE for licensing terms.

package creative

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiskStorageSave(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDiskStorage(filepath.Join(dir, "uploads"))
	require.NoError(t, err)

	ref, err := s.Save(context.Background(), "banner.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(ref, "/uploads/"))
	require.True(t, strings.HasSuffix(ref, ".png"))

	data, err := os.ReadFile(filepath.Join(s.Dir(), strings.TrimPrefix(ref, "/uploads/")))
	require.NoError(t, err)
	require.Equal(t, "png-bytes", string(data))
}

func TestDiskStorageNamesDoNotCollide(t *testing.T) {
	s, err := NewDiskStorage(t.TempDir())
	require.NoError(t, err)

	a, err := s.Save(context.Background(), "banner.png", strings.NewReader("a"))
	require.NoError(t, err)
	b, err := s.Save(context.Background(), "banner.png", strings.NewReader("b"))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestDiskStorageCanceledContext(t *testing.T) {
	s, err := NewDiskStorage(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Save(ctx, "banner.png", strings.NewReader("a"))
	require.Error(t, err)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	require.Empty(t, entries)
}
