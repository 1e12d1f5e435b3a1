/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package overlay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqpack-overlay/engine/pkg/sqpack/creator"
)

func TestLooseFileSourceAddsFilesUnderExpacName(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "ffxiv", "000000")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bg", "wall.tex"), []byte("texdata"), 0o644))

	c := creator.NewCreator("ffxiv", "000000", nil)
	s := NewLooseFileSource([]string{root}, nil)

	report, err := s.Apply(c)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Added)
	assert.Len(t, c.Entries(), 1)
	assert.Equal(t, "ffxiv/000000/bg/wall.tex", c.Entries()[0].PathSpec().OriginalPath)
}

func TestLooseFileSourceSkipsMissingRoot(t *testing.T) {
	c := creator.NewCreator("ffxiv", "000000", nil)
	s := NewLooseFileSource([]string{filepath.Join(t.TempDir(), "nope")}, nil)

	report, err := s.Apply(c)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Added)
	assert.Empty(t, c.Entries())
}
