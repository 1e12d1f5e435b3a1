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

	"github.com/sqpack-overlay/engine/pkg/sqpack"
	"github.com/sqpack-overlay/engine/pkg/sqpack/creator"
	"github.com/sqpack-overlay/engine/pkg/sqpack/provider"
	"github.com/sqpack-overlay/engine/pkg/ttmp"
)

func writeTestPack(t *testing.T, dir, path string) {
	t.Helper()
	ps := sqpack.NewPathSpec(path)
	p, err := provider.NewMemoryBinaryProvider(ps, []byte("mod payload"))
	require.NoError(t, err)
	buf := make([]byte, p.Size())
	n, err := p.ReadPartial(0, buf)
	require.NoError(t, err)

	w := ttmp.NewWriter()
	w.Append(ps.OriginalPath, "000000", buf[:n])
	require.NoError(t, w.Commit(dir))
}

func TestTTMPSourceIngestsDiscoveredPacks(t *testing.T) {
	root := t.TempDir()
	packDir := filepath.Join(root, "MyMod")
	require.NoError(t, os.MkdirAll(packDir, 0o755))
	writeTestPack(t, packDir, "chara/weapon/w0001.mdl")

	c := creator.NewCreator("ffxiv", "000000", nil)
	s := NewTTMPSource([]string{root}, nil)

	report, err := s.Apply(c)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Added)
	assert.Len(t, c.Entries(), 1)
}

func TestTTMPSourceSkipsDisabledPacks(t *testing.T) {
	root := t.TempDir()
	packDir := filepath.Join(root, "DisabledMod")
	require.NoError(t, os.MkdirAll(packDir, 0o755))
	writeTestPack(t, packDir, "chara/weapon/w0002.mdl")
	require.NoError(t, os.WriteFile(filepath.Join(packDir, disableSentinel), nil, 0o644))

	c := creator.NewCreator("ffxiv", "000000", nil)
	s := NewTTMPSource([]string{root}, nil)

	report, err := s.Apply(c)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Added)
	assert.Empty(t, c.Entries())
}
