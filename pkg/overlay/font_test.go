/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package overlay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqpack-overlay/engine/pkg/sqpack/creator"
)

type fakeFontGenerator struct {
	calls  int
	key    string
	assets []GeneratedAsset
}

func (f *fakeFontGenerator) CacheKey(configPath string) (string, error) { return f.key, nil }
func (f *fakeFontGenerator) Generate(ctx context.Context, configPath string) ([]GeneratedAsset, error) {
	f.calls++
	return f.assets, nil
}

func TestFontSourceInactiveWithoutConfigPath(t *testing.T) {
	c := creator.NewCreator("ffxiv", fontArchiveName, nil)
	gen := &fakeFontGenerator{key: "v1"}
	s := FontSource{CacheDir: t.TempDir(), Generator: gen}

	report, err := s.Apply(c)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Added)
	assert.Equal(t, 0, gen.calls)
}

func TestFontSourceInactiveForNonRootArchive(t *testing.T) {
	c := creator.NewCreator("ffxiv", "040000", nil)
	gen := &fakeFontGenerator{key: "v1"}
	s := FontSource{ConfigPath: "/etc/font.toml", CacheDir: t.TempDir(), Generator: gen}

	report, err := s.Apply(c)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Added)
	assert.Equal(t, 0, gen.calls)
}

func TestFontSourceBuildsAtlasForRootArchive(t *testing.T) {
	c := creator.NewCreator("ffxiv", fontArchiveName, nil)
	gen := &fakeFontGenerator{
		key: "v1",
		assets: []GeneratedAsset{
			{PathSpec: "common/font/font1.tex", DatFile: "000000", Data: []byte("atlas bytes")},
		},
	}
	s := FontSource{ConfigPath: "/etc/font.toml", CacheDir: t.TempDir(), Generator: gen}

	report, err := s.Apply(c)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Added)
	assert.Equal(t, 1, gen.calls)
}
