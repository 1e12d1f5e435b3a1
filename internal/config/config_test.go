/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.UseResourceOverriding)
	assert.EqualValues(t, DefaultMaxFileSize, cfg.MaxFileSize)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
use_resource_overriding = true
base_archive_dir = "/game/sqpack"
additional_archive_roots = ["/mods/archiveA"]
additional_modpack_directories = ["/mods/ttmp"]
additional_loose_root_directories = ["/mods/loose"]
cache_dir = "/mods/cache"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.UseResourceOverriding)
	assert.Equal(t, "/game/sqpack", cfg.BaseArchiveDir)
	assert.Equal(t, []string{"/mods/archiveA"}, cfg.AdditionalArchiveRoots)
	assert.EqualValues(t, DefaultMaxFileSize, cfg.MaxFileSize)
}

func TestValidateRejectsOversizedMaxFileSize(t *testing.T) {
	cfg := Default()
	cfg.MaxFileSize = MaxFileSizeCeiling + 1
	assert.Error(t, cfg.Validate())
}
