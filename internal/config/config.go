/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

// Package config is the engine's Configuration Provider: it decodes the
// on-disk TOML surface into the knobs the interceptor, creator and overlay
// sources consume, and applies the same defaults the rest of the engine
// relies on when a value is left unset.
package config

import (
	"os"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

const (
	// DefaultMaxFileSize is the per-data-span byte budget freeze() uses
	// before it rolls over to a new span: 2,000,000,000 bytes, the figure
	// carried by the archive format's own MaxFileSize_Value.
	DefaultMaxFileSize = 0x77359400

	// MaxFileSizeCeiling is the hard ceiling a configured MaxFileSize
	// cannot exceed: 32GiB, the largest offset LEDataLocator can address.
	MaxFileSizeCeiling = 0x800000000

	defaultLogLevel = "info"
)

// Config is the Configuration Provider collaborator from the engine's
// design: every value it holds is consumed elsewhere, never reinterpreted
// here beyond defaulting and basic validation.
type Config struct {
	// UseResourceOverriding is the master enable: when false, no hooks
	// are installed and the engine never intercepts anything.
	UseResourceOverriding bool `toml:"use_resource_overriding"`

	// BaseArchiveDir is "{base}" in the path shapes of spec.md §6.
	BaseArchiveDir string `toml:"base_archive_dir"`

	// AdditionalArchiveRoots is the ordered list of overlay archive root
	// directories (spec.md §4.5 step 1).
	AdditionalArchiveRoots []string `toml:"additional_archive_roots"`

	// AdditionalModpackDirectories is the ordered list of TTMP search
	// roots (spec.md §4.5 step 3).
	AdditionalModpackDirectories []string `toml:"additional_modpack_directories"`

	// UseDefaultModpackDir also searches the default neighbor and cache
	// TexToolsMods directories.
	UseDefaultModpackDir bool `toml:"use_default_modpack_dir"`

	// AdditionalLooseRootDirectories is the ordered list of loose-file
	// tree overlay roots (spec.md §4.5 step 4).
	AdditionalLooseRootDirectories []string `toml:"additional_loose_root_directories"`

	// UseDefaultLooseRootDirectory also searches the default loose-file
	// overlay directories.
	UseDefaultLooseRootDirectory bool `toml:"use_default_loose_root_directory"`

	// OverrideFontConfig activates the font-generation pipeline for
	// 000000.win32.index when set.
	OverrideFontConfig string `toml:"override_font_config"`

	// HashTrackerLanguageOverride names the target language (e.g. "en")
	// that observed content paths carrying another language's suffix or
	// folder segment are rewritten to.
	HashTrackerLanguageOverride string `toml:"hash_tracker_language_override"`

	// UseHashTrackerKeyLogging emits observed filename strings to the
	// log as they're intercepted.
	UseHashTrackerKeyLogging bool `toml:"use_hash_tracker_key_logging"`

	// CacheDir holds the Excel-merge and font-generation TTMP caches
	// (spec.md §4.5 steps 2 and 5).
	CacheDir string `toml:"cache_dir"`

	// MaxFileSize bounds each data span freeze() produces; zero means
	// DefaultMaxFileSize.
	MaxFileSize uint64 `toml:"max_file_size"`

	// Ambient logging surface, carried from the teacher's own Config.
	LogLevel            string        `toml:"log_level"`
	LogDir              string        `toml:"log_dir"`
	LogToStdout         bool          `toml:"log_to_stdout"`
	RotateLogMaxSize    int           `toml:"log_rotate_max_size"`
	RotateLogMaxBackups int           `toml:"log_rotate_max_backups"`
	RotateLogMaxAge     int           `toml:"log_rotate_max_age"`
	RotateLogLocalTime  bool          `toml:"log_rotate_local_time"`
	RotateLogCompress   bool          `toml:"log_rotate_compress"`
	BackgroundBuildGC   time.Duration `toml:"background_build_gc"`
}

// Default returns the configuration the engine uses when no file is
// supplied: overriding disabled, so installing hooks is an explicit opt-in.
func Default() *Config {
	return &Config{
		UseResourceOverriding: false,
		MaxFileSize:           DefaultMaxFileSize,
		LogLevel:              defaultLogLevel,
		LogToStdout:           true,
		RotateLogMaxSize:      100,
		RotateLogMaxBackups:   5,
		BackgroundBuildGC:     time.Hour,
	}
}

// Load decodes a TOML configuration file at path, starting from Default()
// so unset fields keep their default value.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config file %s", path)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config file %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate applies the bounds spec.md §3 invariant I2 and §6 require.
func (c *Config) Validate() error {
	if c.MaxFileSize == 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.MaxFileSize > MaxFileSizeCeiling {
		return errors.Errorf("max_file_size %d exceeds ceiling %d", c.MaxFileSize, MaxFileSizeCeiling)
	}
	return nil
}
