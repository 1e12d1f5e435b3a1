/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package overlay

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sqpack-overlay/engine/pkg/builder"
	"github.com/sqpack-overlay/engine/pkg/sqpack"
	"github.com/sqpack-overlay/engine/pkg/sqpack/creator"
	"github.com/sqpack-overlay/engine/pkg/sqpack/provider"
)

// fontArchiveName is the one archive stem the font pipeline applies to
// (spec.md §4.5(5)).
const fontArchiveName = "000000"

// FontGenerator is the external collaborator that turns a font-config
// file into an atlas texture plus metric tables. Building glyph bitmaps
// is a font-rendering concern, not a SqPack-format one, so this engine
// only owns caching the result and ingesting it as TTMP.
type FontGenerator interface {
	// CacheKey identifies configPath's complete input state (the config
	// file plus whatever source fonts/textures it references) cheaply.
	CacheKey(configPath string) (string, error)
	// Generate builds the atlas and metric tables.
	Generate(ctx context.Context, configPath string) ([]GeneratedAsset, error)
}

// FontSource is overlay (5) of spec.md §4.5: active only when
// ConfigPath is set and the Creator being assembled is for the root
// archive ("000000.win32.index").
type FontSource struct {
	ConfigPath  string
	CacheDir    string
	Generator   FontGenerator
	Concurrency int
	Logger      logrus.FieldLogger
}

func (s FontSource) Apply(c *creator.Creator) (creator.AdditionsReport, error) {
	if s.ConfigPath == "" || c.Name != fontArchiveName || s.Generator == nil {
		return creator.AdditionsReport{}, nil
	}

	packDir := filepath.Join(s.CacheDir, "font")

	manifest, err := OpenCacheManifest(s.CacheDir)
	if err != nil {
		return creator.AdditionsReport{}, errors.Wrap(err, "font overlay: open cache manifest")
	}
	defer manifest.Close()

	key, err := s.Generator.CacheKey(s.ConfigPath)
	if err != nil {
		return creator.AdditionsReport{}, errors.Wrap(err, "font overlay: compute cache key")
	}

	stored, _ := manifest.Key("font")
	if stored != key || !ttmpPackExists(packDir) {
		if err := s.rebuild(packDir, key, manifest); err != nil {
			return creator.AdditionsReport{}, err
		}
	}

	return ingestTTMPDir(c, packDir, s.Logger)
}

func (s FontSource) rebuild(packDir, key string, manifest *CacheManifest) error {
	if err := os.MkdirAll(packDir, 0o755); err != nil {
		return errors.Wrap(err, "font overlay: create cache dir")
	}

	assets, err := s.Generator.Generate(context.Background(), s.ConfigPath)
	if err != nil {
		return errors.Wrap(err, "font overlay: generate atlas")
	}

	tasks := make([]builder.Task, 0, len(assets))
	for _, a := range assets {
		a := a
		tasks = append(tasks, builder.Task{
			PathSpec: sqpack.NewPathSpec(a.PathSpec),
			DatFile:  a.DatFile,
			Produce: func(ctx context.Context) ([]byte, error) {
				p, err := provider.NewMemoryBinaryProvider(sqpack.NewPathSpec(a.PathSpec), a.Data)
				if err != nil {
					return nil, err
				}
				buf := make([]byte, p.Size())
				n, err := p.ReadPartial(0, buf)
				if err != nil {
					return nil, err
				}
				return buf[:n], nil
			},
		})
	}

	if _, err := builder.Build(context.Background(), tasks, s.Concurrency, silentProgress{}, packDir, s.Logger); err != nil {
		return errors.Wrap(err, "font overlay: build cache pack")
	}

	return manifest.SetKey("font", key)
}
