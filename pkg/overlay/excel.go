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
	"github.com/sqpack-overlay/engine/pkg/ttmp"
)

// excelArchiveName is the one archive stem the row-merge pipeline
// applies to (spec.md §4.5(2)).
const excelArchiveName = "0a0000"

// RowMerger is the external collaborator that knows the Excel table
// format (.exh/.exd) well enough to merge localized rows of the base
// archive's tables with each external root's corresponding tables,
// using English as the reference column set. Computing that merge is
// an Excel-table-format concern, not a SqPack-format one, so this
// engine only owns caching the result and ingesting it as TTMP; the
// row-level merge itself is supplied by the host.
type RowMerger interface {
	// CacheKey identifies the complete input state (base archive plus
	// externalRoots) cheaply, without performing the merge itself, so
	// Apply can decide whether the cached pack is still valid.
	CacheKey(externalRoots []string) (string, error)
	// Merge performs the actual row merge and returns one asset per
	// merged table.
	Merge(ctx context.Context, externalRoots []string) ([]GeneratedAsset, error)
}

// ExcelMergeSource is overlay (2) of spec.md §4.5: it builds (or
// reuses) a cached TTMP pack of merged Excel tables and ingests it.
type ExcelMergeSource struct {
	ExternalRoots []string
	CacheDir      string
	Merger        RowMerger
	Concurrency   int
	Logger        logrus.FieldLogger
}

func (s ExcelMergeSource) Apply(c *creator.Creator) (creator.AdditionsReport, error) {
	if c.Name != excelArchiveName || s.Merger == nil {
		return creator.AdditionsReport{}, nil
	}

	packDir := filepath.Join(s.CacheDir, "excel")

	manifest, err := OpenCacheManifest(s.CacheDir)
	if err != nil {
		return creator.AdditionsReport{}, errors.Wrap(err, "excel overlay: open cache manifest")
	}
	defer manifest.Close()

	key, err := s.Merger.CacheKey(s.ExternalRoots)
	if err != nil {
		return creator.AdditionsReport{}, errors.Wrap(err, "excel overlay: compute cache key")
	}

	stored, _ := manifest.Key("excel")
	if stored != key || !ttmpPackExists(packDir) {
		if err := s.rebuild(packDir, key, manifest); err != nil {
			return creator.AdditionsReport{}, err
		}
	}

	return ingestTTMPDir(c, packDir, s.Logger)
}

func (s ExcelMergeSource) rebuild(packDir, key string, manifest *CacheManifest) error {
	if err := os.MkdirAll(packDir, 0o755); err != nil {
		return errors.Wrap(err, "excel overlay: create cache dir")
	}

	assets, err := s.Merger.Merge(context.Background(), s.ExternalRoots)
	if err != nil {
		return errors.Wrap(err, "excel overlay: merge tables")
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
		return errors.Wrap(err, "excel overlay: build cache pack")
	}

	return manifest.SetKey("excel", key)
}

func ttmpPackExists(dir string) bool {
	p, err := ttmp.Open(dir)
	if err != nil {
		return false
	}
	p.Close()
	return true
}

// ingestTTMPDir opens a TTMP pack already sitting at dir and adds each
// of its entries into c, with TTMP's default overwrite_existing=true
// (spec.md §4.5(3)).
func ingestTTMPDir(c *creator.Creator, dir string, logger logrus.FieldLogger) (creator.AdditionsReport, error) {
	report := creator.AdditionsReport{}
	pack, err := ttmp.Open(dir)
	if err != nil {
		report.Errors++
		return report, nil
	}
	defer pack.Close()

	for _, e := range pack.Entries() {
		p, err := pack.Provider(e)
		if err != nil {
			report.Errors++
			continue
		}
		c.AddEntryTallied(&report, p, true)
	}
	return report, nil
}
