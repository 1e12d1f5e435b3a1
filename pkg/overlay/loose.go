/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package overlay

import (
	"io/fs"
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/sirupsen/logrus"

	"github.com/sqpack-overlay/engine/pkg/sqpack"
	"github.com/sqpack-overlay/engine/pkg/sqpack/creator"
	"github.com/sqpack-overlay/engine/pkg/sqpack/provider"
)

// LooseFileSource is overlay (4) of spec.md §4.5: a developer-facing
// tree of loose files laid out under {root}/{expac}/{name} or
// {root}/{expac}.win32/{name}, each file becoming one Binary entry
// keyed by its path relative to the root. Loose files are the last
// word on a path before the generated font table, so overwriteExisting
// defaults to true.
type LooseFileSource struct {
	Roots  []string
	Logger logrus.FieldLogger
}

func NewLooseFileSource(roots []string, logger logrus.FieldLogger) LooseFileSource {
	return LooseFileSource{Roots: roots, Logger: logger}
}

func (s LooseFileSource) Apply(c *creator.Creator) (creator.AdditionsReport, error) {
	report := creator.AdditionsReport{}
	for _, root := range s.Roots {
		if root == "" {
			continue
		}
		for _, sub := range []string{c.Expac, c.Expac + ".win32"} {
			base, err := securejoin.SecureJoin(root, filepath.Join(sub, c.Name))
			if err != nil {
				continue
			}
			s.walkInto(base, root, c, &report)
		}
	}
	return report, nil
}

func (s LooseFileSource) walkInto(base, root string, c *creator.Creator, report *creator.AdditionsReport) {
	info, err := os.Stat(base)
	if err != nil || !info.IsDir() {
		return
	}

	_ = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		data, err := os.ReadFile(path)
		if err != nil {
			report.Errors++
			if s.Logger != nil {
				s.Logger.WithError(err).WithField("path", path).Warn("overlay: failed to read loose file")
			}
			return nil
		}

		p, err := provider.NewMemoryBinaryProvider(sqpack.NewPathSpec(rel), data)
		if err != nil {
			report.Errors++
			return nil
		}
		c.AddEntryTallied(report, p, true)
		return nil
	})
}
