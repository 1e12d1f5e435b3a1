/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package overlay

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"

	"github.com/sqpack-overlay/engine/pkg/sqpack/creator"
	"github.com/sqpack-overlay/engine/pkg/ttmp"
)

// disableSentinel, present alongside a TTMPL.mpl, skips that pack
// entirely (spec.md §4.5(3)).
const disableSentinel = "disable"

// TTMPSource is overlay (3) of spec.md §4.5: every TTMPL.mpl found
// (recursively) under Dirs, processed in lexicographic path order,
// skipping any pack folder that carries a disable sentinel.
type TTMPSource struct {
	Dirs   []string
	Logger logrus.FieldLogger
}

func NewTTMPSource(dirs []string, logger logrus.FieldLogger) TTMPSource {
	return TTMPSource{Dirs: dirs, Logger: logger}
}

func (s TTMPSource) Apply(c *creator.Creator) (creator.AdditionsReport, error) {
	var manifests []string
	for _, dir := range s.Dirs {
		if dir == "" {
			continue
		}
		matches, err := doublestar.FilepathGlob(filepath.Join(filepath.ToSlash(dir), "**", ttmp.ManifestFileName))
		if err != nil {
			continue
		}
		manifests = append(manifests, matches...)
	}
	sort.Strings(manifests)

	report := creator.AdditionsReport{}
	for _, manifestPath := range manifests {
		packDir := filepath.Dir(manifestPath)
		if _, err := os.Stat(filepath.Join(packDir, disableSentinel)); err == nil {
			continue
		}

		sub, err := ingestTTMPDir(c, packDir, s.Logger)
		if err != nil {
			return report, err
		}
		report.Merge(sub)
	}

	return report, nil
}
