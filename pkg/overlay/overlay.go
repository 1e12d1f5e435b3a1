/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

// Package overlay implements the Overlay Sources: the ordered set of
// contributors (external archive roots, the Excel-table merge pipeline,
// TTMP mod packs, loose file trees, generated font tables) that a
// Creator is built up from before it is frozen.
package overlay

import (
	"github.com/sqpack-overlay/engine/pkg/sqpack/creator"
)

// Source is one overlay contributor. Apply mutates c in place (via
// c.AddEntry/AddEntriesFromSqPack) and reports what it did.
type Source interface {
	Apply(c *creator.Creator) (creator.AdditionsReport, error)
}

// ApplyAll runs sources against c in order, per spec.md §4.5, and
// returns the combined report. A source's own error is returned
// immediately rather than folded into the report: spec.md treats
// per-entry/per-pack failures as local (tallied as Errors within a
// report) and reserves a returned error for something that prevented
// the source from running at all (e.g. an unreadable configured root).
func ApplyAll(c *creator.Creator, sources []Source) (creator.AdditionsReport, error) {
	total := creator.AdditionsReport{}
	for _, src := range sources {
		report, err := src.Apply(c)
		if err != nil {
			return total, err
		}
		total.Merge(report)
	}
	return total, nil
}
