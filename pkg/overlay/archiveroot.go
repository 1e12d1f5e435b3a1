/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package overlay

import (
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/sirupsen/logrus"

	"github.com/sqpack-overlay/engine/pkg/sqpack/creator"
	"github.com/sqpack-overlay/engine/pkg/sqpack/reader"
)

// ArchiveRootSource is overlay (1) of spec.md §4.5: an additional
// archive root whose matching triplet, if present, is ingested whole.
type ArchiveRootSource struct {
	Root   string
	Logger logrus.FieldLogger
}

// Apply looks for {root}/{expac}/{name}.win32.index and, if present,
// ingests it without overwriting entries the base archive already
// contributed (overwrite_existing=false, per spec.md §4.5(1)).
func (s ArchiveRootSource) Apply(c *creator.Creator) (creator.AdditionsReport, error) {
	indexPath, err := securejoin.SecureJoin(s.Root, filepath.Join(c.Expac, c.Name+".win32.index"))
	if err != nil {
		return creator.AdditionsReport{}, nil
	}

	if _, err := os.Stat(indexPath); err != nil {
		return creator.AdditionsReport{}, nil
	}

	src, err := reader.Open(indexPath, s.Logger)
	if err != nil {
		return creator.AdditionsReport{Errors: 1}, nil
	}

	// src stays open for the lifetime of the resulting SqpackViews: its
	// PassthroughFromSqPack providers read from it lazily, long after
	// Apply returns. Creator takes ownership and closes it when the
	// frozen views' refcount drops to zero.
	return c.AddEntriesFromSqPack(src, false, false)
}
