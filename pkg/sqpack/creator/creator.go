/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package creator

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sqpack-overlay/engine/pkg/errdefs"
	"github.com/sqpack-overlay/engine/pkg/sqpack"
	"github.com/sqpack-overlay/engine/pkg/sqpack/provider"
	"github.com/sqpack-overlay/engine/pkg/sqpack/reader"
)

type dualHashKey struct {
	PathHash uint32
	NameHash uint32
}

// Creator holds the unique-by-PathSpec merged directory a triplet is
// built from before it is frozen into SqpackViews. Entries are kept in
// a slice to preserve insertion order, which the View Assembler uses
// directly as data span layout order (spec.md §4.4).
type Creator struct {
	Expac string
	Name  string

	entries       []provider.EntryProvider
	fullHashIndex map[uint32]int
	dualHashIndex map[dualHashKey]int

	unknown3 []sqpack.Unknown3Entry

	// openReaders holds every source archive ingested via
	// AddEntriesFromSqPack. Their PassthroughFromSqPack providers keep
	// reading from these Readers' underlying files for as long as the
	// frozen SqpackViews are read from, so they must stay open past
	// freeze and are only closed when the resulting views' refcount
	// drops to zero (see SqpackViews.Release).
	openReaders []*reader.Reader

	logger logrus.FieldLogger
}

// NewCreator seeds a Creator for the archive stem (expac, name), e.g.
// ("ffxiv", "000000") for "{base}/ffxiv/000000.win32.index".
func NewCreator(expac, name string, logger logrus.FieldLogger) *Creator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Creator{
		Expac:         expac,
		Name:          name,
		fullHashIndex: map[uint32]int{},
		dualHashIndex: map[dualHashKey]int{},
		logger:        logger.WithField("component", "sqpack-creator"),
	}
}

// Unknown3 returns the currently preserved opaque third index segment.
func (c *Creator) Unknown3() []sqpack.Unknown3Entry { return c.unknown3 }

// Entries returns the merged directory in insertion order.
func (c *Creator) Entries() []provider.EntryProvider { return c.entries }

// OpenReaders returns every source archive reader ingested so far,
// ownership of which Freeze transfers into the resulting SqpackViews.
func (c *Creator) OpenReaders() []*reader.Reader { return c.openReaders }

func dualKeyOf(ps sqpack.PathSpec) dualHashKey {
	return dualHashKey{PathHash: ps.PathHash, NameHash: ps.NameHash}
}

// AddEntry applies the insertion policy of spec.md §4.4 for a single
// provider. overwriteExisting controls whether a genuine match (both key
// forms agree) is replaced or left alone; a partial collision (matches
// by exactly one key form) is always an error, regardless of
// overwriteExisting.
func (c *Creator) AddEntry(p provider.EntryProvider, overwriteExisting bool) (Outcome, error) {
	ps := p.PathSpec()

	fullIdx, hasFull := c.fullHashIndex[ps.FullPathHash]
	dualIdx, hasDual := c.dualHashIndex[dualKeyOf(ps)]

	existingIdx := -1
	switch {
	case hasFull && hasDual:
		if fullIdx != dualIdx {
			return OutcomeConflict, errors.Wrapf(errdefs.ErrDuplicatePathSpec,
				"sqpack creator: %s partially collides with two different existing entries", ps.OriginalPath)
		}
		existingIdx = fullIdx
	case hasFull:
		existingIdx = fullIdx
	case hasDual:
		existingIdx = dualIdx
	}

	if existingIdx >= 0 {
		existingPs := c.entries[existingIdx].PathSpec()
		if !ps.Equal(existingPs) {
			return OutcomeConflict, errors.Wrapf(errdefs.ErrDuplicatePathSpec,
				"sqpack creator: %s conflicts with existing entry %s", ps.OriginalPath, existingPs.OriginalPath)
		}
		if !overwriteExisting {
			return OutcomeSkippedExisting, nil
		}
		c.entries[existingIdx] = p
		return OutcomeReplaced, nil
	}

	idx := len(c.entries)
	c.entries = append(c.entries, p)
	c.fullHashIndex[ps.FullPathHash] = idx
	c.dualHashIndex[dualKeyOf(ps)] = idx
	return OutcomeAdded, nil
}

// AddEntriesFromSqPack ingests every directory entry of src as a
// PassthroughFromSqPack provider. When overwriteUnknown3 is set, src's
// opaque third segment replaces the Creator's own.
func (c *Creator) AddEntriesFromSqPack(src *reader.Reader, overwriteExisting, overwriteUnknown3 bool) (AdditionsReport, error) {
	c.openReaders = append(c.openReaders, src)

	report := AdditionsReport{}
	for _, entry := range src.Entries() {
		p, err := src.Provider(entry)
		if err != nil {
			report.Errors++
			c.logger.WithError(err).WithField("path_hash", entry.PathSpec.PathHash).Warn("sqpack creator: skipping unreadable entry")
			continue
		}
		outcome, err := c.AddEntry(p, overwriteExisting)
		c.tallyOutcome(&report, p.PathSpec(), outcome, err)
	}

	if overwriteUnknown3 {
		c.unknown3 = src.Unknown3()
	}

	return report, nil
}

// AddEntryTallied is AddEntry for overlay sources that maintain their own
// AdditionsReport across many calls: it applies the insertion policy and
// folds the outcome into report directly.
func (c *Creator) AddEntryTallied(report *AdditionsReport, p provider.EntryProvider, overwriteExisting bool) {
	outcome, err := c.AddEntry(p, overwriteExisting)
	c.tallyOutcome(report, p.PathSpec(), outcome, err)
}

func (c *Creator) tallyOutcome(report *AdditionsReport, ps sqpack.PathSpec, outcome Outcome, err error) {
	switch outcome {
	case OutcomeAdded:
		report.Added++
		report.MostRecentPathSpec = ps
	case OutcomeReplaced:
		report.Replaced++
		report.MostRecentPathSpec = ps
	case OutcomeSkippedExisting:
		report.Skipped++
	case OutcomeConflict:
		report.Errors++
		c.logger.WithError(err).WithField("path", ps.OriginalPath).Warn("sqpack creator: path spec conflict")
	}
}
