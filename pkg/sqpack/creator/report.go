/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

// Package creator holds the Creator (the merged in-memory directory an
// archive triplet is assembled into) and the View Assembler that freezes
// it into the random-access streams a handle actually reads from.
package creator

import "github.com/sqpack-overlay/engine/pkg/sqpack"

// AdditionsReport accumulates the outcome of applying one or more
// overlay sources to a Creator: how many entries were newly added,
// replaced, skipped because an existing entry already won, and how
// many failed outright. Overlay application sums reports across
// sources (original_source/Sqex_Sqpack_Virtual.h shows the same
// accumulation), so Merge is additive rather than a last-write-wins
// assignment.
type AdditionsReport struct {
	Added    int
	Replaced int
	Skipped  int
	Errors   int

	// MostRecentPathSpec is a debug aid: the path of the most recent
	// AddEntry call that added or replaced an entry (skipped calls leave
	// it unchanged).
	MostRecentPathSpec sqpack.PathSpec
}

// Merge folds other into r in place and returns r for chaining.
func (r *AdditionsReport) Merge(other AdditionsReport) *AdditionsReport {
	r.Added += other.Added
	r.Replaced += other.Replaced
	r.Skipped += other.Skipped
	r.Errors += other.Errors
	if other.MostRecentPathSpec.OriginalPath != "" || other.Added+other.Replaced+other.Skipped > 0 {
		r.MostRecentPathSpec = other.MostRecentPathSpec
	}
	return r
}

// Empty reports whether the report represents zero effective
// contribution: no addition and no replacement. Per spec.md §4.5, an
// overlay this returns true for does not count toward keeping a
// triplet off the blacklist.
func (r AdditionsReport) Empty() bool {
	return r.Added == 0 && r.Replaced == 0
}

// Outcome tags what AddEntry did with a single provider.
type Outcome int

const (
	OutcomeAdded Outcome = iota
	OutcomeReplaced
	OutcomeSkippedExisting
	OutcomeConflict
)
