/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package creator

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqpack-overlay/engine/pkg/errdefs"
	"github.com/sqpack-overlay/engine/pkg/sqpack"
	"github.com/sqpack-overlay/engine/pkg/sqpack/provider"
)

func newTestLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestAddEntryAddsNewPath(t *testing.T) {
	c := NewCreator("ffxiv", "000000", newTestLogger())
	ps := sqpack.NewPathSpec("common/font/font1.tex")

	outcome, err := c.AddEntry(provider.NewEmptyProvider(ps), false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdded, outcome)
	assert.Len(t, c.Entries(), 1)
}

func TestAddEntrySkipsExistingWithoutOverwrite(t *testing.T) {
	c := NewCreator("ffxiv", "000000", newTestLogger())
	ps := sqpack.NewPathSpec("common/font/font1.tex")

	_, err := c.AddEntry(provider.NewEmptyProvider(ps), false)
	require.NoError(t, err)

	outcome, err := c.AddEntry(provider.NewEmptyProvider(ps), false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedExisting, outcome)
	assert.Len(t, c.Entries(), 1)
}

func TestAddEntryReplacesExistingWithOverwrite(t *testing.T) {
	c := NewCreator("ffxiv", "000000", newTestLogger())
	ps := sqpack.NewPathSpec("common/font/font1.tex")

	_, err := c.AddEntry(provider.NewEmptyProvider(ps), false)
	require.NoError(t, err)

	second := provider.NewEmptyProvider(ps)
	outcome, err := c.AddEntry(second, true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReplaced, outcome)
	require.Len(t, c.Entries(), 1)
	assert.Same(t, second, c.Entries()[0])
}

func TestAddEntryDetectsPartialCollisionAsConflict(t *testing.T) {
	c := NewCreator("ffxiv", "000000", newTestLogger())
	original := sqpack.NewPathSpec("common/font/font1.tex")
	_, err := c.AddEntry(provider.NewEmptyProvider(original), false)
	require.NoError(t, err)

	colliding := original
	colliding.PathHash = original.PathHash + 1
	colliding.NameHash = original.NameHash + 1 // FullPathHash still matches: partial collision
	colliding.OriginalPath = "common/font/font1-colliding.tex"

	outcome, err := c.AddEntry(provider.NewEmptyProvider(colliding), true)
	assert.Equal(t, OutcomeConflict, outcome)
	require.Error(t, err)
	assert.True(t, errdefs.IsDuplicatePathSpec(err))
	// The conflicting add must not have mutated the existing entry.
	assert.Len(t, c.Entries(), 1)
}

func TestAddEntryTalliedFoldsIntoReport(t *testing.T) {
	c := NewCreator("ffxiv", "000000", newTestLogger())
	report := AdditionsReport{}

	c.AddEntryTallied(&report, provider.NewEmptyProvider(sqpack.NewPathSpec("a/b.tex")), false)
	c.AddEntryTallied(&report, provider.NewEmptyProvider(sqpack.NewPathSpec("a/c.tex")), false)
	c.AddEntryTallied(&report, provider.NewEmptyProvider(sqpack.NewPathSpec("a/b.tex")), false)

	assert.Equal(t, 2, report.Added)
	assert.Equal(t, 1, report.Skipped)
	assert.False(t, report.Empty())
}

func TestAdditionsReportMergeIsAdditive(t *testing.T) {
	a := AdditionsReport{Added: 1, Replaced: 2, Skipped: 3, Errors: 4}
	b := AdditionsReport{Added: 5, Replaced: 0, Skipped: 1, Errors: 0}

	a.Merge(b)

	assert.Equal(t, 6, a.Added)
	assert.Equal(t, 2, a.Replaced)
	assert.Equal(t, 4, a.Skipped)
	assert.Equal(t, 4, a.Errors)
}

func TestAdditionsReportEmptyWhenNoEffectiveChange(t *testing.T) {
	r := AdditionsReport{Skipped: 3, Errors: 1}
	assert.True(t, r.Empty())

	r.Added = 1
	assert.False(t, r.Empty())
}
