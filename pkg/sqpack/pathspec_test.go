/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package sqpack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPathSpecNormalizesCaseAndSlashes(t *testing.T) {
	a := NewPathSpec(`common/Font/font1.tex`)
	b := NewPathSpec(`COMMON/font/FONT1.TEX`)
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.FullPathHash, b.FullPathHash)
}

func TestPathSpecDistinctPaths(t *testing.T) {
	a := NewPathSpec("a/b/c.bin")
	b := NewPathSpec("x/y/z.bin")
	assert.False(t, a.Equal(b))
	assert.False(t, a.Matches(b))
	assert.False(t, a.Conflicts(b))
}

func TestPathSpecConflictsOnPartialCollision(t *testing.T) {
	a := NewPathSpec("a/b/c.bin")

	sameFullDifferentDual := a
	sameFullDifferentDual.PathHash++
	sameFullDifferentDual.NameHash++
	assert.True(t, a.Matches(sameFullDifferentDual))
	assert.False(t, a.Equal(sameFullDifferentDual))
	assert.True(t, a.Conflicts(sameFullDifferentDual))

	sameDualDifferentFull := a
	sameDualDifferentFull.FullPathHash++
	assert.True(t, a.Matches(sameDualDifferentFull))
	assert.False(t, a.Equal(sameDualDifferentFull))
	assert.True(t, a.Conflicts(sameDualDifferentFull))
}

func TestPathSpecEqualRequiresBothKeyForms(t *testing.T) {
	a := NewPathSpec("a/b/c.bin")
	b := a
	assert.True(t, a.Equal(b))
	assert.False(t, a.Conflicts(b))
}
