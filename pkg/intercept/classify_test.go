/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package intercept

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqpack-overlay/engine/pkg/handle"
)

func TestClassifyIndexIndex2AndData(t *testing.T) {
	base := "/game/sqpack"

	c, ok := Classify(base, "/game/sqpack/ffxiv/000000.win32.index")
	require.True(t, ok)
	assert.Equal(t, handle.PathTypeIndex, c.PathType)
	assert.Equal(t, "/game/sqpack/ffxiv/000000.win32.index", c.IndexPath)

	c, ok = Classify(base, "/game/sqpack/ffxiv/000000.win32.index2")
	require.True(t, ok)
	assert.Equal(t, handle.PathTypeIndex2, c.PathType)
	assert.Equal(t, "/game/sqpack/ffxiv/000000.win32.index", c.IndexPath)

	c, ok = Classify(base, "/game/sqpack/ffxiv/000000.win32.dat3")
	require.True(t, ok)
	assert.Equal(t, handle.PathTypeData, c.PathType)
	assert.EqualValues(t, 3, c.SpanIndex)
	assert.Equal(t, "/game/sqpack/ffxiv/000000.win32.index", c.IndexPath)
}

func TestClassifyRejectsUnrelatedPaths(t *testing.T) {
	base := "/game/sqpack"

	_, ok := Classify(base, "/game/sqpack/ffxiv/000000.win32.scd")
	assert.False(t, ok)

	_, ok = Classify(base, "/somewhere/else/file.index")
	assert.False(t, ok)
}
