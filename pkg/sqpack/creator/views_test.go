/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package creator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sqpack-overlay/engine/pkg/sqpack/stream"
)

func TestSqpackViewsRetainRelease(t *testing.T) {
	v := &SqpackViews{
		Index:  stream.NewMemoryStream("index", nil),
		Index2: stream.NewMemoryStream("index2", nil),
		Data:   []stream.RandomAccessStream{stream.NewMemoryStream("data0", []byte{1, 2, 3})},
	}

	assert.EqualValues(t, 0, v.RefCount())
	assert.EqualValues(t, 1, v.Retain())
	assert.EqualValues(t, 2, v.Retain())
	assert.EqualValues(t, 1, v.Release())
	assert.EqualValues(t, 1, v.RefCount())
	assert.EqualValues(t, 0, v.Release())
}

func TestSqpackViewsDataSpanBoundsCheck(t *testing.T) {
	v := &SqpackViews{Data: []stream.RandomAccessStream{stream.NewMemoryStream("data0", []byte{1})}}

	assert.NotNil(t, v.DataSpan(0))
	assert.Nil(t, v.DataSpan(1))
}
