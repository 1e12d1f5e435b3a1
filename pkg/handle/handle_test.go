/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package handle

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqpack-overlay/engine/pkg/sqpack/creator"
	"github.com/sqpack-overlay/engine/pkg/sqpack/stream"
)

func newTestViews() *creator.SqpackViews {
	return &creator.SqpackViews{
		Index: stream.NewMemoryStream("index", make([]byte, 100)),
	}
}

func TestOverlayedHandleCursorAdvanceAndSeek(t *testing.T) {
	views := newTestViews()
	h := New("x/y.win32.index", PathTypeIndex, 0, views.Index, views)
	require.EqualValues(t, 1, views.RefCount())

	assert.EqualValues(t, 0, h.Cursor())
	h.Advance(10)
	assert.EqualValues(t, 10, h.Cursor())

	assert.EqualValues(t, 100, h.SeekTo(1000)) // clamp to stream size
	assert.EqualValues(t, 0, h.SeekTo(-5))     // clamp to zero
}

func TestOverlayedHandleReleaseIsIdempotent(t *testing.T) {
	views := newTestViews()
	h := New("x/y.win32.index", PathTypeIndex, 0, views.Index, views)

	h.Release()
	h.Release()
	assert.EqualValues(t, 0, views.RefCount())
}

func TestTableRegisterLookupDrop(t *testing.T) {
	views := newTestViews()
	table := NewTable()
	h := New("x/y.win32.index", PathTypeIndex, 0, views.Index, views)

	table.Register(h)
	assert.Equal(t, 1, table.Len())
	assert.Same(t, h, table.Lookup(h.ID))

	assert.True(t, table.Drop(h.ID))
	assert.Equal(t, 0, table.Len())
	assert.Nil(t, table.Lookup(h.ID))
	assert.False(t, table.Drop(h.ID))
	assert.EqualValues(t, 0, views.RefCount())
}

func TestTableConcurrentAccess(t *testing.T) {
	table := NewTable()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			views := newTestViews()
			h := New("x/y.win32.index", PathTypeIndex, 0, views.Index, views)
			table.Register(h)
			table.Lookup(h.ID)
			table.Drop(h.ID)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, table.Len())
}
