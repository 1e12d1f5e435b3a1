/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

// Package handle implements the Handle Table: the mapping from a
// synthetic OS handle to the per-open state an intercepted read/seek/close
// call operates on.
package handle

import (
	"sync"
	"sync/atomic"

	"github.com/rs/xid"

	"github.com/sqpack-overlay/engine/pkg/sqpack/creator"
	"github.com/sqpack-overlay/engine/pkg/sqpack/stream"
)

// PathType names which of a triplet's three stream kinds a handle is
// bound to.
type PathType int

const (
	PathTypeIndex PathType = iota
	PathTypeIndex2
	PathTypeData
)

func (t PathType) String() string {
	switch t {
	case PathTypeIndex:
		return "index"
	case PathTypeIndex2:
		return "index2"
	case PathTypeData:
		return "data"
	default:
		return "unknown"
	}
}

// OverlayedHandle is one intercepted open. Its ID is the synthetic handle
// value the host's OS File API sees in place of a real OS handle. Cursor
// is guarded independently of the Handle Table's own lock, since
// concurrent reads on the same handle with overlapped descriptors must
// not serialize against unrelated handles (spec §5: table lock "never
// held across stream I/O").
type OverlayedHandle struct {
	ID           xid.ID
	OriginalPath string
	PathType     PathType
	SpanIndex    uint32
	Stream       stream.RandomAccessStream
	Views        *creator.SqpackViews

	cursorMu sync.Mutex
	cursor   int64

	closed int32
}

// New allocates a handle bound to stream and retains views for the
// handle's lifetime; Close releases that reference.
func New(originalPath string, pathType PathType, spanIndex uint32, s stream.RandomAccessStream, views *creator.SqpackViews) *OverlayedHandle {
	views.Retain()
	return &OverlayedHandle{
		ID:           xid.New(),
		OriginalPath: originalPath,
		PathType:     pathType,
		SpanIndex:    spanIndex,
		Stream:       s,
		Views:        views,
	}
}

// Cursor returns the handle's current stored file pointer.
func (h *OverlayedHandle) Cursor() int64 {
	h.cursorMu.Lock()
	defer h.cursorMu.Unlock()
	return h.cursor
}

// Advance moves the stored cursor forward by n bytes, used after a read
// performed without an overlapped descriptor.
func (h *OverlayedHandle) Advance(n int64) {
	h.cursorMu.Lock()
	h.cursor += n
	h.cursorMu.Unlock()
}

// SeekTo clamps target into [0, size] and stores it as the new cursor,
// returning the clamped value.
func (h *OverlayedHandle) SeekTo(target int64) int64 {
	size := h.Stream.Size()
	if target < 0 {
		target = 0
	}
	if target > size {
		target = size
	}
	h.cursorMu.Lock()
	h.cursor = target
	h.cursorMu.Unlock()
	return target
}

// Release drops the handle's reference to its views. Safe to call at
// most once; subsequent calls are no-ops.
func (h *OverlayedHandle) Release() {
	if atomic.CompareAndSwapInt32(&h.closed, 0, 1) {
		h.Views.Release()
	}
}
