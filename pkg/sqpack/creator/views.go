/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package creator

import (
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/sqpack-overlay/engine/pkg/sqpack/stream"
)

// SqpackViews is the frozen output of freeze(): one Index stream, one
// Index2 stream, and an ordered set of Data spans, immutable and
// shareable by every handle derived from the same triplet.
//
// refCount lets pkg/engine's bounded views cache evict the cache's own
// reference without tearing down streams a still-open handle is reading
// from (DESIGN.md Open Question: LRU eviction vs in-use views).
type SqpackViews struct {
	Index  stream.RandomAccessStream
	Index2 stream.RandomAccessStream
	Data   []stream.RandomAccessStream

	// closers are the source archive Readers (base archive plus any
	// external archive roots) whose files the Index/Index2/Data streams
	// above still read from lazily. They are closed once, when refCount
	// drops back to zero.
	closers []io.Closer
	logger  logrus.FieldLogger

	refCount int32
}

// Retain increments the reference count and returns the new count.
func (v *SqpackViews) Retain() int32 {
	return atomic.AddInt32(&v.refCount, 1)
}

// Release decrements the reference count and returns the new count. A
// count of zero means no handle and no cache entry references these
// views any longer, so the source archive readers backing them are
// closed.
func (v *SqpackViews) Release() int32 {
	n := atomic.AddInt32(&v.refCount, -1)
	if n == 0 {
		for _, c := range v.closers {
			if err := c.Close(); err != nil && v.logger != nil {
				v.logger.WithError(err).Warn("sqpack views: error closing source reader")
			}
		}
	}
	return n
}

// RefCount reports the current reference count.
func (v *SqpackViews) RefCount() int32 {
	return atomic.LoadInt32(&v.refCount)
}

// DataSpan returns the data stream for spanIndex, or nil if out of range.
func (v *SqpackViews) DataSpan(spanIndex uint32) stream.RandomAccessStream {
	if int(spanIndex) >= len(v.Data) {
		return nil
	}
	return v.Data[spanIndex]
}
