/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package handle

import (
	"sync"

	"github.com/rs/xid"

	"github.com/sqpack-overlay/engine/pkg/metrics"
)

// Table is the mutex-guarded synthetic-handle-to-OverlayedHandle map
// spec.md §4.2 and §5's virtual_path_map_mutex describe. The lock is
// held only across map lookup/insert/delete; callers borrow the pointer
// and release the lock before touching the stream, since streams are
// independently safe for concurrent readers.
type Table struct {
	mu      sync.RWMutex
	entries map[xid.ID]*OverlayedHandle
}

// NewTable returns an empty handle table.
func NewTable() *Table {
	return &Table{entries: make(map[xid.ID]*OverlayedHandle)}
}

// Register inserts h, keyed by its own ID.
func (t *Table) Register(h *OverlayedHandle) {
	t.mu.Lock()
	t.entries[h.ID] = h
	t.mu.Unlock()
	metrics.OpenHandlesGauge.Inc()
}

// Lookup returns the handle for id, or nil if not present.
func (t *Table) Lookup(id xid.ID) *OverlayedHandle {
	t.mu.RLock()
	h := t.entries[id]
	t.mu.RUnlock()
	return h
}

// Drop removes id from the table and releases its views reference. It
// reports whether id was present.
func (t *Table) Drop(id xid.ID) bool {
	t.mu.Lock()
	h, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()

	if ok {
		h.Release()
		metrics.OpenHandlesGauge.Dec()
	}
	return ok
}

// Len reports the number of live handles, for tests and diagnostics.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
