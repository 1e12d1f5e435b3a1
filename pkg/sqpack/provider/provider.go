/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

// Package provider implements the EntryProvider polymorphism (spec.md §3):
// the different ways a single archive entry's bytes can be produced,
// from a 128-byte empty sentinel to compressed in-memory payloads built
// fresh by an overlay source.
package provider

import (
	"github.com/sqpack-overlay/engine/pkg/sqpack"
	"github.com/sqpack-overlay/engine/pkg/sqpack/stream"
)

// EntryProvider is a RandomAccessStream that additionally knows which
// PathSpec it serves and what structural entry type its bytes decode to.
// Implementations are immutable once constructed: the View Assembler
// reads them concurrently from multiple handles.
type EntryProvider interface {
	stream.RandomAccessStream

	// PathSpec identifies the archive entry this provider serves.
	PathSpec() sqpack.PathSpec

	// Kind reports the structural entry type the provider's bytes decode
	// to (Empty, Binary, Model, Texture).
	Kind() sqpack.FileEntryType
}
