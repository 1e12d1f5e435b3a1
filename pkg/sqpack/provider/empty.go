/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package provider

import (
	"github.com/sqpack-overlay/engine/pkg/sqpack"
)

// EmptyProvider serves the fixed 128-byte sentinel entry spec.md §3 uses
// to represent a path deliberately hidden from the merged view (an
// overlay source can "delete" an archive entry by replacing it with one
// of these rather than by actually removing anything on disk).
type EmptyProvider struct {
	pathSpec sqpack.PathSpec
	data     [sqpack.EmptyEntrySize]byte
}

// NewEmptyProvider builds the Empty entry for the given path. The header
// is the only non-zero content: a FileEntryHeader declaring type Empty
// and zero decompressed size, padded out to EmptyEntrySize.
func NewEmptyProvider(pathSpec sqpack.PathSpec) *EmptyProvider {
	p := &EmptyProvider{pathSpec: pathSpec}

	hdr := sqpack.FileEntryHeader{
		HeaderSize:          sqpack.FileEntryHeaderSize,
		Type:                uint32(sqpack.FileEntryTypeEmpty),
		DecompressedSize:    0,
		BlockBufferSize:     0,
		BlockCountOrVersion: 0,
	}
	encoded, err := hdr.MarshalBinary()
	if err != nil {
		// FileEntryHeader marshaling can only fail on encoding/binary
		// internals, never on this fixed-shape input.
		panic(err)
	}
	copy(p.data[:], encoded)
	return p
}

func (p *EmptyProvider) Size() int64 { return sqpack.EmptyEntrySize }

func (p *EmptyProvider) ReadPartial(offset int64, buf []byte) (int, error) {
	if offset < 0 || offset >= int64(len(p.data)) {
		return 0, nil
	}
	return copy(buf, p.data[offset:]), nil
}

func (p *EmptyProvider) DescribeState() string {
	return "empty(" + p.pathSpec.OriginalPath + ")"
}

func (p *EmptyProvider) PathSpec() sqpack.PathSpec { return p.pathSpec }

func (p *EmptyProvider) Kind() sqpack.FileEntryType { return sqpack.FileEntryTypeEmpty }
