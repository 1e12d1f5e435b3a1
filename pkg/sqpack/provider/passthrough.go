/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package provider

import (
	"fmt"

	"github.com/sqpack-overlay/engine/pkg/sqpack"
	"github.com/sqpack-overlay/engine/pkg/sqpack/stream"
)

// PassthroughFromSqPackProvider serves an entry's bytes straight out of
// an already-open source archive's data span, unmodified. This is the
// provider the Reader hands back for every path an overlay source
// didn't touch: no bytes are copied, only a fixed-size window of the
// source span is addressed.
type PassthroughFromSqPackProvider struct {
	pathSpec sqpack.PathSpec
	kind     sqpack.FileEntryType
	source   stream.RandomAccessStream
	offset   int64
	size     int64
}

// NewPassthroughFromSqPackProvider addresses size bytes of source
// starting at offset: the exact window the original archive's
// FileSegmentEntry locator already points to. kind is the entry type
// already declared in that window's FileEntryHeader, read once by the
// caller during Reader enumeration so this provider doesn't need to
// re-parse it on every access.
func NewPassthroughFromSqPackProvider(pathSpec sqpack.PathSpec, kind sqpack.FileEntryType, source stream.RandomAccessStream, offset, size int64) *PassthroughFromSqPackProvider {
	return &PassthroughFromSqPackProvider{
		pathSpec: pathSpec,
		kind:     kind,
		source:   source,
		offset:   offset,
		size:     size,
	}
}

func (p *PassthroughFromSqPackProvider) Size() int64 { return p.size }

func (p *PassthroughFromSqPackProvider) ReadPartial(offset int64, buf []byte) (int, error) {
	if offset < 0 || offset >= p.size {
		return 0, nil
	}
	want := int64(len(buf))
	if remaining := p.size - offset; want > remaining {
		want = remaining
	}
	return p.source.ReadPartial(p.offset+offset, buf[:want])
}

func (p *PassthroughFromSqPackProvider) DescribeState() string {
	return fmt.Sprintf("passthrough(%s, +%d, %d bytes)", p.pathSpec.OriginalPath, p.offset, p.size)
}

func (p *PassthroughFromSqPackProvider) PathSpec() sqpack.PathSpec { return p.pathSpec }

func (p *PassthroughFromSqPackProvider) Kind() sqpack.FileEntryType { return p.kind }
