/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package reader

import (
	"github.com/pkg/errors"

	"github.com/sqpack-overlay/engine/pkg/errdefs"
	"github.com/sqpack-overlay/engine/pkg/sqpack"
	"github.com/sqpack-overlay/engine/pkg/sqpack/provider"
	"github.com/sqpack-overlay/engine/pkg/sqpack/stream"
)

// EntrySize reads the FileEntryHeader at locator's position and computes
// the full 128-byte-aligned byte span the entry occupies, by walking its
// block locator table the same way the memory providers laid it out.
func (r *Reader) EntrySize(locator sqpack.DataLocator) (sqpack.FileEntryType, int64, error) {
	span, err := r.DataSpan(locator.SpanIndex())
	if err != nil {
		return 0, 0, err
	}
	offset := int64(locator.Offset())

	headerBuf := make([]byte, sqpack.FileEntryHeaderSize)
	if n, err := span.ReadPartial(offset, headerBuf); err != nil || n < len(headerBuf) {
		return 0, 0, errors.Wrap(errdefs.ErrCorruptArchive, "sqpack reader: entry header short read")
	}
	var hdr sqpack.FileEntryHeader
	if err := hdr.UnmarshalBinary(headerBuf); err != nil {
		return 0, 0, err
	}
	kind := sqpack.FileEntryType(hdr.Type)

	if kind == sqpack.FileEntryTypeEmpty {
		return kind, sqpack.EmptyEntrySize, nil
	}

	var regionEnd int64
	switch kind {
	case sqpack.FileEntryTypeBinary, sqpack.FileEntryTypeModel:
		regionEnd, err = binaryLikeRegionEnd(span, offset, hdr)
	case sqpack.FileEntryTypeTexture:
		regionEnd, err = textureRegionEnd(span, offset, hdr)
	default:
		return 0, 0, errors.Wrapf(errdefs.ErrCorruptArchive, "sqpack reader: unknown entry type %d", hdr.Type)
	}
	if err != nil {
		return 0, 0, err
	}

	alloc, _ := sqpack.Align(uint64(regionEnd), sqpack.EntryAlignment)
	return kind, int64(alloc), nil
}

func binaryLikeRegionEnd(span stream.RandomAccessStream, offset int64, hdr sqpack.FileEntryHeader) (int64, error) {
	count := int(hdr.BlockCountOrVersion)
	if count <= 0 {
		return int64(sqpack.FileEntryHeaderSize), nil
	}
	locatorsBuf := make([]byte, count*sqpack.BlockHeaderLocatorSize)
	if n, err := span.ReadPartial(offset+int64(sqpack.FileEntryHeaderSize), locatorsBuf); err != nil || n < len(locatorsBuf) {
		return 0, errors.Wrap(errdefs.ErrCorruptArchive, "sqpack reader: block locator table short read")
	}
	var last sqpack.BlockHeaderLocator
	chunk := locatorsBuf[(count-1)*sqpack.BlockHeaderLocatorSize : count*sqpack.BlockHeaderLocatorSize]
	if err := last.UnmarshalBinary(chunk); err != nil {
		return 0, err
	}
	blockRegionStart := int64(sqpack.FileEntryHeaderSize) + int64(count*sqpack.BlockHeaderLocatorSize)
	return blockRegionStart + int64(last.Offset) + int64(last.BlockSize), nil
}

func textureRegionEnd(span stream.RandomAccessStream, offset int64, hdr sqpack.FileEntryHeader) (int64, error) {
	count := int(hdr.BlockCountOrVersion)
	if count <= 0 {
		return int64(sqpack.FileEntryHeaderSize), nil
	}
	locatorsBuf := make([]byte, count*sqpack.TextureBlockHeaderLocatorSize)
	if n, err := span.ReadPartial(offset+int64(sqpack.FileEntryHeaderSize), locatorsBuf); err != nil || n < len(locatorsBuf) {
		return 0, errors.Wrap(errdefs.ErrCorruptArchive, "sqpack reader: texture locator table short read")
	}
	var last sqpack.TextureBlockHeaderLocator
	chunk := locatorsBuf[(count-1)*sqpack.TextureBlockHeaderLocatorSize : count*sqpack.TextureBlockHeaderLocatorSize]
	if err := last.UnmarshalBinary(chunk); err != nil {
		return 0, err
	}
	blockRegionStart := int64(sqpack.FileEntryHeaderSize) + int64(count*sqpack.TextureBlockHeaderLocatorSize)
	return blockRegionStart + int64(last.FirstBlockOffset) + int64(last.TotalSize), nil
}

// Provider builds a PassthroughFromSqPackProvider for a directory entry,
// windowing the owning data span at its locator without copying bytes.
func (r *Reader) Provider(entry DirectoryEntry) (provider.EntryProvider, error) {
	kind, size, err := r.EntrySize(entry.Locator)
	if err != nil {
		return nil, err
	}
	span, err := r.DataSpan(entry.Locator.SpanIndex())
	if err != nil {
		return nil, err
	}
	return provider.NewPassthroughFromSqPackProvider(entry.PathSpec, kind, span, int64(entry.Locator.Offset()), size), nil
}
