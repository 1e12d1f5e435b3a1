/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package provider

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"

	"github.com/sqpack-overlay/engine/pkg/sqpack"
)

// MemoryModelProvider serves a model entry built from a raw MDL payload.
// The real archive format splits a model across stack/runtime/vertex/edge
// geometry blocks with per-LOD locators; this provider compresses the
// whole MDL blob as a single block, which is a documented scope
// reduction (no overlay source in this engine needs to address
// individual LOD geometry inside a model entry, only to replace a whole
// model's bytes).
type MemoryModelProvider struct {
	pathSpec sqpack.PathSpec
	blob     []byte
}

// NewMemoryModelProvider compresses data into a single-block Model
// entry.
func NewMemoryModelProvider(pathSpec sqpack.PathSpec, data []byte) (*MemoryModelProvider, error) {
	compressed, err := deflate(data)
	if err != nil {
		return nil, err
	}

	payload := compressed
	compressedSize := uint32(len(compressed))
	if len(compressed) >= len(data) {
		payload = data
		compressedSize = sqpack.CompressedSizeNotCompressed
	}

	blockHeader := sqpack.BlockHeader{
		HeaderSize:       sqpack.BlockHeaderSize,
		Version:          0,
		CompressedSize:   compressedSize,
		DecompressedSize: uint32(len(data)),
	}
	blockTotal := sqpack.BlockHeaderSize + len(payload)
	_, blockPad := sqpack.Align(uint64(blockTotal), 4)

	locator := sqpack.BlockHeaderLocator{
		Offset:               0,
		BlockSize:            uint16(blockTotal + int(blockPad)),
		DecompressedDataSize: uint16(len(data)),
	}

	entryHeader := sqpack.FileEntryHeader{
		HeaderSize:          sqpack.FileEntryHeaderSize,
		Type:                uint32(sqpack.FileEntryTypeModel),
		DecompressedSize:    uint32(len(data)),
		BlockBufferSize:     uint32(len(data)),
		BlockCountOrVersion: 1,
	}

	buf := &bytes.Buffer{}
	encodedHeader, err := entryHeader.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf.Write(encodedHeader)

	encodedLocator, err := locator.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf.Write(encodedLocator)

	encodedBlockHeader, err := blockHeader.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf.Write(encodedBlockHeader)
	buf.Write(payload)
	buf.Write(make([]byte, blockPad))

	alloc, pad := sqpack.Align(uint64(buf.Len()), sqpack.EntryAlignment)
	buf.Write(make([]byte, pad))
	if uint64(buf.Len()) != alloc {
		return nil, errors.Errorf("memory model provider: alignment mismatch, got %d want %d", buf.Len(), alloc)
	}

	return &MemoryModelProvider{pathSpec: pathSpec, blob: buf.Bytes()}, nil
}

func (p *MemoryModelProvider) Size() int64 { return int64(len(p.blob)) }

func (p *MemoryModelProvider) ReadPartial(offset int64, buf []byte) (int, error) {
	if offset < 0 || offset >= int64(len(p.blob)) {
		return 0, nil
	}
	return copy(buf, p.blob[offset:]), nil
}

func (p *MemoryModelProvider) DescribeState() string {
	return fmt.Sprintf("memory-model(%s, %d bytes)", p.pathSpec.OriginalPath, len(p.blob))
}

func (p *MemoryModelProvider) PathSpec() sqpack.PathSpec { return p.pathSpec }

func (p *MemoryModelProvider) Kind() sqpack.FileEntryType { return sqpack.FileEntryTypeModel }
