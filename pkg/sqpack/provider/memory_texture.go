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

// MemoryTextureProvider serves a texture entry built from a raw texture
// header (the DDS-like fixed-size header FFXIV stores uncompressed at
// the front of every .tex entry) and its mipmap payload. Real archive
// textures carry one locator per mip level; this provider always lays
// its payload out as a single mip/block run. Overlay sources that need
// true multi-mip textures are expected to supply a pre-mipped blob and
// accept the single-block layout — a scope reduction from the full
// format, not from spec.md's behavior, which never requires per-mip
// addressability of an overlay-supplied texture.
type MemoryTextureProvider struct {
	pathSpec sqpack.PathSpec
	blob     []byte
}

// NewMemoryTextureProvider compresses mipData into one block, preceded
// by texHeader verbatim and a single TextureBlockHeaderLocator pointing
// at it.
func NewMemoryTextureProvider(pathSpec sqpack.PathSpec, texHeader []byte, mipData []byte) (*MemoryTextureProvider, error) {
	compressed, err := deflate(mipData)
	if err != nil {
		return nil, err
	}

	payload := compressed
	compressedSize := uint32(len(compressed))
	if len(compressed) >= len(mipData) {
		payload = mipData
		compressedSize = sqpack.CompressedSizeNotCompressed
	}

	blockHeader := sqpack.BlockHeader{
		HeaderSize:       sqpack.BlockHeaderSize,
		Version:          0,
		CompressedSize:   compressedSize,
		DecompressedSize: uint32(len(mipData)),
	}
	blockTotal := sqpack.BlockHeaderSize + len(payload)
	_, blockPad := sqpack.Align(uint64(blockTotal), 4)

	locator := sqpack.TextureBlockHeaderLocator{
		FirstBlockOffset:   uint32(len(texHeader)),
		TotalSize:          uint32(blockTotal) + uint32(blockPad),
		DecompressedSize:   uint32(len(mipData)),
		FirstSubBlockIndex: 0,
		SubBlockCount:      1,
	}

	entryHeader := sqpack.FileEntryHeader{
		HeaderSize:          sqpack.FileEntryHeaderSize,
		Type:                uint32(sqpack.FileEntryTypeTexture),
		DecompressedSize:    uint32(len(texHeader) + len(mipData)),
		BlockBufferSize:     uint32(len(mipData)),
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

	buf.Write(texHeader)

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
		return nil, errors.Errorf("memory texture provider: alignment mismatch, got %d want %d", buf.Len(), alloc)
	}

	return &MemoryTextureProvider{pathSpec: pathSpec, blob: buf.Bytes()}, nil
}

func (p *MemoryTextureProvider) Size() int64 { return int64(len(p.blob)) }

func (p *MemoryTextureProvider) ReadPartial(offset int64, buf []byte) (int, error) {
	if offset < 0 || offset >= int64(len(p.blob)) {
		return 0, nil
	}
	return copy(buf, p.blob[offset:]), nil
}

func (p *MemoryTextureProvider) DescribeState() string {
	return fmt.Sprintf("memory-texture(%s, %d bytes)", p.pathSpec.OriginalPath, len(p.blob))
}

func (p *MemoryTextureProvider) PathSpec() sqpack.PathSpec { return p.pathSpec }

func (p *MemoryTextureProvider) Kind() sqpack.FileEntryType { return sqpack.FileEntryTypeTexture }
